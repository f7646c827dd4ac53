package main

import (
	"strings"
	"testing"

	"github.com/wricardo/geocache-world/game/engine"
)

func testConfig(spawn float64) *engine.WorldConfig {
	return &engine.WorldConfig{
		Name:               "analyze",
		TileWidth:          1e-4,
		NeighborhoodRadius: 2,
		SpawnChance:        spawn,
		Seed:               "analyze-tests",
		Start:              engine.LatLng{Lat: 0.00035, Lng: 0.00045},
	}
}

func TestSampleSpawns(t *testing.T) {
	stats := sampleSpawns(testConfig(0.25), 60)

	if stats.Cells != 3600 {
		t.Errorf("Expected 3600 cells, got %d", stats.Cells)
	}
	if rate := stats.Rate(); rate < 0.2 || rate > 0.3 {
		t.Errorf("Expected observed rate near 0.25, got %f", rate)
	}

	bucketTotal := 0
	for _, b := range stats.Buckets {
		bucketTotal += b
	}
	if bucketTotal != stats.Caches {
		t.Errorf("Buckets hold %d caches, expected %d", bucketTotal, stats.Caches)
	}
	if stats.MinTokens < 0 || stats.MaxTokens >= engine.MaxInitialCount || stats.MinTokens > stats.MaxTokens {
		t.Errorf("Token range out of bounds: %d..%d", stats.MinTokens, stats.MaxTokens)
	}
}

func TestSampleSpawns_Edges(t *testing.T) {
	none := sampleSpawns(testConfig(0), 20)
	if none.Caches != 0 || none.Rate() != 0 || none.MeanTokens() != 0 || none.MinTokens != 0 {
		t.Errorf("Expected empty stats, got %+v", none)
	}

	all := sampleSpawns(testConfig(1), 20)
	if all.Caches != all.Cells {
		t.Errorf("Expected every cell to spawn, got %d/%d", all.Caches, all.Cells)
	}
}

func TestSampleSpawns_Deterministic(t *testing.T) {
	if sampleSpawns(testConfig(0.3), 40) != sampleSpawns(testConfig(0.3), 40) {
		t.Error("Expected identical statistics for the same config")
	}
}

func TestWalk(t *testing.T) {
	ws, err := walk(testConfig(1), "east", 10)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	// radius 2 gives a 4x4 window, fully populated at spawn chance 1
	if ws.Steps != 10 || ws.MinLive != 16 || ws.MaxLive != 16 {
		t.Errorf("Unexpected walk stats: %+v", ws)
	}
	// 4 rows x (4 + 10) columns pass through the window
	if ws.Distinct != 56 {
		t.Errorf("Expected 56 distinct caches, got %d", ws.Distinct)
	}
	if ws.Indexed != ws.Distinct {
		t.Errorf("Expected every indexed cell to hold a cache, got %d indexed for %d distinct", ws.Indexed, ws.Distinct)
	}
	if ws.MeanLive() != 16 {
		t.Errorf("Expected mean 16, got %f", ws.MeanLive())
	}
}

func TestWalk_InvalidDirection(t *testing.T) {
	if _, err := walk(testConfig(0.1), "up-ish", 1); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestHistogram(t *testing.T) {
	out := histogram([10]int{0, 5, 10})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("Expected 10 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[2], strings.Repeat("#", 30)) {
		t.Errorf("Expected full bar for the largest bucket: %q", lines[2])
	}
	if !strings.Contains(lines[1], strings.Repeat("#", 15)+" ") {
		t.Errorf("Expected half bar for bucket 1: %q", lines[1])
	}
}
