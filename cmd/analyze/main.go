// Command analyze prints quick, human-readable statistics about the world
// configurations in the project's configs directory: observed spawn rate over
// a sample area, token counts, and how many caches stay in view along a walk.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/geocache-world/game/config"
	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/session"
)

const (
	sampleSide = 200
	walkSteps  = 100
)

// SpawnStats summarizes the caches in a square sample of cells
type SpawnStats struct {
	Cells     int
	Caches    int
	Tokens    int
	MinTokens int
	MaxTokens int
	// Buckets[k] counts caches whose initial count lies in [10k, 10k+10)
	Buckets [10]int
}

// Rate is the observed fraction of cells holding a cache
func (s SpawnStats) Rate() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Caches) / float64(s.Cells)
}

// MeanTokens is the average initial count per cache
func (s SpawnStats) MeanTokens() float64 {
	if s.Caches == 0 {
		return 0
	}
	return float64(s.Tokens) / float64(s.Caches)
}

// WalkStats summarizes the live caches seen along a straight walk
type WalkStats struct {
	Steps     int
	MinLive   int
	MaxLive   int
	TotalLive int
	Distinct  int
	// Indexed is the number of cells the board canonicalized
	Indexed int
}

// MeanLive is the average number of live caches per position
func (w WalkStats) MeanLive() float64 {
	if w.Steps == 0 {
		return 0
	}
	return float64(w.TotalLive) / float64(w.Steps+1)
}

// sampleSpawns scans side x side cells starting at the config's start cell
func sampleSpawns(cfg *engine.WorldConfig, side int) SpawnStats {
	board := engine.NewBoard(cfg.TileWidth, cfg.NeighborhoodRadius)
	gen := engine.HashGenerator{Seed: cfg.Seed}
	origin := board.CellForPoint(cfg.Start)

	stats := SpawnStats{MinTokens: engine.MaxInitialCount}
	for di := 0; di < side; di++ {
		for dj := 0; dj < side; dj++ {
			cell := engine.Cell{I: origin.I + di, J: origin.J + dj}
			stats.Cells++
			if !engine.Exists(gen, cell, cfg.SpawnChance) {
				continue
			}
			n := engine.InitialCount(gen, cell)
			stats.Caches++
			stats.Tokens += n
			stats.Buckets[n/10]++
			if n < stats.MinTokens {
				stats.MinTokens = n
			}
			if n > stats.MaxTokens {
				stats.MaxTokens = n
			}
		}
	}
	if stats.Caches == 0 {
		stats.MinTokens = 0
	}
	return stats
}

// walk starts an in-memory world and steps in one direction, counting live caches
func walk(cfg *engine.WorldConfig, direction string, steps int) (WalkStats, error) {
	world, err := engine.NewWorld(cfg, session.NewMemoryStorage())
	if err != nil {
		return WalkStats{}, err
	}
	if err := world.Start(); err != nil {
		return WalkStats{}, err
	}

	seen := map[string]bool{}
	stats := WalkStats{MinLive: -1}
	observe := func() {
		live := world.ActiveCaches()
		n := len(live)
		stats.TotalLive += n
		if stats.MinLive < 0 || n < stats.MinLive {
			stats.MinLive = n
		}
		if n > stats.MaxLive {
			stats.MaxLive = n
		}
		for _, c := range live {
			seen[c.Key()] = true
		}
	}

	observe()
	for i := 0; i < steps; i++ {
		if err := world.Step(direction); err != nil {
			return stats, err
		}
		stats.Steps++
		observe()
	}
	stats.Distinct = len(seen)
	stats.Indexed = world.Board().KnownCells()
	return stats, nil
}

func histogram(buckets [10]int) string {
	max := 0
	for _, b := range buckets {
		if b > max {
			max = b
		}
	}
	var sb strings.Builder
	for k, b := range buckets {
		bar := 0
		if max > 0 {
			bar = b * 30 / max
		}
		fmt.Fprintf(&sb, "   %2d-%2d | %-30s %d\n", k*10, k*10+9, strings.Repeat("#", bar), b)
	}
	return sb.String()
}

func analyzeConfig(name string, cfg *engine.WorldConfig) {
	fmt.Printf("\n=== Analyzing %s ===\n", name)
	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Tile Width: %g° | Radius: %d | Spawn Chance: %g | Seed: %q\n",
		cfg.TileWidth, cfg.NeighborhoodRadius, cfg.SpawnChance, cfg.Seed)

	stats := sampleSpawns(cfg, sampleSide)
	fmt.Printf("Sample: %d cells, %d caches (observed rate %.4f)\n", stats.Cells, stats.Caches, stats.Rate())
	fmt.Printf("Tokens: %d total, %.1f mean, %d..%d per cache\n", stats.Tokens, stats.MeanTokens(), stats.MinTokens, stats.MaxTokens)
	fmt.Print(histogram(stats.Buckets))

	if diff := stats.Rate() - cfg.SpawnChance; diff > 0.02 || diff < -0.02 {
		fmt.Printf("⚠️  Observed spawn rate differs from configured by %.3f\n", diff)
	}

	ws, err := walk(cfg, "east", walkSteps)
	if err != nil {
		fmt.Printf("Walk failed: %v\n", err)
		return
	}
	fmt.Printf("Walk east %d cells: %.1f live caches on average (%d..%d), %d distinct, %d cells indexed\n",
		ws.Steps, ws.MeanLive(), ws.MinLive, ws.MaxLive, ws.Distinct, ws.Indexed)
	if ws.MinLive == 0 {
		fmt.Printf("⚠️  Some positions along the walk have no cache in range\n")
	} else {
		fmt.Printf("✅ A cache is always in range along the walk\n")
	}
}

func main() {
	configDir := "configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	// A single file is analyzed directly
	if strings.HasSuffix(configDir, ".yaml") {
		cfg, err := engine.LoadWorldConfig(configDir)
		if err != nil {
			fmt.Printf("Error loading %s: %v\n", configDir, err)
			os.Exit(1)
		}
		analyzeConfig(filepath.Base(configDir), cfg)
		return
	}

	manager, err := config.NewManager(configDir)
	if err != nil {
		fmt.Printf("Error loading configs: %v\n", err)
		os.Exit(1)
	}

	infos, err := manager.ListConfigs()
	if err != nil {
		fmt.Printf("Error listing configs: %v\n", err)
		os.Exit(1)
	}

	for _, info := range infos {
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			fmt.Printf("Error loading %s: %v\n", info.ConfigID, err)
			continue
		}
		analyzeConfig(info.ConfigID, cfg)
	}
}
