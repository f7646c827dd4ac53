package engine

import (
	"errors"
	"math"
	"testing"
)

func TestOffset_DirectionMapping(t *testing.T) {
	origin := LatLng{Lat: 10, Lng: 20}
	const w = 0.5

	tests := []struct {
		direction string
		expected  LatLng
	}{
		{"north", LatLng{Lat: 10.5, Lng: 20}},
		{"south", LatLng{Lat: 9.5, Lng: 20}},
		{"east", LatLng{Lat: 10, Lng: 20.5}},
		{"west", LatLng{Lat: 10, Lng: 19.5}},
		{"up", LatLng{Lat: 10.5, Lng: 20}},
		{"down", LatLng{Lat: 9.5, Lng: 20}},
		{"right", LatLng{Lat: 10, Lng: 20.5}},
		{"left", LatLng{Lat: 10, Lng: 19.5}},
		{"NORTH", LatLng{Lat: 10.5, Lng: 20}},
	}

	for _, test := range tests {
		t.Run(test.direction, func(t *testing.T) {
			got, err := Offset(origin, test.direction, w)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != test.expected {
				t.Errorf("Expected %+v, got %+v", test.expected, got)
			}
		})
	}
}

func TestOffset_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "northeast", "forward", "n"} {
		if _, err := Offset(LatLng{}, dir, 1); !errors.Is(err, ErrUnknownDirection) {
			t.Errorf("Expected ErrUnknownDirection for %q, got %v", dir, err)
		}
	}
}

func TestWorld_Step(t *testing.T) {
	storage := newMemStorage()
	notifier := &countingNotifier{}
	world := startScenarioWorld(t, storage, WithNotifier(notifier))
	start := world.Location()

	if err := world.Step("east"); err != nil {
		t.Fatalf("Failed to step: %v", err)
	}
	loc := world.Location()
	if math.Abs(loc.Lng-start.Lng-1e-4) > 1e-12 || loc.Lat != start.Lat {
		t.Errorf("Expected one tile east of %+v, got %+v", start, loc)
	}
	if len(world.Trail()) != 2 {
		t.Errorf("Expected trail of 2, got %d", len(world.Trail()))
	}
	if notifier.moved != 2 {
		t.Errorf("Expected player-moved notification, got %d", notifier.moved)
	}
}

func TestWorld_StepInvalidDirectionAborts(t *testing.T) {
	storage := newMemStorage()
	world := startScenarioWorld(t, storage)
	before := storage.sets
	loc := world.Location()

	if err := world.Step("sideways"); !errors.Is(err, ErrUnknownDirection) {
		t.Fatalf("Expected ErrUnknownDirection, got %v", err)
	}
	if world.Location() != loc {
		t.Error("Expected location unchanged")
	}
	if len(world.Trail()) != 1 {
		t.Error("Expected trail unchanged")
	}
	if storage.sets != before {
		t.Error("Expected nothing persisted")
	}
}

func TestWorld_MoveRejectsInvalidLocation(t *testing.T) {
	storage := newMemStorage()
	world := startScenarioWorld(t, storage)
	before := storage.sets
	loc := world.Location()

	for _, bad := range []LatLng{
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
		{Lat: 91, Lng: 0},
		{Lat: 0, Lng: -181},
	} {
		if err := world.Move(bad); !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("Expected ErrInvalidLocation for %+v, got %v", bad, err)
		}
	}

	if world.Location() != loc || len(world.Trail()) != 1 || storage.sets != before {
		t.Fatal("Expected rejected moves to leave the world untouched")
	}
	if err := world.Move(LatLng{Lat: 0.00045, Lng: 0.00045}); err != nil {
		t.Errorf("Expected a valid move to persist afterwards, got %v", err)
	}
}

func TestWorld_StepOffTheGlobeAborts(t *testing.T) {
	config := createTestConfig()
	config.Start = LatLng{Lat: 89.99995, Lng: 179.99995}
	world, err := NewWorld(config, newMemStorage())
	if err != nil {
		t.Fatalf("Failed to create world: %v", err)
	}
	if err := world.Start(); err != nil {
		t.Fatalf("Failed to start world: %v", err)
	}

	for _, dir := range []string{"north", "east"} {
		if err := world.Step(dir); !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("Step %s: expected ErrInvalidLocation, got %v", dir, err)
		}
	}
	if len(world.Trail()) != 1 {
		t.Error("Expected trail unchanged")
	}
	if err := world.Step("south"); err != nil {
		t.Errorf("Expected stepping back toward the equator to work, got %v", err)
	}
}

func TestWorld_MoveTrailAndPersistence(t *testing.T) {
	storage := newMemStorage()
	world := startScenarioWorld(t, storage)

	points := []LatLng{{Lat: 0.001, Lng: 0.002}, {Lat: -0.003, Lng: 0.004}, {Lat: 0.00035, Lng: 0.00045}}
	for _, p := range points {
		if err := world.Move(p); err != nil {
			t.Fatalf("Failed to move: %v", err)
		}
	}

	trail := world.Trail()
	if len(trail) != 4 {
		t.Fatalf("Expected trail of 4, got %d", len(trail))
	}
	for i, p := range points {
		if trail[i+1] != p {
			t.Errorf("Trail[%d]: expected %+v, got %+v", i+1, p, trail[i+1])
		}
	}
	if storage.records[RecordLocation] != `{"i":0.00035,"j":0.00045}` {
		t.Errorf("Unexpected loc record: %s", storage.records[RecordLocation])
	}
}
