package engine

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWorldConfig(t *testing.T) {
	config := DefaultWorldConfig()
	if err := ValidateWorldConfig(config); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if config.TileWidth != 1e-4 || config.SpawnChance != 0.1 || config.NeighborhoodRadius != 8 {
		t.Errorf("Unexpected defaults: %+v", config)
	}
}

func TestValidateWorldConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *WorldConfig)
	}{
		{"missing name", func(c *WorldConfig) { c.Name = "" }},
		{"zero tile width", func(c *WorldConfig) { c.TileWidth = 0 }},
		{"huge tile width", func(c *WorldConfig) { c.TileWidth = 2 }},
		{"nan tile width", func(c *WorldConfig) { c.TileWidth = math.NaN() }},
		{"zero radius", func(c *WorldConfig) { c.NeighborhoodRadius = 0 }},
		{"huge radius", func(c *WorldConfig) { c.NeighborhoodRadius = MaxRadius + 1 }},
		{"negative spawn chance", func(c *WorldConfig) { c.SpawnChance = -0.1 }},
		{"spawn chance above one", func(c *WorldConfig) { c.SpawnChance = 1.5 }},
		{"latitude out of range", func(c *WorldConfig) { c.Start.Lat = 91 }},
		{"longitude out of range", func(c *WorldConfig) { c.Start.Lng = -181 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultWorldConfig()
			test.mutate(config)
			if err := ValidateWorldConfig(config); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := ValidateWorldConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestParseWorldConfig(t *testing.T) {
	data := []byte(`
name: dense
description: Lots of caches
tile_width: 0.0001
neighborhood_radius: 4
spawn_chance: 0.3
seed: dense-v1
start:
  lat: 36.9895
  lng: -122.0628
`)

	config, err := ParseWorldConfig(data)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if config.Name != "dense" || config.NeighborhoodRadius != 4 || config.SpawnChance != 0.3 || config.Seed != "dense-v1" {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.Start.Lat != 36.9895 || config.Start.Lng != -122.0628 {
		t.Errorf("Unexpected start: %+v", config.Start)
	}

	if _, err := ParseWorldConfig([]byte("name: [")); err == nil {
		t.Error("Expected YAML error")
	}
	if _, err := ParseWorldConfig([]byte("name: x\ntile_width: 0\n")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestLoadWorldConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.yaml")
	content := "name: tiny\ndescription: tiny\ntile_width: 0.001\nneighborhood_radius: 1\nspawn_chance: 1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadWorldConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.TileWidth != 0.001 {
		t.Errorf("Expected tile width 0.001, got %g", config.TileWidth)
	}

	if _, err := LoadWorldConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
