package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/geocache-world/game/engine"
)

func createValidConfig() *engine.WorldConfig {
	return &engine.WorldConfig{
		Name:               "Test Config",
		Description:        "Test configuration",
		TileWidth:          1e-4,
		NeighborhoodRadius: 3,
		SpawnChance:        0.2,
		Seed:               "config-tests",
		Start:              engine.LatLng{Lat: 36.9895, Lng: -122.0628},
	}
}

func writeConfigFile(t *testing.T, dir, name string, config *engine.WorldConfig) {
	t.Helper()
	data, err := yaml.Marshal(config)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "classic", createValidConfig())

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.DefaultName() != "classic" {
			t.Errorf("Expected classic as default, got %q", manager.DefaultName())
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in default", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed even without config files, got error: %v", err)
		}
		if manager.GetDefault() == nil {
			t.Fatal("Expected built-in default config")
		}
		if err := engine.ValidateWorldConfig(manager.GetDefault()); err != nil {
			t.Errorf("Expected built-in default to be valid: %v", err)
		}
	})

	t.Run("first valid config when classic is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "zeta", createValidConfig())
		writeConfigFile(t, dir, "alpha", createValidConfig())

		manager, _ := NewManager(dir)
		if manager.DefaultName() != "alpha" {
			t.Errorf("Expected alpha as default, got %q", manager.DefaultName())
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "good", createValidConfig())
	os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unclosed"), 0644)
	bad := createValidConfig()
	bad.SpawnChance = 2
	writeConfigFile(t, dir, "bad", bad)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	tests := []struct {
		name    string
		wantErr error
	}{
		{"good", nil},
		{"good.yaml", nil},
		{"missing", ErrConfigNotFound},
		{"../good", ErrConfigNotFound},
		{"bad", ErrInvalidConfig},
		{"broken", ErrInvalidConfig},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config, err := manager.LoadConfig(test.name)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("Expected %v, got %v", test.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if config.Seed != "config-tests" {
				t.Errorf("Expected seed config-tests, got %q", config.Seed)
			}
		})
	}
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "b", createValidConfig())
	a := createValidConfig()
	a.Name = "A"
	a.NeighborhoodRadius = 5
	writeConfigFile(t, dir, "a", a)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644)
	os.WriteFile(filepath.Join(dir, "invalid.yaml"), []byte("tile_width: -1"), 0644)

	manager, _ := NewManager(dir)
	configs, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("Expected 2 valid configs, got %d", len(configs))
	}
	if configs[0].ConfigID != "a" || configs[0].Filename != "a.yaml" || configs[0].NeighborhoodRadius != 5 {
		t.Errorf("Unexpected first config info: %+v", configs[0])
	}
	if configs[1].ConfigID != "b" {
		t.Errorf("Expected b second, got %s", configs[1].ConfigID)
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, _ := NewManager(dir)

	config := createValidConfig()
	config.Name = "Saved"
	if err := manager.SaveConfig("saved", config); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	manager.RefreshCache()
	loaded, err := manager.LoadConfig("saved")
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if *loaded != *config {
		t.Errorf("Expected %+v, got %+v", config, loaded)
	}

	invalid := createValidConfig()
	invalid.TileWidth = 0
	if err := manager.SaveConfig("invalid", invalid); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if err := manager.SaveConfig("../escape", createValidConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for path name, got %v", err)
	}
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	other := createValidConfig()
	other.Name = "Other"
	writeConfigFile(t, dir, "other", other)

	manager, _ := NewManager(dir)
	if err := manager.SetDefault("other"); err != nil {
		t.Fatalf("Failed to set default: %v", err)
	}
	if manager.GetDefault().Name != "Other" || manager.DefaultName() != "other" {
		t.Errorf("Expected other as default, got %q", manager.DefaultName())
	}
	if err := manager.SetDefault("missing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}

	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache failed: %v", err)
	}
	if manager.DefaultName() != "other" {
		t.Errorf("Expected refresh to keep other as default, got %q", manager.DefaultName())
	}

	os.Remove(filepath.Join(dir, "other.yaml"))
	manager.RefreshCache()
	if manager.DefaultName() != "classic" {
		t.Errorf("Expected fallback to classic once other is gone, got %q", manager.DefaultName())
	}
}

func TestManager_CachingBehavior(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "cached", createValidConfig())
	manager, _ := NewManager(dir)

	first, _ := manager.LoadConfig("cached")
	changed := createValidConfig()
	changed.Seed = "changed"
	writeConfigFile(t, dir, "cached", changed)

	second, _ := manager.LoadConfig("cached")
	if first != second {
		t.Error("Expected cached instance before refresh")
	}

	manager.RefreshCache()
	third, _ := manager.LoadConfig("cached")
	if third.Seed != "changed" {
		t.Errorf("Expected refreshed config from disk, got seed %q", third.Seed)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	manager, _ := NewManager(dir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.LoadConfig("classic"); err != nil {
				t.Errorf("Concurrent load failed: %v", err)
			}
			manager.ListConfigs()
			manager.GetDefault()
		}()
	}
	wg.Wait()
}

func TestManager_ShippedConfigs(t *testing.T) {
	manager, err := NewManager(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("Failed to open shipped configs: %v", err)
	}
	configs, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(configs) < 3 {
		t.Errorf("Expected every shipped config to be valid, got %d", len(configs))
	}
	if manager.GetDefault().Start.Lat != 36.98949379578401 {
		t.Errorf("Expected classic start location, got %+v", manager.GetDefault().Start)
	}
}
