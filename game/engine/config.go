package engine

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldConfig holds the parameters that shape a generated world
type WorldConfig struct {
	Name               string  `yaml:"name" json:"name"`
	Description        string  `yaml:"description" json:"description"`
	TileWidth          float64 `yaml:"tile_width" json:"tile_width"`
	NeighborhoodRadius int     `yaml:"neighborhood_radius" json:"neighborhood_radius"`
	SpawnChance        float64 `yaml:"spawn_chance" json:"spawn_chance"`
	Seed               string  `yaml:"seed" json:"seed"`
	Start              LatLng  `yaml:"start" json:"start"`
}

// DefaultWorldConfig returns the classroom defaults: Oakes College, 1e-4 degree
// tiles, an 8-tile neighborhood radius and a 10% spawn chance.
func DefaultWorldConfig() *WorldConfig {
	return &WorldConfig{
		Name:               "classic",
		Description:        "Oakes College classroom, 1e-4 degree tiles",
		TileWidth:          1e-4,
		NeighborhoodRadius: 8,
		SpawnChance:        0.1,
		Start:              LatLng{Lat: 36.98949379578401, Lng: -122.06277128548504},
	}
}

// ValidateWorldConfig validates a world configuration for correctness
func ValidateWorldConfig(config *WorldConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if math.IsNaN(config.TileWidth) || config.TileWidth < MinTileWidth || config.TileWidth > MaxTileWidth {
		return fmt.Errorf("%w: tile_width must be between %g and %g, got %g",
			ErrInvalidConfig, MinTileWidth, MaxTileWidth, config.TileWidth)
	}
	if config.NeighborhoodRadius < MinRadius || config.NeighborhoodRadius > MaxRadius {
		return fmt.Errorf("%w: neighborhood_radius must be between %d and %d, got %d",
			ErrInvalidConfig, MinRadius, MaxRadius, config.NeighborhoodRadius)
	}
	if math.IsNaN(config.SpawnChance) || config.SpawnChance < 0 || config.SpawnChance > 1 {
		return fmt.Errorf("%w: spawn_chance must be between 0 and 1, got %g", ErrInvalidConfig, config.SpawnChance)
	}
	if config.Start.Lat < -90 || config.Start.Lat > 90 {
		return fmt.Errorf("%w: start.lat must be between -90 and 90, got %g", ErrInvalidConfig, config.Start.Lat)
	}
	if config.Start.Lng < -180 || config.Start.Lng > 180 {
		return fmt.Errorf("%w: start.lng must be between -180 and 180, got %g", ErrInvalidConfig, config.Start.Lng)
	}
	if err := CheckLocation(config.Start); err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ParseWorldConfig decodes and validates a YAML world configuration
func ParseWorldConfig(data []byte) (*WorldConfig, error) {
	var config WorldConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse world config: %w", err)
	}
	if err := ValidateWorldConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadWorldConfig loads a world configuration from a YAML file
func LoadWorldConfig(filename string) (*WorldConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseWorldConfig(data)
}
