// Command validate checks the world configuration YAML files in ../configs
// (or the directory given as the first argument). It checks:
//   - YAML syntax and the document shape against an embedded JSON schema
//   - Value ranges (tile width, neighborhood radius, spawn chance, start point)
//   - That the start neighborhood actually spawns caches with the configured seed
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/wricardo/geocache-world/game/engine"
	"gopkg.in/yaml.v3"
)

const worldConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "tile_width", "neighborhood_radius", "spawn_chance", "start"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "tile_width": {"type": "number", "exclusiveMinimum": 0},
    "neighborhood_radius": {"type": "integer", "minimum": 1},
    "spawn_chance": {"type": "number", "minimum": 0, "maximum": 1},
    "seed": {"type": ["string", "null"]},
    "start": {
      "type": "object",
      "additionalProperties": false,
      "required": ["lat", "lng"],
      "properties": {
        "lat": {"type": "number"},
        "lng": {"type": "number"}
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("world-config.schema.json", worldConfigSchema)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// toJSONValue converts a decoded YAML document into the value shapes
// encoding/json produces, which is what the schema validator expects
func toJSONValue(doc any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// validateConfig loads and validates a single world configuration file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		result.fail("Invalid YAML: %v", err)
		return result
	}
	value, err := toJSONValue(doc)
	if err != nil {
		result.fail("Unsupported YAML value: %v", err)
		return result
	}

	if err := schema.Validate(value); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			for _, cause := range leafCauses(verr) {
				result.fail("Schema: %s: %s", location(cause.InstanceLocation), cause.Message)
			}
		} else {
			result.fail("Schema: %v", err)
		}
		return result
	}

	config, err := engine.ParseWorldConfig(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	density := sampleStartNeighborhood(config)
	if density.caches == 0 {
		result.fail("No caches spawn within %d cells of the start point", config.NeighborhoodRadius)
		return result
	}

	result.info("Name: %s", config.Name)
	result.info("Tile width: %g° (about %.1f m)", config.TileWidth, config.TileWidth*111_320)
	result.info("Neighborhood: %d cells (radius %d)", density.cells, config.NeighborhoodRadius)
	result.info("Spawn chance: %g (expected %.1f caches, found %d)",
		config.SpawnChance, float64(density.cells)*config.SpawnChance, density.caches)
	result.info("Tokens at start: %d", density.tokens)
	return result
}

// leafCauses flattens a validation error tree to its most specific failures
func leafCauses(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

func location(pointer string) string {
	if pointer == "" {
		return "(root)"
	}
	return pointer
}

type neighborhoodDensity struct {
	cells  int
	caches int
	tokens int
}

// sampleStartNeighborhood counts the caches a fresh world sees at its start point
func sampleStartNeighborhood(config *engine.WorldConfig) neighborhoodDensity {
	board := engine.NewBoard(config.TileWidth, config.NeighborhoodRadius)
	gen := engine.HashGenerator{Seed: config.Seed}

	var d neighborhoodDensity
	for _, cell := range board.Neighborhood(config.Start) {
		d.cells++
		if engine.Exists(gen, *cell, config.SpawnChance) {
			d.caches++
			d.tokens += engine.InitialCount(gen, *cell)
		}
	}
	return d
}

// main validates every *.yaml file in the config directory, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.yaml"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No configuration files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
