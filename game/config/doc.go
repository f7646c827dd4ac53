// Package config provides configuration management for the Geocache World server.
//
// The config package handles:
//   - Loading world configurations from YAML files
//   - Default configuration management and discovery
//   - Process settings read from the environment
//
// Configuration Format:
//
// World configurations are YAML files in the configs directory. The file name
// without its extension is the config ID used for session creation:
//
//	name: Classic
//	description: 1e-4 degree tiles around Oakes College
//	tile_width: 0.0001
//	neighborhood_radius: 8
//	spawn_chance: 0.1
//	seed: ""
//	start:
//	  lat: 36.98949379578401
//	  lng: -122.06277128548504
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	worldConfig, err := manager.LoadConfig("dense")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// Settings:
//
// LoadSettings reads GEOCACHE_* variables (host, port, directories, storage
// backend, debug, ngrok) with caarlos0/env.
package config
