// Package service provides the business logic layer for the Geocache World server.
//
// The service package implements:
//   - Multi-session world management
//   - Movement by direction, by absolute coordinate and from a sensor stream
//   - Token exchange between the player's inventory and live caches
//   - Confirmed resets
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST, websocket and
// MCP transports. SessionManager owns one engine.World per session.
// ConfigManager loads world configurations. EventPublisher receives the
// payload-free player-moved, cache-updated and inventory-changed events.
//
// Concurrency:
//
// A World is single-writer. The service holds one mutex per session and runs
// every call that touches a world under it, so REST requests, MCP tool calls
// and websocket position frames for the same session never interleave.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr, hub)
//
//	info, err := gameService.CreateSession(ctx, "classic", "")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "north")
//	exchange, err := gameService.Take(ctx, info.ID, result.ToCell)
package service
