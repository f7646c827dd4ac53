// Package engine provides the world-generation and persistence core of the
// geocache game.
//
// The engine package implements:
//   - An infinite grid that canonicalizes coordinates into cells
//   - Deterministic, seed-based cache generation from cell coordinates alone
//   - Lazy snapshot/restore of caches so they can be discarded and regenerated
//   - The take/give exchange that conserves every token
//   - World state persistence through an opaque string-keyed Storage
//
// Core Types:
//
// World is the controller a caller drives with Move, Step, Take, Give and
// Reset. Board maps coordinates to cells, Generator decides where caches spawn
// and how many tokens they start with, and CacheStore keeps the snapshot table
// and the set of materialized caches.
//
// Usage:
//
//	config := engine.DefaultWorldConfig()
//	world, err := engine.NewWorld(config, storage)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := world.Start(); err != nil {
//		log.Fatal(err)
//	}
//
//	// Walk north one tile and loot the first cache in range
//	_ = world.Step("north")
//	caches := world.ActiveCaches()
//	ok, err := world.Take(caches[0].Key())
//
// Persistence:
//
// After every committed mutation the World writes four records: cache,
// inventory, loc and trail. When the cache record is absent on Start the world
// is fresh; otherwise all four are validated and restored before any cache
// materializes. A record that fails validation yields ErrCorruptState.
//
// Concurrency:
//
// World is single-writer. Serialize every call through one goroutine or lock.
package engine
