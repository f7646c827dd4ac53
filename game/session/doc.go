// Package session provides session management and world persistence for the
// Geocache World server.
//
// Every session owns one engine.World. The world reads and writes its four
// records (cache, inventory, loc, trail) through an engine.Storage scoped to
// the session ID, and the manager stores the session metadata next to them.
//
// Persistence Backends:
//
//   - MemoryPersistence keeps everything in process memory
//   - FilePersistence writes <id>.json metadata and a zstd-compressed
//     <id>.world.zst record file per session
//   - SQLitePersistence keeps metadata and records in one SQLite database
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("data/sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//
//	// Create and start a new session
//	sess, err := manager.Create("", "classic", config)
//
//	// Retrieve an existing session, restoring it from storage if needed
//	sess, err = manager.Get(sessionID)
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters. Caller-chosen IDs are lowercased and
// may contain only letters, digits, '-' and '_', so they are safe as file
// names.
//
// Concurrency:
//
// The manager itself is safe for concurrent use. A World is not: callers
// serialize access per session, which the service package does.
package session
