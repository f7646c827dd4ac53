// Package api provides the HTTP REST API for the Geocache World server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id":"classic","session_id":"walk"}, both optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session info with world state and config
//   - DELETE /api/sessions/{id} - Delete a session and its records
//
// World:
//   - GET /api/sessions/{id}/state - Full world state
//   - GET /api/sessions/{id}/trail - Movement trail
//   - GET /api/sessions/{id}/inventory - Tokens carried, oldest first
//   - POST /api/sessions/{id}/move - Step one cell ({"direction":"north"})
//   - POST /api/sessions/{id}/move-to - Jump to a coordinate ({"lat":36.98,"lng":-122.06})
//   - GET /api/sessions/{id}/caches/{cell} - One live cache by "i,j" key
//   - POST /api/sessions/{id}/caches/{cell}/take - Move the newest token from the cache to the player
//   - POST /api/sessions/{id}/caches/{cell}/give - Move the newest token from the player to the cache
//   - POST /api/sessions/{id}/reset - Start over ({"confirm":true} or ?confirm=true)
//
// Configuration:
//   - GET /api/configs - List world configurations
//   - GET /api/configs/{name} - Load one configuration
//
// Other:
//   - GET /ws?session={id} - WebSocket for events and position frames
//   - GET /health - Liveness check
//
// A take or give that moves nothing still answers 200 with "success":false.
//
// Error Handling:
//
// Errors are returned as JSON with a status derived from the error kind:
//
//	{"error": "session not found"}
//
// Unknown sessions and configs are 404, bad directions, locations and
// unconfirmed resets are 400, exchanges at a cell with no live cache are 409,
// and corrupt persisted state is 500.
package api
