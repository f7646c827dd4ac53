// Package websocket provides WebSocket transport for the Geocache World server.
//
// The package uses a hub-and-spoke model where a central Hub manages all
// connections, grouped by session. Each client has a read goroutine and a
// write goroutine.
//
// Message Protocol:
//
// Outgoing messages are notifications without payload. Clients re-read the
// world state over REST when they receive one:
//
//	{"session_id":"ab12","event":"player-moved"}
//	{"session_id":"ab12","event":"cache-updated"}
//	{"session_id":"ab12","event":"inventory-changed"}
//
// Incoming frames report the device position. When a Tracker is set, every
// connection streams its positions to Tracker.Track, which moves the player.
// Closing the connection cancels tracking:
//
//	{"type":"position","lat":36.9895,"lng":-122.0628}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	hub.SetTracker(gameService)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
