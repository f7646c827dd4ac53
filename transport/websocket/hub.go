package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/geocache-world/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Position frames buffered per connection before the read loop waits.
	positionBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is sent to clients. Events carry no payload: clients re-read the
// world state when they see one.
type Message struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
}

// Frame is a message received from a client
type Frame struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Tracker consumes a stream of sensor positions for a session
type Tracker interface {
	Track(ctx context.Context, sessionID string, updates <-chan engine.LatLng) error
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string

	positions chan engine.LatLng
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Outbound events for clients
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	trackerMu sync.RWMutex
	tracker   Tracker
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetTracker routes position frames from clients to t
func (h *Hub) SetTracker(t Tracker) {
	h.trackerMu.Lock()
	defer h.trackerMu.Unlock()
	h.tracker = t
}

func (h *Hub) getTracker() Tracker {
	h.trackerMu.RLock()
	defer h.trackerMu.RUnlock()
	return h.tracker
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and attaches the client to a session. If a
// tracker is set, position frames from the client drive the player.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		positions: make(chan engine.LatLng, positionBuffer),
	}

	client.hub.register <- client

	if tracker := h.getTracker(); tracker != nil {
		go func() {
			defer cancel()
			if err := tracker.Track(ctx, sessionID, client.positions); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Tracking for session %s stopped: %v", sessionID, err)
			}
		}()
	} else {
		cancel()
	}

	go client.writePump()
	go client.readPump(ctx)
}

// Publish queues a payload-free event for every client of a session
func (h *Hub) Publish(sessionID, event string) {
	h.BroadcastEvent(sessionID, event, nil)
}

// BroadcastEvent sends a custom event with data to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data any) {
	h.broadcast <- &Message{SessionID: sessionID, Event: event, Data: data}
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	log.Printf("Client registered for session %s (total clients: %d)",
		client.sessionID, len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
			}

			log.Printf("Client unregistered from session %s (remaining clients: %d)",
				client.sessionID, len(clients))
		}
	}
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	if clients, ok := h.sessions[message.SessionID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Client's send channel is full, drop it
				h.unregisterClient(client)
			}
		}
	}
}

// parsePosition decodes a position frame
func parsePosition(raw []byte) (engine.LatLng, bool) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type != "position" {
		return engine.LatLng{}, false
	}
	if math.IsNaN(f.Lat) || math.IsNaN(f.Lng) {
		return engine.LatLng{}, false
	}
	return engine.LatLng{Lat: f.Lat, Lng: f.Lng}, true
}

// readPump forwards position frames to the tracker until the connection
// closes. Closing positions lets the tracker apply what is still buffered.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		close(c.positions)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		p, ok := parsePosition(raw)
		if !ok {
			log.Printf("Ignoring frame from session %s: %s", c.sessionID, raw)
			continue
		}
		select {
		case c.positions <- p:
		case <-ctx.Done():
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
