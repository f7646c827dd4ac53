package service

import (
	"time"

	"github.com/wricardo/geocache-world/game/engine"
)

// Notification event names sent to publishers. They carry no payload.
const (
	EventPlayerMoved      = "player-moved"
	EventCacheUpdated     = "cache-updated"
	EventInventoryChanged = "inventory-changed"
)

// SessionInfo provides information about a world session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	WorldState     *engine.WorldState  `json:"world_state"`
	WorldConfig    *engine.WorldConfig `json:"world_config"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success    bool               `json:"success"`
	From       engine.LatLng      `json:"from"`
	To         engine.LatLng      `json:"to"`
	FromCell   string             `json:"from_cell"`
	ToCell     string             `json:"to_cell"`
	Entered    []string           `json:"entered,omitempty"`
	Left       []string           `json:"left,omitempty"`
	WorldState *engine.WorldState `json:"world_state"`
	Message    string             `json:"message"`
}

// ExchangeResult contains the result of a take or give
type ExchangeResult struct {
	Success    bool               `json:"success"`
	CellKey    string             `json:"cell"`
	Token      *engine.Token      `json:"token,omitempty"`
	CacheSize  int                `json:"cache_size"`
	Inventory  int                `json:"inventory_size"`
	WorldState *engine.WorldState `json:"world_state"`
	Message    string             `json:"message"`
}

// ConfigInfo provides information about a world configuration
type ConfigInfo struct {
	Filename           string  `json:"filename"`
	ConfigID           string  `json:"config_id"` // The identifier to use for session creation
	Name               string  `json:"name"`      // Display name
	Description        string  `json:"description"`
	TileWidth          float64 `json:"tile_width"`
	NeighborhoodRadius int     `json:"neighborhood_radius"`
	SpawnChance        float64 `json:"spawn_chance"`
}
