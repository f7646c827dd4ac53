package session

import (
	"time"

	"github.com/wricardo/geocache-world/game/engine"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// SaveMeta persists a session's metadata
	SaveMeta(meta *SessionMeta) error

	// LoadMeta retrieves a session's metadata by ID
	LoadMeta(id string) (*SessionMeta, error)

	// Storage returns the record store backing the session's world
	Storage(id string) (engine.Storage, error)

	// Delete removes a session and its world records
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// SessionMeta is everything about a session except its world records.
// The world config is stored whole so a session keeps its geometry and seed
// even if the config file later changes.
type SessionMeta struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	Config         *engine.WorldConfig `json:"config"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
}
