package service

import (
	"context"
	"time"

	"github.com/wricardo/geocache-world/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName, sessionID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// World Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	MoveTo(ctx context.Context, sessionID string, to engine.LatLng) (*MoveResult, error)
	Take(ctx context.Context, sessionID, cellKey string) (*ExchangeResult, error)
	Give(ctx context.Context, sessionID, cellKey string) (*ExchangeResult, error)
	Reset(ctx context.Context, sessionID string, confirm bool) (*engine.WorldState, error)

	// Sensor stream
	Track(ctx context.Context, sessionID string, updates <-chan engine.LatLng) error

	// World State
	GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.WorldConfig, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.WorldConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	SetNotifierFactory(factory NotifierFactory)
}

// ConfigManager handles world configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.WorldConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.WorldConfig
	DefaultName() string
}

// EventPublisher delivers world notifications to observers of a session
type EventPublisher interface {
	Publish(sessionID, event string)
}

// NotifierFactory builds the notifier a session's world reports to
type NotifierFactory func(sessionID string) engine.Notifier

// Session represents an active world session
type Session struct {
	ID             string
	ConfigName     string
	World          *engine.World
	Config         *engine.WorldConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
