package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = service.ErrSessionAlreadyExists
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Manager handles world session lifecycle. Every session owns one World
// whose records live in the persistence layer under the session ID.
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	notifiers   service.NotifierFactory
	mu          sync.RWMutex
}

// NewManager creates a session manager that keeps everything in memory
func NewManager() *Manager {
	return NewManagerWithPersistence(NewMemoryPersistence())
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
	}
}

// SetNotifierFactory sets how worlds created or loaded from now on report changes
func (m *Manager) SetNotifierFactory(factory service.NotifierFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = factory
}

// Create creates and starts a new session with the given ID and configuration
func (m *Manager) Create(id, configName string, config *engine.WorldConfig) (*service.Session, error) {
	if id == "" {
		id = m.generateSessionID()
	}
	id = strings.ToLower(id)
	if !validSessionID(id) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists || m.persistence.Exists(id) {
		return nil, ErrSessionAlreadyExists
	}

	now := time.Now()
	meta := &SessionMeta{
		ID:             id,
		ConfigName:     configName,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	session, err := m.open(meta)
	if err != nil {
		return nil, err
	}
	if err := m.persistence.SaveMeta(meta); err != nil {
		// Seeded records without metadata would be restored by a later Create
		if storage, serr := m.persistence.Storage(id); serr == nil {
			if cerr := storage.Clear(); cerr != nil {
				log.Printf("Warning: Failed to clear records of unsaved session %s: %v", id, cerr)
			}
		}
		return nil, fmt.Errorf("failed to persist session %s: %w", id, err)
	}

	m.sessions[id] = session
	return session, nil
}

// open builds the session's world on its storage and starts it, which
// either seeds fresh records or restores the persisted ones
func (m *Manager) open(meta *SessionMeta) (*service.Session, error) {
	storage, err := m.persistence.Storage(meta.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage for %s: %w", meta.ID, err)
	}

	var opts []engine.Option
	if m.notifiers != nil {
		opts = append(opts, engine.WithNotifier(m.notifiers(meta.ID)))
	}

	world, err := engine.NewWorld(meta.Config, storage, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}
	if err := world.Start(); err != nil {
		return nil, fmt.Errorf("failed to start world for %s: %w", meta.ID, err)
	}

	return &service.Session{
		ID:             meta.ID,
		ConfigName:     meta.ConfigName,
		World:          world,
		Config:         meta.Config,
		CreatedAt:      meta.CreatedAt,
		LastAccessedAt: meta.LastAccessedAt,
	}, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from
// persistence if it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	id = strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	if !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	session, err := m.load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}
	m.sessions[id] = session
	return session, nil
}

func (m *Manager) load(id string) (*service.Session, error) {
	meta, err := m.persistence.LoadMeta(id)
	if err != nil {
		return nil, err
	}
	if meta.Config == nil {
		return nil, fmt.Errorf("session %s has no world config", id)
	}
	return m.open(meta)
}

// List returns all sessions held in memory
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	id = strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.sessions[id]
	delete(m.sessions, id)

	if m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = strings.ToLower(id)
	if _, exists := m.sessions[id]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()

	if err := m.persistence.SaveMeta(metaOf(session)); err != nil {
		log.Printf("Warning: Failed to persist session %s after access update: %v", id, err)
	}
	return nil
}

// CleanupExpiredSessions drops sessions from memory that haven't been accessed
// in the given duration. Their records stay in persistence.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of sessions in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[id]; exists {
			continue
		}

		session, err := m.load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}
		m.sessions[id] = session
		loadedCount++
	}

	if loadedCount > 0 {
		log.Printf("Loaded %d persisted sessions from storage", loadedCount)
	}
	return nil
}

// SaveAllSessions writes the metadata of every in-memory session. World
// records are persisted by the worlds themselves on each mutation.
func (m *Manager) SaveAllSessions() error {
	m.mu.RLock()
	metas := make([]*SessionMeta, 0, len(m.sessions))
	for _, session := range m.sessions {
		metas = append(metas, metaOf(session))
	}
	m.mu.RUnlock()

	errorCount := 0
	for _, meta := range metas {
		if err := m.persistence.SaveMeta(meta); err != nil {
			log.Printf("Warning: Failed to save session %s: %v", meta.ID, err)
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}

func metaOf(session *service.Session) *SessionMeta {
	return &SessionMeta{
		ID:             session.ID,
		ConfigName:     session.ConfigName,
		Config:         session.Config,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	}
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// validSessionID accepts IDs that are safe as file names and table keys
func validSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
