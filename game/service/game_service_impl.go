package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/wricardo/geocache-world/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrConfigNotFound       = errors.New("configuration not found")
	ErrResetNotConfirmed    = errors.New("reset requires confirmation")
	ErrInvalidLocation      = engine.ErrInvalidLocation
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	publisher EventPublisher

	// locks serializes every call that touches a session's World
	locks sync.Map
}

// NewGameService creates a new game service instance. When publisher is
// non-nil, world notifications of every session are forwarded to it.
func NewGameService(sessions SessionManager, configs ConfigManager, publisher EventPublisher) GameService {
	s := &gameServiceImpl{
		sessions:  sessions,
		configs:   configs,
		publisher: publisher,
	}
	if publisher != nil {
		sessions.SetNotifierFactory(func(sessionID string) engine.Notifier {
			return &publishingNotifier{sessionID: sessionID, publisher: publisher}
		})
	}
	return s
}

// publishingNotifier adapts engine notifications to named events
type publishingNotifier struct {
	sessionID string
	publisher EventPublisher
}

func (n *publishingNotifier) PlayerMoved()  { n.publisher.Publish(n.sessionID, EventPlayerMoved) }
func (n *publishingNotifier) CacheUpdated() { n.publisher.Publish(n.sessionID, EventCacheUpdated) }
func (n *publishingNotifier) InventoryChanged() {
	n.publisher.Publish(n.sessionID, EventInventoryChanged)
}

func (s *gameServiceImpl) lockFor(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(strings.ToLower(sessionID), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// withSession runs fn with exclusive access to the session's world
func (s *gameServiceImpl) withSession(sessionID string, fn func(sess *Session) error) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	mu := s.lockFor(sess.ID)
	mu.Lock()
	defer mu.Unlock()

	s.sessions.UpdateLastAccessed(sess.ID)
	return fn(sess)
}

// CreateSession creates a new world session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName, sessionID string) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if configName == "" {
		configName = s.configs.DefaultName()
	}
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			var configIDs []string
			if available, listErr := s.configs.ListConfigs(); listErr == nil {
				for _, cfg := range available {
					configIDs = append(configIDs, cfg.ConfigID)
				}
			}
			return nil, fmt.Errorf("config '%s': %w. Available configs: %v", configName, err, configIDs)
		}
		return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
	}

	sess, err := s.sessions.Create(sessionID, configName, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	mu := s.lockFor(sess.ID)
	mu.Lock()
	defer mu.Unlock()
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	var info *SessionInfo
	err := s.withSession(sessionID, func(sess *Session) error {
		info = sessionInfo(sess)
		return nil
	})
	return info, err
}

// ListSessions returns all sessions held in memory
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		mu := s.lockFor(sess.ID)
		mu.Lock()
		result = append(result, sessionInfo(sess))
		mu.Unlock()
	}
	return result, nil
}

// DeleteSession removes a session and its world records
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	return nil
}

// Move steps the player one tile in a direction
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *MoveResult
	err := s.withSession(sessionID, func(sess *Session) error {
		var err error
		result, err = applyMove(sess.World, func(w *engine.World) error { return w.Step(direction) })
		if err == nil {
			result.Message = fmt.Sprintf("Moved %s to cell %s", strings.ToLower(direction), result.ToCell)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MoveTo relocates the player to an absolute coordinate
func (s *gameServiceImpl) MoveTo(ctx context.Context, sessionID string, to engine.LatLng) (*MoveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.moveTo(sessionID, to)
}

func (s *gameServiceImpl) moveTo(sessionID string, to engine.LatLng) (*MoveResult, error) {
	if err := engine.CheckLocation(to); err != nil {
		return nil, err
	}

	var result *MoveResult
	err := s.withSession(sessionID, func(sess *Session) error {
		var err error
		result, err = applyMove(sess.World, func(w *engine.World) error { return w.Move(to) })
		if err == nil {
			result.Message = fmt.Sprintf("Moved to cell %s", result.ToCell)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyMove runs a movement and reports which caches entered or left view
func applyMove(world *engine.World, move func(*engine.World) error) (*MoveResult, error) {
	from := world.Location()
	fromCell := world.Board().CellForPoint(from).Key()
	before := make(map[string]bool)
	for _, cache := range world.ActiveCaches() {
		before[cache.Key()] = true
	}

	if err := move(world); err != nil {
		return nil, err
	}

	result := &MoveResult{
		Success:  true,
		From:     from,
		To:       world.Location(),
		FromCell: fromCell,
		ToCell:   world.Board().CellForPoint(world.Location()).Key(),
	}
	for _, cache := range world.ActiveCaches() {
		if before[cache.Key()] {
			delete(before, cache.Key())
			continue
		}
		result.Entered = append(result.Entered, cache.Key())
	}
	for key := range before {
		result.Left = append(result.Left, key)
	}
	result.WorldState = world.GetState()
	return result, nil
}

// Take moves one token from a live cache into the inventory
func (s *gameServiceImpl) Take(ctx context.Context, sessionID, cellKey string) (*ExchangeResult, error) {
	return s.exchange(ctx, sessionID, cellKey, true)
}

// Give moves one token from the inventory into a live cache
func (s *gameServiceImpl) Give(ctx context.Context, sessionID, cellKey string) (*ExchangeResult, error) {
	return s.exchange(ctx, sessionID, cellKey, false)
}

func (s *gameServiceImpl) exchange(ctx context.Context, sessionID, cellKey string, take bool) (*ExchangeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell, err := engine.ParseCellKey(cellKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrCacheNotMaterialized, err)
	}
	cellKey = cell.Key()

	var result *ExchangeResult
	err = s.withSession(sessionID, func(sess *Session) error {
		world := sess.World
		var ok bool
		var err error
		if take {
			ok, err = world.Take(cellKey)
		} else {
			ok, err = world.Give(cellKey)
		}
		if err != nil {
			return err
		}

		cache, _ := world.Cache(cellKey)
		inventory := world.Inventory()
		result = &ExchangeResult{
			Success:    ok,
			CellKey:    cellKey,
			CacheSize:  cache.Len(),
			Inventory:  len(inventory),
			WorldState: world.GetState(),
		}

		switch {
		case ok && take:
			token := inventory[len(inventory)-1]
			result.Token = &token
			result.Message = fmt.Sprintf("Took %s from cache %s", token, cellKey)
		case ok:
			token := cache.Tokens[len(cache.Tokens)-1]
			result.Token = &token
			result.Message = fmt.Sprintf("Gave %s to cache %s", token, cellKey)
		case take:
			result.Message = fmt.Sprintf("Cache %s is empty", cellKey)
		default:
			result.Message = "Inventory is empty"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reset wipes the session's world back to its deterministic baseline
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string, confirm bool) (*engine.WorldState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !confirm {
		return nil, ErrResetNotConfirmed
	}

	var state *engine.WorldState
	err := s.withSession(sessionID, func(sess *Session) error {
		if err := sess.World.Reset(); err != nil {
			return err
		}
		state = sess.World.GetState()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Track feeds sensor positions into the session until ctx is cancelled or
// updates is closed. A position already received is always applied.
func (s *gameServiceImpl) Track(ctx context.Context, sessionID string, updates <-chan engine.LatLng) error {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	for {
		select {
		case <-ctx.Done():
			// Positions already buffered were delivered before the cancel
			for {
				select {
				case p, ok := <-updates:
					if !ok {
						return ctx.Err()
					}
					if err := s.track(sessionID, p); err != nil {
						return err
					}
				default:
					return ctx.Err()
				}
			}
		case p, ok := <-updates:
			if !ok {
				return nil
			}
			if err := s.track(sessionID, p); err != nil {
				return err
			}
		}
	}
}

// track applies one sensor position. Only a vanished session stops tracking.
func (s *gameServiceImpl) track(sessionID string, p engine.LatLng) error {
	if _, err := s.moveTo(sessionID, p); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		log.Printf("Track %s: dropping position %g,%g: %v", sessionID, p.Lat, p.Lng, err)
	}
	return nil
}

// GetWorldState returns the renderable state of a session's world
func (s *gameServiceImpl) GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	var state *engine.WorldState
	err := s.withSession(sessionID, func(sess *Session) error {
		state = sess.World.GetState()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ListConfigs returns available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.WorldConfig, error) {
	return s.configs.LoadConfig(configName)
}

func sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigName,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		WorldState:     sess.World.GetState(),
		WorldConfig:    sess.Config,
	}
}
