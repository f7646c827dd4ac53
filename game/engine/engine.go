package engine

import (
	"fmt"
)

// World orchestrates the grid, generator, cache store and economy for one player.
// It is not safe for concurrent use; callers serialize every method call.
type World struct {
	config    *WorldConfig
	board     *Board
	gen       Generator
	store     *CacheStore
	storage   Storage
	notifier  Notifier
	state     State
	location  LatLng
	trail     []LatLng
	inventory Inventory
	active    []*Cache
}

// Option configures a World
type Option func(*World)

// WithGenerator replaces the hash generator, mainly for tests
func WithGenerator(gen Generator) Option {
	return func(w *World) {
		w.gen = gen
	}
}

// WithNotifier sets the receiver of render notifications
func WithNotifier(n Notifier) Option {
	return func(w *World) {
		w.notifier = n
	}
}

// NewWorld creates an uninitialized world. Call Start before anything else.
func NewWorld(config *WorldConfig, storage Storage, opts ...Option) (*World, error) {
	if err := ValidateWorldConfig(config); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}

	w := &World{
		config:   config,
		board:    NewBoard(config.TileWidth, config.NeighborhoodRadius),
		gen:      HashGenerator{Seed: config.Seed},
		storage:  storage,
		notifier: NopNotifier{},
		state:    Uninitialized,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.store = NewCacheStore(w.gen, config.SpawnChance)
	return w, nil
}

// SetNotifier replaces the notification receiver
func (w *World) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier{}
	}
	w.notifier = n
}

// Start restores the world from storage, or seeds storage when no cache
// record exists, and materializes the neighborhood around the player.
func (w *World) Start() error {
	if w.state == Active {
		return ErrAlreadyStarted
	}

	ps, found, err := loadRecords(w.storage)
	if err != nil {
		return err
	}

	if !found {
		w.location = w.config.Start
		w.trail = []LatLng{w.location}
		w.inventory = Inventory{Tokens: []Token{}}
		w.store.Clear()
	} else {
		if err := w.store.Restore(ps.Caches); err != nil {
			return fmt.Errorf("%w: cache record: %v", ErrCorruptState, err)
		}
		w.location = ps.Location
		w.trail = ps.Trail
		w.inventory = Inventory{Tokens: ps.Inventory}
		if w.inventory.Tokens == nil {
			w.inventory.Tokens = []Token{}
		}
	}

	w.refreshNeighborhood()
	w.state = Active

	if !found {
		if err := w.persist(); err != nil {
			return err
		}
	}

	w.notifier.PlayerMoved()
	w.notifier.CacheUpdated()
	w.notifier.InventoryChanged()
	return nil
}

// Move relocates the player, rebuilds the neighborhood and persists.
// An invalid location aborts without touching any state.
func (w *World) Move(to LatLng) error {
	if w.state != Active {
		return ErrNotStarted
	}
	if err := CheckLocation(to); err != nil {
		return err
	}

	w.location = to
	w.trail = append(w.trail, to)
	w.refreshNeighborhood()

	if err := w.persist(); err != nil {
		return err
	}
	w.notifier.PlayerMoved()
	w.notifier.CacheUpdated()
	return nil
}

// Take moves one token from the cache at cellKey into the inventory.
// An empty cache is a no-op reported as false, not an error.
func (w *World) Take(cellKey string) (bool, error) {
	return w.exchange(cellKey, Take)
}

// Give moves one token from the inventory into the cache at cellKey.
// An empty inventory is a no-op reported as false, not an error.
func (w *World) Give(cellKey string) (bool, error) {
	return w.exchange(cellKey, Give)
}

func (w *World) exchange(cellKey string, transfer func(*Cache, *Inventory) bool) (bool, error) {
	if w.state != Active {
		return false, ErrNotStarted
	}
	cache, err := w.liveCache(cellKey)
	if err != nil {
		return false, err
	}
	if !transfer(cache, &w.inventory) {
		return false, nil
	}
	if err := w.store.Capture(cache); err != nil {
		return true, err
	}
	if err := w.persist(); err != nil {
		return true, err
	}
	w.notifier.CacheUpdated()
	w.notifier.InventoryChanged()
	return true, nil
}

// Reset wipes storage, snapshots, inventory and trail, then rebuilds the
// neighborhood from the deterministic baseline. It cannot be undone.
func (w *World) Reset() error {
	if w.state != Active {
		return ErrNotStarted
	}

	// Nothing in memory changes unless storage was cleared
	if err := w.storage.Clear(); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}

	for _, cache := range w.active {
		w.store.Dematerialize(cache)
	}
	w.active = nil
	w.store.Clear()
	w.inventory = Inventory{Tokens: []Token{}}
	w.trail = []LatLng{w.location}
	w.refreshNeighborhood()

	if err := w.persist(); err != nil {
		return err
	}
	w.notifier.PlayerMoved()
	w.notifier.CacheUpdated()
	w.notifier.InventoryChanged()
	return nil
}

// refreshNeighborhood dematerializes caches that left the window and
// materializes every cache inside it, in neighborhood order
func (w *World) refreshNeighborhood() {
	cells := w.board.Neighborhood(w.location)
	inside := make(map[string]bool, len(cells))
	for _, cell := range cells {
		inside[cell.Key()] = true
	}

	for _, cache := range w.active {
		if !inside[cache.Key()] {
			w.store.Dematerialize(cache)
		}
	}

	active := make([]*Cache, 0, len(w.active))
	for _, cell := range cells {
		if cache, ok := w.store.Materialize(cell); ok {
			active = append(active, cache)
		}
	}
	w.active = active
}

func (w *World) liveCache(cellKey string) (*Cache, error) {
	cell, err := ParseCellKey(cellKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheNotMaterialized, err)
	}
	cache, ok := w.store.Live(cell.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheNotMaterialized, cell.Key())
	}
	return cache, nil
}

// persist writes all four records together
func (w *World) persist() error {
	records, err := encodeRecords(persistedState{
		Caches:    w.store.Entries(),
		Inventory: w.inventory.Tokens,
		Location:  w.location,
		Trail:     w.trail,
	})
	if err != nil {
		return err
	}
	if err := w.storage.Set(records); err != nil {
		return fmt.Errorf("persist world: %w", err)
	}
	return nil
}

// GetConfig returns the world configuration
func (w *World) GetConfig() *WorldConfig {
	return w.config
}

// Board returns the grid index
func (w *World) Board() *Board {
	return w.board
}

// Generator returns the deterministic generator in use
func (w *World) Generator() Generator {
	return w.gen
}

// State returns the lifecycle state
func (w *World) State() State {
	return w.state
}

// Location returns the player's current coordinate
func (w *World) Location() LatLng {
	return w.location
}

// Trail returns a copy of the location history
func (w *World) Trail() []LatLng {
	return append([]LatLng(nil), w.trail...)
}

// Inventory returns a copy of the player's tokens
func (w *World) Inventory() []Token {
	return append([]Token{}, w.inventory.Tokens...)
}

// ActiveCaches returns the live caches in neighborhood order
func (w *World) ActiveCaches() []*Cache {
	return append([]*Cache(nil), w.active...)
}

// Cache returns the live cache at cellKey
func (w *World) Cache(cellKey string) (*Cache, bool) {
	cache, err := w.liveCache(cellKey)
	if err != nil {
		return nil, false
	}
	return cache, true
}

// TotalTokens counts tokens across the inventory and every live cache
func (w *World) TotalTokens() int {
	return CountTokens(w.active, &w.inventory)
}

// GetState renders the full world state for a renderer
func (w *World) GetState() *WorldState {
	caches := make([]CacheView, 0, len(w.active))
	for _, cache := range w.active {
		caches = append(caches, CacheView{
			Key:    cache.Key(),
			Cell:   *cache.Cell,
			Bounds: w.board.CellBounds(cache.Cell),
			Tokens: append([]Token{}, cache.Tokens...),
		})
	}
	return &WorldState{
		ConfigName: w.config.Name,
		State:      w.state,
		Location:   w.location,
		PlayerCell: *w.board.CellForPoint(w.location),
		Trail:      w.Trail(),
		Inventory:  w.Inventory(),
		Caches:     caches,
	}
}
