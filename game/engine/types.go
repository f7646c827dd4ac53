package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Record keys written to Storage after every committed mutation
	RecordCache     = "cache"
	RecordInventory = "inventory"
	RecordLocation  = "loc"
	RecordTrail     = "trail"

	// Validation constants
	MinTileWidth    = 1e-7
	MaxTileWidth    = 1.0
	MinRadius       = 1
	MaxRadius       = 64
	MaxInitialCount = 100
)

var (
	ErrUnknownDirection     = errors.New("unknown direction")
	ErrCacheNotMaterialized = errors.New("no materialized cache at cell")
	ErrCorruptState         = errors.New("corrupt persisted state")
	ErrNotStarted           = errors.New("world not started")
	ErrAlreadyStarted       = errors.New("world already started")
	ErrInvalidConfig        = errors.New("invalid world configuration")
	ErrInvalidLocation      = errors.New("invalid location")
)

// LatLng is a continuous coordinate on the map
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// CheckLocation rejects non-finite coordinates and points off the globe
func CheckLocation(p LatLng) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: %g,%g", ErrInvalidLocation, p.Lat, p.Lng)
	}
	return nil
}

// Bounds is the axis-aligned rectangle covered by a cell
type Bounds struct {
	Min LatLng `json:"min"`
	Max LatLng `json:"max"`
}

// Contains reports whether p lies in the half-open rectangle [Min, Max)
func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.Min.Lat && p.Lat < b.Max.Lat && p.Lng >= b.Min.Lng && p.Lng < b.Max.Lng
}

// Cell is a discrete grid unit. Board hands out one canonical *Cell per tile.
type Cell struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Key returns the "i,j" identity used for snapshot and lookup tables
func (c Cell) Key() string {
	return strconv.Itoa(c.I) + "," + strconv.Itoa(c.J)
}

// ParseCellKey parses an "i,j" key back into a Cell
func ParseCellKey(key string) (Cell, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 {
		return Cell{}, fmt.Errorf("cell key %q: expected \"i,j\"", key)
	}
	i, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	j, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	return Cell{I: i, J: j}, nil
}

// Token is an immutable collectible tagged with its home cell and spawn serial
type Token struct {
	I      int `json:"i"`
	J      int `json:"j"`
	Serial int `json:"serial"`
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%d#%d", t.I, t.J, t.Serial)
}

// Cache is a live, materialized container of tokens bound to a cell
type Cache struct {
	Cell   *Cell
	Tokens []Token
}

// Key returns the cell key of the cache
func (c *Cache) Key() string {
	return c.Cell.Key()
}

// Len returns the number of tokens currently held
func (c *Cache) Len() int {
	return len(c.Tokens)
}

// Inventory is the ordered list of tokens the player carries
type Inventory struct {
	Tokens []Token `json:"tokens"`
}

// Len returns the number of tokens held
func (inv *Inventory) Len() int {
	return len(inv.Tokens)
}

// State is the lifecycle state of a World
type State string

const (
	Uninitialized State = "uninitialized"
	Active        State = "active"
)

// CacheView is a read-only rendering of a live cache
type CacheView struct {
	Key    string  `json:"key"`
	Cell   Cell    `json:"cell"`
	Bounds Bounds  `json:"bounds"`
	Tokens []Token `json:"tokens"`
}

// WorldState is the snapshot of everything a renderer needs to redraw
type WorldState struct {
	ConfigName string      `json:"config_name"`
	State      State       `json:"state"`
	Location   LatLng      `json:"location"`
	PlayerCell Cell        `json:"player_cell"`
	Trail      []LatLng    `json:"trail"`
	Inventory  []Token     `json:"inventory"`
	Caches     []CacheView `json:"caches"`
}

// Notifier receives payload-free signals telling the renderer to re-read state
type Notifier interface {
	PlayerMoved()
	CacheUpdated()
	InventoryChanged()
}

// NopNotifier discards all notifications
type NopNotifier struct{}

func (NopNotifier) PlayerMoved()      {}
func (NopNotifier) CacheUpdated()     {}
func (NopNotifier) InventoryChanged() {}

// Storage is the durable string-keyed store a World reads and writes
type Storage interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set writes all records together
	Set(records map[string]string) error

	// Clear removes every record
	Clear() error
}
