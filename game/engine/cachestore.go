package engine

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the serialized token list of a cache at capture time
type Snapshot string

// SnapshotEntry pairs a cell key with its snapshot, as persisted
type SnapshotEntry struct {
	Key      string
	Snapshot Snapshot
}

// EncodeSnapshot serializes a token list
func EncodeSnapshot(tokens []Token) (Snapshot, error) {
	if tokens == nil {
		tokens = []Token{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot(data), nil
}

// DecodeSnapshot reconstructs a token list from a snapshot
func DecodeSnapshot(s Snapshot) ([]Token, error) {
	var tokens []Token
	if err := json.Unmarshal([]byte(s), &tokens); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("decode snapshot: expected token list, got null")
	}
	return tokens, nil
}

// CacheStore holds the snapshot table and the set of live caches.
// Snapshots are keyed by cell coordinates and outlive the caches they were taken from.
type CacheStore struct {
	gen         Generator
	spawnChance float64
	snapshots   map[string]Snapshot
	order       []string
	live        map[string]*Cache
}

// NewCacheStore creates an empty store
func NewCacheStore(gen Generator, spawnChance float64) *CacheStore {
	return &CacheStore{
		gen:         gen,
		spawnChance: spawnChance,
		snapshots:   make(map[string]Snapshot),
		live:        make(map[string]*Cache),
	}
}

// Exists reports whether a cache spawns at cell
func (s *CacheStore) Exists(cell *Cell) bool {
	return Exists(s.gen, *cell, s.spawnChance)
}

// Materialize brings the cache at cell into memory. It returns false when the
// generator places no cache there; such cells never consult the snapshot table.
func (s *CacheStore) Materialize(cell *Cell) (*Cache, bool) {
	if !s.Exists(cell) {
		return nil, false
	}
	key := cell.Key()
	if cache, ok := s.live[key]; ok {
		return cache, true
	}

	tokens := BaselineTokens(s.gen, *cell)
	if snap, ok := s.snapshots[key]; ok {
		restored, err := DecodeSnapshot(snap)
		if err != nil {
			// Restore and Capture only ever store decodable snapshots
			panic(fmt.Sprintf("cache %s: %v", key, err))
		}
		tokens = restored
	}

	cache := &Cache{Cell: cell, Tokens: tokens}
	s.live[key] = cache
	return cache, true
}

// Capture stores the cache's current token list, replacing any earlier snapshot
func (s *CacheStore) Capture(cache *Cache) error {
	snap, err := EncodeSnapshot(cache.Tokens)
	if err != nil {
		return fmt.Errorf("capture %s: %w", cache.Key(), err)
	}
	key := cache.Key()
	if _, ok := s.snapshots[key]; !ok {
		s.order = append(s.order, key)
	}
	s.snapshots[key] = snap
	return nil
}

// Dematerialize drops the live reference. It does not capture.
func (s *CacheStore) Dematerialize(cache *Cache) {
	if cur, ok := s.live[cache.Key()]; ok && cur == cache {
		delete(s.live, cache.Key())
	}
}

// Live returns the materialized cache for a cell key
func (s *CacheStore) Live(key string) (*Cache, bool) {
	cache, ok := s.live[key]
	return cache, ok
}

// LiveCaches returns every materialized cache, in no particular order
func (s *CacheStore) LiveCaches() []*Cache {
	caches := make([]*Cache, 0, len(s.live))
	for _, cache := range s.live {
		caches = append(caches, cache)
	}
	return caches
}

// Snapshot returns the stored snapshot for a cell key
func (s *CacheStore) Snapshot(key string) (Snapshot, bool) {
	snap, ok := s.snapshots[key]
	return snap, ok
}

// Clear empties the snapshot table
func (s *CacheStore) Clear() {
	s.snapshots = make(map[string]Snapshot)
	s.order = nil
}

// Entries returns every snapshot in first-capture order
func (s *CacheStore) Entries() []SnapshotEntry {
	entries := make([]SnapshotEntry, 0, len(s.order))
	for _, key := range s.order {
		entries = append(entries, SnapshotEntry{Key: key, Snapshot: s.snapshots[key]})
	}
	return entries
}

// Restore replaces the snapshot table. Every entry is validated first; on
// error the table is left untouched.
func (s *CacheStore) Restore(entries []SnapshotEntry) error {
	snapshots := make(map[string]Snapshot, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		cell, err := ParseCellKey(entry.Key)
		if err != nil {
			return err
		}
		if _, err := DecodeSnapshot(entry.Snapshot); err != nil {
			return fmt.Errorf("cache %s: %w", entry.Key, err)
		}
		key := cell.Key()
		if _, dup := snapshots[key]; !dup {
			order = append(order, key)
		}
		snapshots[key] = entry.Snapshot
	}
	s.snapshots = snapshots
	s.order = order
	return nil
}
