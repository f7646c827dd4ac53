package session

import (
	"sort"
	"sync"

	"github.com/wricardo/geocache-world/game/engine"
)

// MemoryPersistence keeps sessions in process memory. Nothing survives a restart.
type MemoryPersistence struct {
	mu      sync.RWMutex
	metas   map[string]SessionMeta
	storage map[string]*MemoryStorage
}

// NewMemoryPersistence creates an empty in-memory persistence layer
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		metas:   make(map[string]SessionMeta),
		storage: make(map[string]*MemoryStorage),
	}
}

func (mp *MemoryPersistence) SaveMeta(meta *SessionMeta) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.metas[meta.ID] = *meta
	return nil
}

func (mp *MemoryPersistence) LoadMeta(id string) (*SessionMeta, error) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	meta, ok := mp.metas[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &meta, nil
}

func (mp *MemoryPersistence) Storage(id string) (engine.Storage, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	s, ok := mp.storage[id]
	if !ok {
		s = NewMemoryStorage()
		mp.storage[id] = s
	}
	return s, nil
}

func (mp *MemoryPersistence) Delete(id string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, ok := mp.metas[id]; !ok {
		return ErrSessionNotFound
	}
	delete(mp.metas, id)
	delete(mp.storage, id)
	return nil
}

func (mp *MemoryPersistence) ListAll() ([]string, error) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	ids := make([]string, 0, len(mp.metas))
	for id := range mp.metas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (mp *MemoryPersistence) Exists(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.metas[id]
	return ok
}

// MemoryStorage is a map-backed engine.Storage
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewMemoryStorage creates an empty record store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(records map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range records {
		s.records[k] = v
	}
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]string)
	return nil
}
