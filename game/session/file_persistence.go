package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/geocache-world/game/engine"
)

const (
	metaSuffix  = ".json"
	worldSuffix = ".world.zst"
)

// FilePersistence implements SessionPersistence using file system storage.
// Each session is a <id>.json metadata file plus a <id>.world.zst file
// holding the zstd-compressed world records.
type FilePersistence struct {
	sessionsDir string

	mu      sync.Mutex
	storage map[string]*fileStorage
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir: sessionsDir,
		storage:     make(map[string]*fileStorage),
	}, nil
}

// SaveMeta persists session metadata to a JSON file
func (fp *FilePersistence) SaveMeta(meta *SessionMeta) error {
	if meta == nil {
		return fmt.Errorf("session meta cannot be nil")
	}

	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session meta: %w", err)
	}

	if err := writeFileAtomic(fp.metaPath(meta.ID), jsonData); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// LoadMeta retrieves session metadata from its JSON file
func (fp *FilePersistence) LoadMeta(id string) (*SessionMeta, error) {
	jsonData, err := os.ReadFile(fp.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var meta SessionMeta
	if err := json.Unmarshal(jsonData, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session meta: %w", err)
	}
	return &meta, nil
}

// Storage returns the zstd file store for a session's world records
func (fp *FilePersistence) Storage(id string) (engine.Storage, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if s, ok := fp.storage[id]; ok {
		return s, nil
	}
	s := &fileStorage{path: fp.worldPath(id)}
	fp.storage[id] = s
	return s, nil
}

// Delete removes both session files
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	fp.mu.Lock()
	delete(fp.storage, id)
	fp.mu.Unlock()

	if err := os.Remove(fp.metaPath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	if err := os.Remove(fp.worldPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove world file: %w", err)
	}
	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, metaSuffix) {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, metaSuffix))
		}
	}
	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.metaPath(id))
	return err == nil
}

func (fp *FilePersistence) metaPath(id string) string {
	return filepath.Join(fp.sessionsDir, id+metaSuffix)
}

func (fp *FilePersistence) worldPath(id string) string {
	return filepath.Join(fp.sessionsDir, id+worldSuffix)
}

// fileStorage keeps the record map in memory and rewrites the whole
// compressed file on every Set.
type fileStorage struct {
	path string

	mu      sync.Mutex
	records map[string]string
}

func (s *fileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return "", false, err
	}
	v, ok := s.records[key]
	return v, ok, nil
}

func (s *fileStorage) Set(records map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return err
	}

	next := make(map[string]string, len(s.records)+len(records))
	for k, v := range s.records {
		next[k] = v
	}
	for k, v := range records {
		next[k] = v
	}
	if err := writeWorldFile(s.path, next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *fileStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove world file: %w", err)
	}
	s.records = make(map[string]string)
	return nil
}

func (s *fileStorage) load() error {
	if s.records != nil {
		return nil
	}
	records, err := readWorldFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.records = make(map[string]string)
		return nil
	}
	if err != nil {
		return err
	}
	s.records = records
	return nil
}

func writeWorldFile(path string, records map[string]string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create world file: %w", err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(records); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("failed to encode world records: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to compress world records: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readWorldFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var records map[string]string
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode world file %s: %w", path, err)
	}
	if records == nil {
		records = make(map[string]string)
	}
	return records, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
