package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/wricardo/geocache-world/game/engine"
)

// SQLitePersistence implements SessionPersistence on a single SQLite database.
// Metadata lives in the sessions table and world records in the records table.
type SQLitePersistence struct {
	db *sql.DB
}

// NewSQLitePersistence opens (or creates) the database at path
func NewSQLitePersistence(path string) (*SQLitePersistence, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLitePersistence{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			meta_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (session_id, key)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle
func (sp *SQLitePersistence) Close() error {
	return sp.db.Close()
}

func (sp *SQLitePersistence) SaveMeta(meta *SessionMeta) error {
	if meta == nil {
		return fmt.Errorf("session meta cannot be nil")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal session meta: %w", err)
	}
	_, err = sp.db.Exec(
		`INSERT INTO sessions(id, meta_json) VALUES(?, ?)
		 ON CONFLICT(id) DO UPDATE SET meta_json = excluded.meta_json`,
		meta.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", meta.ID, err)
	}
	return nil
}

func (sp *SQLitePersistence) LoadMeta(id string) (*SessionMeta, error) {
	var raw string
	err := sp.db.QueryRow(`SELECT meta_json FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var meta SessionMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session meta: %w", err)
	}
	return &meta, nil
}

func (sp *SQLitePersistence) Storage(id string) (engine.Storage, error) {
	return &sqliteStorage{db: sp.db, sessionID: id}, nil
}

func (sp *SQLitePersistence) Delete(id string) error {
	tx, err := sp.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", id, err)
	}
	return tx.Commit()
}

func (sp *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := sp.db.Query(`SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (sp *SQLitePersistence) Exists(id string) bool {
	var one int
	err := sp.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// sqliteStorage scopes the records table to one session
type sqliteStorage struct {
	db        *sql.DB
	sessionID string
}

func (s *sqliteStorage) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM records WHERE session_id = ? AND key = ?`, s.sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read record %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes the whole batch in one transaction
func (s *sqliteStorage) Set(records map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO records(session_id, key, value) VALUES(?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range records {
		if _, err := stmt.Exec(s.sessionID, k, v); err != nil {
			return fmt.Errorf("write record %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStorage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM records WHERE session_id = ?`, s.sessionID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
