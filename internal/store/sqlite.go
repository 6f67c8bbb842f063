package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"turnstile/internal/types"
)

// SQLiteStore keeps all sessions in one SQLite database. Messages live
// in their own table, keyed by session and sequence so load order always
// matches append order.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, creating it and its parent
// directory if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		name TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		session_name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (session_name, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create session tables: %w", err)
	}
	return nil
}

// Save stores the session under name, replacing any previous copy.
func (s *SQLiteStore) Save(session *types.Session, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE session_name = ?", name); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO sessions (name, id, created_at) VALUES (?, ?, ?)",
		name, session.ID, session.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	for i, m := range session.Messages {
		if _, err := tx.Exec(
			"INSERT INTO messages (session_name, seq, role, content, id, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			name, i, string(m.Role), m.Content, m.ID, m.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load restores a session by name, messages in original order.
func (s *SQLiteStore) Load(name string) (*types.Session, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var session types.Session
	var createdAt string
	err := s.db.QueryRow("SELECT id, created_at FROM sessions WHERE name = ?", name).
		Scan(&session.ID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("load session: parse created_at: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT role, content, id, timestamp FROM messages WHERE session_name = ? ORDER BY seq",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m types.Message
		var role, ts string
		if err := rows.Scan(&role, &m.Content, &m.ID, &ts); err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		m.Role = types.Role(role)
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("load messages: parse timestamp: %w", err)
		}
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	return &session, nil
}

// List returns saved session names in sorted order.
func (s *SQLiteStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT name FROM sessions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return names, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
