package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// writeTimeout bounds each write-through to SQLite.
const writeTimeout = 5 * time.Second

// SQLiteStore is a Store backed by the client_storage table.
//
// Writes go to SQLite first; the in-memory copy is only updated once the
// write succeeded, so a failed Set leaves the previous value visible.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.RWMutex
	values map[Key]string
}

// OpenSQLite loads every row of client_storage into memory.
// The schema must already be migrated.
func OpenSQLite(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:     db,
		now:    time.Now,
		values: make(map[Key]string),
	}

	rows, err := db.QueryContext(ctx, "SELECT key, value FROM client_storage")
	if err != nil {
		return nil, fmt.Errorf("loading client storage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning client storage row: %w", err)
		}
		s.values[Key(k)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client storage: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Get(key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *SQLiteStore) Set(key Key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, string(key), value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	s.values[key] = value
	return nil
}

func (s *SQLiteStore) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM client_storage WHERE key = ?", string(key)); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}

	delete(s.values, key)
	return nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM client_storage"); err != nil {
		return fmt.Errorf("clearing client storage: %w", err)
	}

	clear(s.values)
	return nil
}
