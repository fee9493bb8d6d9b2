package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store on a local SQLite file.
// This is the default backend: the moral equivalent of the browser's
// localStorage, but surviving as a file next to the binary.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the state database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSlotTable(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Debug().Str("component", "store").Str("path", dbPath).Msg("sqlite state store initialized")
	return &SQLiteStore{db: db}, nil
}

// createSlotTable creates the slot table.
func createSlotTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS client_state (
		slot_key TEXT PRIMARY KEY,
		slot_value BLOB NOT NULL,
		expires_at DATETIME,
		updated_at DATETIME NOT NULL
	);`
	_, err := db.Exec(query)
	return err
}

// Get retrieves a value by key. Expired rows read as absent and are
// lazily deleted.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT slot_value, expires_at FROM client_state WHERE slot_key = ?`

	var value []byte
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read slot %s: %w", key, err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM client_state WHERE slot_key = ?`, key)
		return nil, ErrNotFound
	}

	return value, nil
}

// Set stores a value with the given TTL (zero means no expiry).
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	query := `
		INSERT INTO client_state (slot_key, slot_value, expires_at, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(slot_key) DO UPDATE SET
			slot_value = excluded.slot_value,
			expires_at = excluded.expires_at,
			updated_at = datetime('now')`

	_, err := s.db.ExecContext(ctx, query, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// Delete removes a value by key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE slot_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
