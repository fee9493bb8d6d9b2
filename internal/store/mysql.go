package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store on a shared MySQL database. Intended for
// fleet deployments where several headless agents share one session.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL and prepares the slot table.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS client_state (
		slot_key VARCHAR(191) PRIMARY KEY,
		slot_value BLOB NOT NULL,
		expires_at DATETIME NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Debug().Str("component", "store").Msg("mysql state store initialized")
	return &MySQLStore{db: db}, nil
}

// Get retrieves a value by key. Expired rows read as absent and are
// lazily deleted.
func (s *MySQLStore) Get(ctx context.Context, key string) ([]byte, error) {
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
func (s *MySQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	query := `
		INSERT INTO client_state (slot_key, slot_value, expires_at, updated_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			slot_value = VALUES(slot_value),
			expires_at = VALUES(expires_at),
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// Delete removes a value by key.
func (s *MySQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE slot_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
