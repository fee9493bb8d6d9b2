// Package store persists the client's small set of durable slots: the
// access token, the cart snapshot that survives the OAuth round-trip,
// and advisory flags. Backends are swappable between a local SQLite
// file (default), a shared MySQL or Redis instance, and memory.
package store

import (
	"context"
	"time"
)

// Well-known slot keys.
const (
	KeyAccessToken   = "access_token"
	KeyCartSnapshot  = "pricing_cart"
	KeyOAuthReturn   = "pricing_oauth_return"
	KeyCookieConsent = "cookie_consent"
)

// OAuthReturnTTL bounds how long a saved cart/UI snapshot survives the
// redirect to the external OAuth provider and back.
const OAuthReturnTTL = 15 * time.Minute

// Store defines the slot persistence interface.
// This abstraction allows swapping between a local file store and a
// shared store without changing business logic.
type Store interface {
	// Get retrieves a value by key. Returns ErrNotFound if the key is
	// absent or its TTL has lapsed.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl means the value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backing connection.
	Close() error
}

// Common store errors
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	// ErrNotFound indicates the key is absent or expired.
	ErrNotFound StoreError = "store: key not found"
)
