// Package session owns the bearer access token: persistence, expiry
// detection, the login/logout/refresh calls that rotate it, and the
// self-scheduling pre-expiry refresh timer.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gundalf-client/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshLead is how long before expiry the proactive refresh fires.
const DefaultRefreshLead = 60 * time.Second

// Config holds the dependencies and tuning of a session manager.
type Config struct {
	// BaseURL of the backend, without trailing slash.
	BaseURL string

	// HTTPClient performs the auth calls. It must carry the cookie jar
	// shared with the API client so the refresh cookie set on login is
	// sent back on refresh. Auth calls never go through the
	// authenticated transport, so they cannot recurse into the refresh
	// path.
	HTTPClient *http.Client

	// Store persists the token slot.
	Store store.Store

	// RefreshLead overrides DefaultRefreshLead when positive.
	RefreshLead time.Duration
}

// Manager is the session manager. All methods are safe for concurrent use.
type Manager struct {
	baseURL string
	http    *http.Client
	store   store.Store
	lead    time.Duration

	// now is swappable for tests.
	now func() time.Time

	mu        sync.Mutex
	timer     *time.Timer
	loggedIn  bool
	observers []func(loggedIn bool)
}

// NewManager creates a session manager. The initial login status is
// derived from any previously persisted, still-valid token.
func NewManager(cfg Config) *Manager {
	lead := cfg.RefreshLead
	if lead <= 0 {
		lead = DefaultRefreshLead
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	m := &Manager{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		store:   cfg.Store,
		lead:    lead,
		now:     time.Now,
	}

	if token, ok := m.Token(context.Background()); ok && !m.IsExpired(token) {
		m.loggedIn = true
	}

	return m
}

// Token reads the persisted token. Pure read, no side effect; absence
// means "logged out".
func (m *Manager) Token(ctx context.Context) (string, bool) {
	raw, err := m.store.Get(ctx, store.KeyAccessToken)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// IsExpired compares the token's embedded expiry to the current time.
// A token that fails to decode is treated as expired (fail-safe).
func (m *Manager) IsExpired(token string) bool {
	exp, err := tokenExpiry(token)
	if err != nil {
		return true
	}
	return !m.now().Before(exp)
}

// IsLoggedIn reports whether a valid (present, unexpired) token is stored.
func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	token, ok := m.Token(ctx)
	return ok && !m.IsExpired(token)
}

// tokenExpiry decodes the embedded expiry claim without verifying the
// signature; the client never holds the signing key.
func tokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token carries no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// SetToken persists the token, marks the session logged-in and
// (re)schedules the pre-expiry refresh.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if err := m.store.Set(ctx, store.KeyAccessToken, []byte(token), 0); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	m.setStatus(true)
	m.ScheduleAutoRefresh()
	return nil
}

// Clear removes the persisted token, cancels any pending refresh timer
// and marks the session logged-out.
func (m *Manager) Clear(ctx context.Context) error {
	err := m.store.Delete(ctx, store.KeyAccessToken)

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.setStatus(false)
	return err
}

// OnStatusChange registers an observer notified on every logged-in/out
// flip. Observers are called outside the manager's lock.
func (m *Manager) OnStatusChange(fn func(loggedIn bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// setStatus flips the login status and notifies observers on change.
func (m *Manager) setStatus(loggedIn bool) {
	m.mu.Lock()
	changed := m.loggedIn != loggedIn
	m.loggedIn = loggedIn
	observers := make([]func(bool), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range observers {
		fn(loggedIn)
	}
}

// ScheduleAutoRefresh arms a one-shot timer that renews the token ahead
// of its expiry. Delay is expiry minus lead time; a non-positive delay
// triggers an immediate refresh attempt. Each call cancels the previous
// timer, so at most one is ever pending.
func (m *Manager) ScheduleAutoRefresh() {
	token, ok := m.Token(context.Background())
	if !ok {
		return
	}

	exp, err := tokenExpiry(token)
	if err != nil {
		log.Error().Str("component", "session").Err(err).Msg("cannot schedule refresh")
		return
	}

	delay := exp.Sub(m.now()) - m.lead

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if delay > 0 {
		m.timer = time.AfterFunc(delay, m.tryRefresh)
	}
	m.mu.Unlock()

	if delay <= 0 {
		go m.tryRefresh()
		return
	}
	log.Debug().Str("component", "session").Dur("delay", delay).Msg("auto refresh scheduled")
}

// RefreshDelay computes the timer delay the auto-refresh would use for
// the given token. Exposed for the scheduling decision; the decode
// error mirrors IsExpired's fail-safe.
func (m *Manager) RefreshDelay(token string) (time.Duration, error) {
	exp, err := tokenExpiry(token)
	if err != nil {
		return 0, err
	}
	return exp.Sub(m.now()) - m.lead, nil
}

// tryRefresh runs a scheduled refresh attempt: success re-arms the
// timer, failure tears the session down (fail-closed).
func (m *Manager) tryRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := m.Refresh(ctx); err != nil {
		log.Warn().Str("component", "session").Err(err).Msg("scheduled refresh failed, logging out")
		_ = m.Logout(ctx)
		return
	}
	m.ScheduleAutoRefresh()
}
