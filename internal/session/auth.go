package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gundalf-client/internal/store"
	"gundalf-client/pkg/apierror"
	"gundalf-client/pkg/uid"

	"github.com/rs/zerolog/log"
)

// tokenResponse is the body of successful login/refresh calls.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a new access token, persists it and
// schedules the auto-refresh. The refresh cookie arrives alongside and
// lands in the shared cookie jar.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	var res tokenResponse
	err := m.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res, "")
	if err != nil {
		return err
	}

	if err := m.SetToken(ctx, res.AccessToken); err != nil {
		return err
	}

	log.Info().Str("component", "session").Msg("logged in")
	return nil
}

// Logout revokes the session server-side and always clears local state,
// even when the HTTP call fails.
func (m *Manager) Logout(ctx context.Context) error {
	token, _ := m.Token(ctx)
	err := m.post(ctx, "/auth/logout", struct{}{}, nil, token)

	if clearErr := m.Clear(ctx); clearErr != nil {
		return clearErr
	}
	if err != nil {
		log.Debug().Str("component", "session").Err(err).Msg("logout call failed, session cleared anyway")
	}
	return nil
}

// Refresh exchanges the refresh cookie for a new access token. Failure
// always clears the session (fail-closed) before returning the error.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	var res tokenResponse
	if err := m.post(ctx, "/auth/refresh", struct{}{}, &res, ""); err != nil {
		_ = m.Clear(ctx)
		return "", fmt.Errorf("refresh failed: %w", err)
	}

	if err := m.store.Set(ctx, store.KeyAccessToken, []byte(res.AccessToken), 0); err != nil {
		return "", fmt.Errorf("failed to persist token: %w", err)
	}
	m.setStatus(true)

	return res.AccessToken, nil
}

// Init performs the startup session check: a stored but already-expired
// token is refreshed once; failures are swallowed and simply leave the
// session logged out.
func (m *Manager) Init(ctx context.Context) {
	token, ok := m.Token(ctx)
	if !ok {
		return
	}

	if m.IsExpired(token) {
		if _, err := m.Refresh(ctx); err != nil {
			log.Debug().Str("component", "session").Err(err).Msg("startup refresh failed")
			return
		}
	}
	m.ScheduleAutoRefresh()
}

// Register creates a new account. The backend responds with a
// verification mail; no token is issued yet.
func (m *Manager) Register(ctx context.Context, email, password, username string) error {
	return m.post(ctx, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"username": username,
	}, nil, "")
}

// ResendVerification asks for a fresh verification mail.
func (m *Manager) ResendVerification(ctx context.Context, email string) error {
	return m.post(ctx, "/auth/request-verification", map[string]string{"email": email}, nil, "")
}

// RequestPasswordReset starts the forgot-password flow.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	return m.post(ctx, "/auth/request-password-reset", map[string]string{"email": email}, nil, "")
}

// ResetPassword completes the forgot-password flow with the mailed token.
func (m *Manager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return m.post(ctx, "/auth/reset-password", map[string]string{
		"token":       resetToken,
		"newPassword": newPassword,
	}, nil, "")
}

// post issues a JSON POST against an auth endpoint over the base HTTP
// client. Non-2xx responses decode into *apierror.Error.
func (m *Manager) post(ctx context.Context, path string, body, out interface{}, bearer string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uid.New())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierror.FromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
