package client

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"

	"gundalf-client/internal/session"
	"gundalf-client/pkg/uid"

	"github.com/rs/zerolog/log"
)

// OptionalAuthHeader marks a request as tolerant of an anonymous or
// expired session: a 401 passes through without refresh or redirect.
const OptionalAuthHeader = "X-Optional-Auth"

// authEndpoints never trigger the refresh/replay flow; a 401 from them
// is a real answer, not an expired credential.
var authEndpoints = []string{
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
	"/auth/verify-email",
	"/auth/request-verification",
	"/auth/request-password-reset",
	"/auth/reset-password",
}

// authTransport decorates every outgoing request with the current
// bearer token and coordinates at-most-one in-flight refresh across
// concurrently failing requests. Each request queued while a refresh is
// in flight is replayed exactly once after it settles; replay order
// is unspecified.
type authTransport struct {
	base    http.RoundTripper
	session *session.Manager

	// onSessionExpired fires once per failed refresh; it is the single
	// redirect-to-login trigger.
	onSessionExpired func()

	mu         sync.Mutex
	refreshing bool
	pending    chan struct{} // closed when the in-flight refresh settles
	newToken   string
	refreshErr error
}

func newAuthTransport(base http.RoundTripper, sess *session.Manager, onExpired func()) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{
		base:             base,
		session:          sess,
		onSessionExpired: onExpired,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	authed := req.Clone(req.Context())
	if authed.Header.Get("X-Request-ID") == "" {
		authed.Header.Set("X-Request-ID", uid.New())
	}
	if token, ok := t.session.Token(req.Context()); ok {
		authed.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if isAuthEndpoint(req.URL.Path) || req.Header.Get(OptionalAuthHeader) != "" {
		// Optional-auth callers degrade gracefully; auth endpoints
		// answer 401 on their own terms.
		return resp, nil
	}

	// Buffer the 401 so it can still be surfaced if the refresh fails.
	original := bufferResponse(resp)

	token, refreshErr := t.refreshOnce(req)
	if refreshErr != nil {
		if refreshErr == errWaitCancelled {
			original.Body.Close()
			return nil, req.Context().Err()
		}
		return original, nil
	}

	original.Body.Close()
	return t.replay(req, token)
}

// errWaitCancelled signals that the request context ended while waiting
// for an in-flight refresh.
type waitCancelledError struct{}

func (waitCancelledError) Error() string { return "cancelled while waiting for token refresh" }

var errWaitCancelled = waitCancelledError{}

// refreshOnce funnels all concurrent 401s into a single refresh call
// and hands every caller the resulting token. The check-and-set below
// is what guarantees the at-most-one-refresh invariant.
func (t *authTransport) refreshOnce(req *http.Request) (string, error) {
	t.mu.Lock()
	if t.refreshing {
		ch := t.pending
		t.mu.Unlock()

		select {
		case <-ch:
		case <-req.Context().Done():
			return "", errWaitCancelled
		}

		t.mu.Lock()
		token, err := t.newToken, t.refreshErr
		t.mu.Unlock()
		return token, err
	}

	t.refreshing = true
	t.pending = make(chan struct{})
	ch := t.pending
	t.mu.Unlock()

	log.Debug().Str("component", "authenticator").Msg("credential rejected, refreshing session")
	token, err := t.session.Refresh(req.Context())

	t.mu.Lock()
	t.newToken, t.refreshErr = token, err
	t.refreshing = false
	close(ch)
	t.mu.Unlock()

	if err != nil {
		// Refresh already cleared the session (fail-closed); tell the
		// application to send the user back to login.
		log.Warn().Str("component", "authenticator").Err(err).Msg("session refresh failed")
		if t.onSessionExpired != nil {
			t.onSessionExpired()
		}
	}
	return token, err
}

// replay re-issues the original request once with the fresh credential.
func (t *authTransport) replay(req *http.Request, token string) (*http.Response, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	if retry.Header.Get("X-Request-ID") == "" {
		retry.Header.Set("X-Request-ID", uid.New())
	}

	return t.base.RoundTrip(retry)
}

// isAuthEndpoint reports whether the path belongs to the login/register/
// refresh/verification family.
func isAuthEndpoint(path string) bool {
	for _, p := range authEndpoints {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// bufferResponse reads the body into memory so the response stays
// consumable after the connection is reused for the retry.
func bufferResponse(resp *http.Response) *http.Response {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		body = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp
}

// Ensure authTransport implements http.RoundTripper
var _ http.RoundTripper = (*authTransport)(nil)
