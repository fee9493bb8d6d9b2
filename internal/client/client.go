// Package client is the typed HTTP client for the backend. Every call
// runs through the request authenticator, which attaches the bearer
// token and transparently replays requests after a session refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gundalf-client/internal/model"
	"gundalf-client/internal/session"
	"gundalf-client/pkg/apierror"
)

// Config holds client construction parameters.
type Config struct {
	// BaseURL of the backend, without trailing slash.
	BaseURL string

	// Session provides tokens and the refresh call.
	Session *session.Manager

	// Jar is the cookie jar shared with the session manager: the
	// refresh cookie set on login must be visible to both.
	Jar http.CookieJar

	// Timeout for individual calls. Defaults to 30s.
	Timeout time.Duration

	// OnSessionExpired fires when a refresh attempt fails; the CLI
	// uses it to tell the user to log in again.
	OnSessionExpired func()
}

// Client calls the backend's JSON endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a backend client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   timeout,
			Jar:       cfg.Jar,
			Transport: newAuthTransport(nil, cfg.Session, cfg.OnSessionExpired),
		},
	}
}

// Me fetches the user profile. With optional=true a 401 is returned
// as-is (no refresh, no redirect) so callers can treat the user as
// anonymous.
func (c *Client) Me(ctx context.Context, optional bool) (*model.User, error) {
	var user model.User
	opts := requestOpts{}
	if optional {
		opts.optionalAuth = true
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user, opts); err != nil {
		return nil, err
	}
	return &user, nil
}

// Plans fetches the public plan catalog. Optional auth: the pricing
// surface works logged-out.
func (c *Client) Plans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := c.do(ctx, http.MethodGet, "/subscriptions/plans", nil, &plans, requestOpts{optionalAuth: true})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// ActivateTrial books the free trial plan onto the account.
func (c *Client) ActivateTrial(ctx context.Context, planModel string, feature model.FeatureClass) error {
	body := map[string]interface{}{"model": planModel, "feature": feature}
	return c.do(ctx, http.MethodPost, "/subscriptions/trial", body, nil, requestOpts{})
}

// CreateOrder creates an order from plan references only; the backend
// recomputes all prices authoritatively.
func (c *Client) CreateOrder(ctx context.Context, items []model.OrderItem) (string, error) {
	var order model.Order
	body := map[string]interface{}{"cart": items}
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order, requestOpts{}); err != nil {
		return "", err
	}
	return order.OrderID, nil
}

// CreatePayment creates a crypto payment for the order in the chosen
// settlement currency.
func (c *Client) CreatePayment(ctx context.Context, orderID string, currency model.PayCurrency) (*model.Payment, error) {
	var payment model.Payment
	body := map[string]interface{}{"orderId": orderID, "payCurrency": currency}
	if err := c.do(ctx, http.MethodPost, "/payments/now/create", body, &payment, requestOpts{}); err != nil {
		return nil, err
	}
	if payment.OrderID == "" {
		payment.OrderID = orderID
	}
	payment.PayCurrency = currency
	return &payment, nil
}

// PaymentStatus polls the state of a payment.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*model.PaymentStatusResponse, error) {
	var status model.PaymentStatusResponse
	err := c.do(ctx, http.MethodGet, "/payments/now/status/"+paymentID, nil, &status, requestOpts{})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// MaintenanceStatus checks whether the backend is in maintenance mode.
func (c *Client) MaintenanceStatus(ctx context.Context) (*model.MaintenanceStatus, error) {
	var status model.MaintenanceStatus
	err := c.do(ctx, http.MethodGet, "/maintenance/status", nil, &status, requestOpts{optionalAuth: true})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ChangePassword rotates the password of the logged-in account.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}
	return c.do(ctx, http.MethodPost, "/auth/change-password", body, nil, requestOpts{})
}

// DiscordLoginURL fetches the OAuth URL that links a Discord account.
func (c *Client) DiscordLoginURL(ctx context.Context) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/discord/login-url", nil, &res, requestOpts{}); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("backend returned no login URL")
	}
	return res.URL, nil
}

// VerifyJoinResult is the outcome of a Discord guild-join verification.
type VerifyJoinResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// VerifyDiscordJoin asks the backend to confirm guild membership of the
// linked Discord account.
func (c *Client) VerifyDiscordJoin(ctx context.Context) (*VerifyJoinResult, error) {
	var res VerifyJoinResult
	if err := c.do(ctx, http.MethodPost, "/discord/verify-join", struct{}{}, &res, requestOpts{}); err != nil {
		return nil, err
	}
	return &res, nil
}

// requestOpts tunes a single call.
type requestOpts struct {
	optionalAuth bool
}

// do issues a JSON request and decodes the response. Bodies are built
// from byte readers so the authenticator can rewind them for replay.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts requestOpts) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.optionalAuth {
		req.Header.Set(OptionalAuthHeader, "1")
	}

	resp, err := c.http.Do(req)
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
