// Package linkrelay runs the Discord account-linking round-trip for a
// headless client: it snapshots the cart, hands the user the provider's
// login URL, and catches the redirect back on a short-lived local
// listener.
package linkrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gundalf-client/internal/checkout"
	"gundalf-client/internal/model"
	"gundalf-client/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// ErrLoginRequired is returned when linking is attempted without an
// authenticated session.
var ErrLoginRequired = errors.New("login required before linking Discord")

// AccountClient is the slice of the API client the relay needs.
type AccountClient interface {
	Me(ctx context.Context, optional bool) (*model.User, error)
	DiscordLoginURL(ctx context.Context) (string, error)
}

// Result is the outcome of an OAuth return.
type Result struct {
	// Linked and Verified mirror the backend's redirect markers.
	Linked   bool
	Verified bool

	// Message is the user-facing outcome text.
	Message string
	// ErrMessage is set instead when the provider flow failed.
	ErrMessage string

	// ReopenConfirm indicates the trial confirmation dialog should be
	// reopened, as saved before the redirect.
	ReopenConfirm bool
	// Cart is the restored pre-redirect cart snapshot.
	Cart *checkout.Cart
}

// oauthReturn is the persisted UI-restore flag.
type oauthReturn struct {
	ReopenConfirm bool  `json:"reopenConfirm"`
	TS            int64 `json:"ts"`
}

// Relay drives one link round-trip.
type Relay struct {
	client     AccountClient
	store      store.Store
	listenAddr string
}

// New creates a relay listening on listenAddr for the OAuth return.
func New(client AccountClient, st store.Store, listenAddr string) *Relay {
	return &Relay{client: client, store: st, listenAddr: listenAddr}
}

// Begin verifies the session, snapshots the cart and UI state, and
// returns the provider login URL to hand to the user.
func (r *Relay) Begin(ctx context.Context, cart *checkout.Cart) (string, error) {
	if _, err := r.client.Me(ctx, false); err != nil {
		return "", ErrLoginRequired
	}

	if cart == nil {
		cart = checkout.NewCart()
	}
	if err := cart.Save(ctx, r.store); err != nil {
		return "", err
	}

	flag := oauthReturn{ReopenConfirm: cart.HasTrial(), TS: time.Now().UnixMilli()}
	payload, err := json.Marshal(flag)
	if err != nil {
		return "", err
	}
	if err := r.store.Set(ctx, store.KeyOAuthReturn, payload, store.OAuthReturnTTL); err != nil {
		return "", err
	}

	url, err := r.client.DiscordLoginURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start Discord login: %w", err)
	}
	return url, nil
}

// Await serves the local callback until the provider redirects back or
// the context ends. The saved snapshot is restored and the OAuth keys
// cleared either way.
func (r *Relay) Await(ctx context.Context) (*Result, error) {
	results := make(chan *Result, 1)

	router := chi.NewRouter()
	router.Use(recovery)
	router.Use(requestID)
	router.Use(logging)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))
	router.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		res := r.resolve(req.Context(), req.URL.Query().Get("discord"), req.URL.Query().Get("err"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>Discord linking finished. You can close this tab and return to the terminal.</p></body></html>")

		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{
		Addr:         r.listenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info().Str("component", "linkrelay").Str("addr", r.listenAddr).Msg("waiting for OAuth return")

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case res := <-results:
		return res, nil
	case err := <-errCh:
		return nil, fmt.Errorf("callback listener failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve maps the redirect markers onto the user-facing outcome and
// restores the pre-redirect snapshot.
func (r *Relay) resolve(ctx context.Context, ok, errMarker string) *Result {
	res := &Result{}

	switch {
	case ok == "ok":
		res.Linked, res.Verified = true, true
		res.Message = "Discord connected and server joined. You can activate the trial now."
	case ok == "linked":
		res.Linked = true
		res.Message = "Discord connected. Please join the server to unlock the trial."
	case errMarker == "discord_oauth_failed":
		res.ErrMessage = "Discord login failed. Please try again."
	case errMarker == "discord_me_failed":
		res.ErrMessage = "Could not fetch your Discord profile. Please try again."
	case errMarker == "discord_callback_failed":
		res.ErrMessage = "Discord connection failed. Please try again."
	}

	res.Cart = checkout.LoadCart(ctx, r.store)

	if raw, err := r.store.Get(ctx, store.KeyOAuthReturn); err == nil {
		var flag oauthReturn
		if err := json.Unmarshal(raw, &flag); err == nil {
			// The store's TTL already bounds the window; the timestamp
			// check covers backends without native expiry.
			age := time.Since(time.UnixMilli(flag.TS))
			if flag.TS == 0 || age <= store.OAuthReturnTTL {
				res.ReopenConfirm = flag.ReopenConfirm
			}
		}
	}

	_ = r.store.Delete(ctx, store.KeyOAuthReturn)
	_ = r.store.Delete(ctx, store.KeyCartSnapshot)

	return res
}
