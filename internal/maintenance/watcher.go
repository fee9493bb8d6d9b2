// Package maintenance tracks the backend's maintenance mode with a
// periodic status poll.
package maintenance

import (
	"context"
	"sync"
	"time"

	"gundalf-client/internal/model"

	"github.com/rs/zerolog/log"
)

// DefaultCheckInterval matches the backend's expectation of one status
// check every 5 minutes.
const DefaultCheckInterval = 5 * time.Minute

// StatusClient is the slice of the API client the watcher needs.
type StatusClient interface {
	MaintenanceStatus(ctx context.Context) (*model.MaintenanceStatus, error)
}

// Watcher polls GET /maintenance/status and caches the latest answer.
type Watcher struct {
	client   StatusClient
	interval time.Duration

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once

	mu          sync.RWMutex
	maintenance bool
	message     string
}

// NewWatcher creates a watcher. A non-positive interval falls back to
// DefaultCheckInterval.
func NewWatcher(client StatusClient, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Watcher{
		client:   client,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start checks once immediately, then keeps polling in the background.
func (w *Watcher) Start() {
	w.ticker = time.NewTicker(w.interval)

	w.check()
	go w.run()

	log.Debug().Str("component", "maintenance").Dur("interval", w.interval).Msg("watcher started")
}

// run is the main poll loop.
func (w *Watcher) run() {
	for {
		select {
		case <-w.ticker.C:
			w.check()
		case <-w.stopCh:
			return
		}
	}
}

// check performs one status poll. A failing endpoint is read as "not in
// maintenance" so an unreachable status page never locks the client out.
func (w *Watcher) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := w.client.MaintenanceStatus(ctx)
	if err != nil {
		log.Debug().Str("component", "maintenance").Err(err).Msg("status check failed, assuming not in maintenance")
		status = &model.MaintenanceStatus{}
	}

	w.mu.Lock()
	w.maintenance = status.Maintenance
	w.message = status.Message
	w.mu.Unlock()
}

// InMaintenance reports the latest known maintenance state.
func (w *Watcher) InMaintenance() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maintenance
}

// Message returns the latest maintenance banner text.
func (w *Watcher) Message() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.message
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.ticker != nil {
			w.ticker.Stop()
		}
		close(w.stopCh)
	})
}
