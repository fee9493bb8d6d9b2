package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gundalf-client/internal/model"

	"github.com/stretchr/testify/require"
)

// fakeStatusClient serves a swappable maintenance answer.
type fakeStatusClient struct {
	mu     sync.Mutex
	status model.MaintenanceStatus
	err    error
	calls  int
}

func (f *fakeStatusClient) MaintenanceStatus(ctx context.Context) (*model.MaintenanceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := f.status
	return &s, nil
}

func (f *fakeStatusClient) set(status model.MaintenanceStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.err = status, err
}

func (f *fakeStatusClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestWatcherChecksImmediately(t *testing.T) {
	c := &fakeStatusClient{status: model.MaintenanceStatus{Maintenance: true, Message: "back soon"}}

	w := NewWatcher(c, time.Hour)
	w.Start()
	defer w.Stop()

	require.True(t, w.InMaintenance())
	require.Equal(t, "back soon", w.Message())
	require.Equal(t, 1, c.callCount())
}

func TestWatcherTracksFlips(t *testing.T) {
	c := &fakeStatusClient{}

	w := NewWatcher(c, 5*time.Millisecond)
	w.Start()
	defer w.Stop()

	require.False(t, w.InMaintenance())

	c.set(model.MaintenanceStatus{Maintenance: true, Message: "upgrading"}, nil)
	require.Eventually(t, w.InMaintenance, time.Second, time.Millisecond)
	require.Equal(t, "upgrading", w.Message())

	c.set(model.MaintenanceStatus{}, nil)
	require.Eventually(t, func() bool { return !w.InMaintenance() }, time.Second, time.Millisecond)
}

func TestWatcherAssumesUpOnError(t *testing.T) {
	c := &fakeStatusClient{err: errors.New("status page down")}

	w := NewWatcher(c, time.Hour)
	w.Start()
	defer w.Stop()

	require.False(t, w.InMaintenance(), "an unreachable status page never locks the client out")
	require.Empty(t, w.Message())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := NewWatcher(&fakeStatusClient{}, time.Millisecond)
	w.Start()
	w.Stop()
	w.Stop()
}
