package main

import (
	"context"
	"testing"

	"gundalf-client/internal/store"

	"github.com/stretchr/testify/require"
)

func TestNoteLocalStorageRunsOnce(t *testing.T) {
	ctx := context.Background()
	a := &app{store: store.NewMemoryStore()}

	a.noteLocalStorage(ctx)

	recorded, err := a.store.Get(ctx, store.KeyCookieConsent)
	require.NoError(t, err)
	require.Equal(t, []byte("acknowledged"), recorded)

	// A second run leaves the acknowledgment untouched.
	a.noteLocalStorage(ctx)
	again, err := a.store.Get(ctx, store.KeyCookieConsent)
	require.NoError(t, err)
	require.Equal(t, recorded, again)
}

func TestPlanListFlag(t *testing.T) {
	var p planList

	require.NoError(t, p.Set("PRO_30_DAYS:service"))
	require.NoError(t, p.Set("HWID_RESET:ADDON"))
	require.Error(t, p.Set("missing-separator"))

	require.Len(t, p, 2)
	require.Equal(t, "PRO_30_DAYS", p[0].Model)
	require.Equal(t, "SERVICE", string(p[0].Feature), "feature class is upper-cased")
	require.Equal(t, "ADDON", string(p[1].Feature))
}
