package presence

import (
	"testing"
	"time"

	"github.com/baz1ga/scenarwall/internal/models"
)

func TestReaper_SweepsOnInterval(t *testing.T) {
	store := newFakeStore()
	store.AppendRun("acme", "sess1", models.RunPatch{})
	r := NewRegistry(store, testTTL)

	// Online with no heartbeat at all: the first sweep must take it down.
	setEntry(r, "acme", "sess1", &models.PresenceEntry{
		PresenterStatus: models.StatusOnline,
		ViewerStatus:    models.StatusOffline,
		CreatedAt:       time.Now().UTC().Add(-time.Hour),
		UpdatedAt:       time.Now().UTC().Add(-time.Hour),
	})

	reaper := NewReaper(r, noConnections, 10*time.Millisecond)
	reaper.Start()
	defer reaper.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if r.GetState("acme", "sess1").PresenterStatus == models.StatusOffline {
			return
		}
		select {
		case <-deadline:
			t.Fatal("reaper never forced the stale presenter offline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReaper_StopIsIdempotent(t *testing.T) {
	r := NewRegistry(newFakeStore(), testTTL)
	reaper := NewReaper(r, noConnections, time.Minute)
	reaper.Start()

	reaper.Stop()
	reaper.Stop() // must not panic
}
