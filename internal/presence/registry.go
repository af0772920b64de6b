package presence

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/baz1ga/scenarwall/internal/models"
)

// RunStore is the durable side of presence. Every status change is written
// through to the latest run of the session; the registry itself is only a
// cache.
type RunStore interface {
	AppendRun(tenant, session string, initial models.RunPatch) *models.Run
	UpdateLatestRun(tenant, session string, patch models.RunPatch) *models.Run
	GetLatestRun(tenant, session string) *models.Run
	LatestRuns() []models.FlatRun
}

// Notifier receives presence-changed events for broadcast to the tenant's
// connections.
type Notifier func(tenant, session string, entry *models.PresenceEntry)

// HasConnection reports whether an open gateway connection exists for the
// given role of a session.
type HasConnection func(tenant, session string, role models.Role) bool

type key struct {
	tenant  string
	session string
}

// Registry tracks the live status of both roles per (tenant, session).
type Registry struct {
	store RunStore
	ttl   time.Duration

	mu      sync.Mutex
	entries map[key]*models.PresenceEntry
	notify  Notifier
}

// NewRegistry builds the registry and hydrates it from the most recently
// updated run of every session, so that after a restart presence reflects
// what was last known instead of resetting everyone to offline.
func NewRegistry(store RunStore, ttl time.Duration) *Registry {
	r := &Registry{
		store:   store,
		ttl:     ttl,
		entries: make(map[key]*models.PresenceEntry),
	}
	r.hydrate()
	return r
}

// SetNotifier wires the broadcast callback. The gateway is constructed after
// the registry, so this cannot be a constructor argument.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	r.notify = n
	r.mu.Unlock()
}

func (r *Registry) hydrate() {
	for _, fr := range r.store.LatestRuns() {
		r.entries[key{fr.Tenant, fr.Session}] = &models.PresenceEntry{
			PresenterStatus:        fr.PresenterStatus,
			ViewerStatus:           fr.ViewerStatus,
			LastPresenterHeartbeat: fr.LastPresenterHeartbeat,
			LastViewerHeartbeat:    fr.LastViewerHeartbeat,
			CreatedAt:              fr.CreatedAt,
			UpdatedAt:              fr.UpdatedAt,
		}
	}
	if len(r.entries) > 0 {
		log.Printf("presence: hydrated %d entries from run store", len(r.entries))
	}
}

// GetState returns a copy of the entry, lazily creating an offline/offline
// default. Presence is a best-effort cache: asking about an unknown session
// repairs the gap instead of erroring.
func (r *Registry) GetState(tenant, session string) *models.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(tenant, session).Clone()
}

func (r *Registry) stateLocked(tenant, session string) *models.PresenceEntry {
	k := key{tenant, session}
	e, ok := r.entries[k]
	if !ok {
		now := time.Now().UTC()
		e = &models.PresenceEntry{
			PresenterStatus: models.StatusOffline,
			ViewerStatus:    models.StatusOffline,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		r.entries[k] = e
	}
	return e
}

// UpdateStatus records a role's status. A transition to online refreshes the
// role's heartbeat; going offline leaves the old heartbeat in place as
// evidence of when the role was last confirmed.
func (r *Registry) UpdateStatus(tenant, session string, role models.Role, status models.Status) {
	r.mu.Lock()
	e := r.stateLocked(tenant, session)
	now := time.Now().UTC()
	e.SetRoleStatus(role, status)
	if status == models.StatusOnline {
		e.SetRoleHeartbeat(role, now)
	}
	e.UpdatedAt = now
	entry := e.Clone()
	r.mu.Unlock()

	r.writeThrough(tenant, session, entry)
	r.emit(tenant, session, entry)
}

// OpenRun opens (or re-opens in place) a presentation run for the session and
// marks the presenter online. A new run is appended only when no run is open:
// the session has none, or the latest one ended with both roles offline.
func (r *Registry) OpenRun(tenant, session string) *models.Run {
	latest := r.store.GetLatestRun(tenant, session)
	if latest == nil || latest.Closed() {
		r.store.AppendRun(tenant, session, models.RunPatch{})
	}
	r.UpdateStatus(tenant, session, models.RolePresenter, models.StatusOnline)
	return r.store.GetLatestRun(tenant, session)
}

// ReapStale forces roles offline when their heartbeat has aged past the TTL
// or their connection is gone. The viewer is graced while the presenter is
// confirmed online: the presenter's liveness corroborates the viewer's, whose
// heartbeat cadence may lag behind genuine activity. That asymmetry is
// deliberate; do not make it symmetric.
func (r *Registry) ReapStale(hasConn HasConnection, now time.Time) {
	r.mu.Lock()
	keys := make([]key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	for _, k := range keys {
		r.reapEntry(k, hasConn, now)
	}
}

func (r *Registry) reapEntry(k key, hasConn HasConnection, now time.Time) {
	r.mu.Lock()
	e, ok := r.entries[k]
	if !ok {
		r.mu.Unlock()
		return
	}

	stale := func(hb *time.Time) bool {
		return hb == nil || now.Sub(*hb) > r.ttl
	}
	idle := now.Sub(e.UpdatedAt) > r.ttl
	var forced []models.Role

	// 1. Presenter heartbeat stale.
	if e.PresenterStatus == models.StatusOnline && stale(e.LastPresenterHeartbeat) {
		e.PresenterStatus = models.StatusOffline
		forced = append(forced, models.RolePresenter)
	}
	// 2. Viewer heartbeat stale, unless the presenter is still online.
	if e.ViewerStatus == models.StatusOnline && stale(e.LastViewerHeartbeat) &&
		e.PresenterStatus != models.StatusOnline {
		e.ViewerStatus = models.StatusOffline
		forced = append(forced, models.RoleViewer)
	}
	// 3. Presenter claims online but has no connection and the entry is idle.
	// Covers abrupt network drops that never produced a clean close.
	if e.PresenterStatus == models.StatusOnline && idle &&
		!hasConn(k.tenant, k.session, models.RolePresenter) {
		e.PresenterStatus = models.StatusOffline
		forced = append(forced, models.RolePresenter)
	}
	// 4. Same connection check for the viewer, with the same grace rule.
	if e.ViewerStatus == models.StatusOnline && idle &&
		e.PresenterStatus != models.StatusOnline &&
		!hasConn(k.tenant, k.session, models.RoleViewer) {
		e.ViewerStatus = models.StatusOffline
		forced = append(forced, models.RoleViewer)
	}

	if len(forced) == 0 {
		r.mu.Unlock()
		return
	}
	e.UpdatedAt = now
	entry := e.Clone()
	r.mu.Unlock()

	log.Printf("presence: reaped %v for session %s of tenant %s", forced, k.session, k.tenant)
	r.writeThrough(k.tenant, k.session, entry)
	r.emit(k.tenant, k.session, entry)
}

// Snapshot returns the tenant's flattened presence for dashboards.
func (r *Registry) Snapshot(tenant string) []models.FlatPresence {
	r.mu.Lock()
	out := make([]models.FlatPresence, 0)
	for k, e := range r.entries {
		if k.tenant != tenant {
			continue
		}
		out = append(out, models.FlatPresence{Session: k.session, PresenceEntry: *e.Clone()})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Session < out[j].Session })
	return out
}

func (r *Registry) writeThrough(tenant, session string, e *models.PresenceEntry) {
	r.store.UpdateLatestRun(tenant, session, models.RunPatch{
		PresenterStatus:        &e.PresenterStatus,
		ViewerStatus:           &e.ViewerStatus,
		LastPresenterHeartbeat: e.LastPresenterHeartbeat,
		LastViewerHeartbeat:    e.LastViewerHeartbeat,
	})
}

func (r *Registry) emit(tenant, session string, e *models.PresenceEntry) {
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()
	if notify != nil {
		notify(tenant, session, e)
	}
}
