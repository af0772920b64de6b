package models

import "time"

// PresenceEntry is the ephemeral live view of one (tenant, session). It is a
// derived cache over the run store and is never persisted itself; every
// mutation is written through to the latest run.
type PresenceEntry struct {
	PresenterStatus        Status     `json:"presenter_status"`
	ViewerStatus           Status     `json:"viewer_status"`
	LastPresenterHeartbeat *time.Time `json:"last_presenter_heartbeat,omitempty"`
	LastViewerHeartbeat    *time.Time `json:"last_viewer_heartbeat,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (e *PresenceEntry) RoleStatus(role Role) Status {
	if role == RolePresenter {
		return e.PresenterStatus
	}
	return e.ViewerStatus
}

func (e *PresenceEntry) SetRoleStatus(role Role, status Status) {
	if role == RolePresenter {
		e.PresenterStatus = status
	} else {
		e.ViewerStatus = status
	}
}

func (e *PresenceEntry) RoleHeartbeat(role Role) *time.Time {
	if role == RolePresenter {
		return e.LastPresenterHeartbeat
	}
	return e.LastViewerHeartbeat
}

func (e *PresenceEntry) SetRoleHeartbeat(role Role, at time.Time) {
	if role == RolePresenter {
		e.LastPresenterHeartbeat = &at
	} else {
		e.LastViewerHeartbeat = &at
	}
}

// Clone returns a copy safe to hand out past the registry lock. Heartbeat
// pointers are shared; they are replaced, never mutated in place.
func (e *PresenceEntry) Clone() *PresenceEntry {
	c := *e
	return &c
}

// FlatPresence is a tenant-scoped presence row for dashboards.
type FlatPresence struct {
	Session string `json:"session"`
	PresenceEntry
}
