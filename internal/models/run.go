package models

import "time"

// Role is one of the two paired live roles of a session.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleViewer    Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RolePresenter || r == RoleViewer
}

// Counterpart returns the paired role on the other side of the session.
func (r Role) Counterpart() Role {
	if r == RolePresenter {
		return RoleViewer
	}
	return RolePresenter
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Run is one lifecycle of a session being actively presented, bounded by
// both roles going offline. Within a session's run list only the last run is
// ever mutated; earlier runs are history.
type Run struct {
	PresenterStatus        Status     `json:"presenter_status"`
	ViewerStatus           Status     `json:"viewer_status"`
	LastPresenterHeartbeat *time.Time `json:"last_presenter_heartbeat,omitempty"`
	LastViewerHeartbeat    *time.Time `json:"last_viewer_heartbeat,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Closed reports whether both roles have gone offline.
func (r *Run) Closed() bool {
	return r.PresenterStatus == StatusOffline && r.ViewerStatus == StatusOffline
}

func (r *Run) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}

// RunPatch is a partial update merged onto the latest run of a session.
// Nil fields are left untouched.
type RunPatch struct {
	PresenterStatus        *Status
	ViewerStatus           *Status
	LastPresenterHeartbeat *time.Time
	LastViewerHeartbeat    *time.Time
}

// TenantRunLog is the unit of on-disk persistence: the run history of every
// session belonging to one tenant.
type TenantRunLog struct {
	Tenant   string            `json:"tenant"`
	Sessions map[string][]*Run `json:"sessions"`
}

// FlatRun is a denormalized run row for listing and reporting UIs.
type FlatRun struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
	Run
}
