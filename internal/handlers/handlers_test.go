package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baz1ga/scenarwall/internal/middleware"
	"github.com/baz1ga/scenarwall/internal/models"
	"github.com/baz1ga/scenarwall/internal/presence"
	"github.com/baz1ga/scenarwall/internal/runstore"
)

func newTestRouter(t *testing.T, tenant string) (chi.Router, *runstore.Store, *presence.Registry) {
	t.Helper()
	store := runstore.New(t.TempDir(), 10*time.Second)
	registry := presence.NewRegistry(store, 16*time.Second)
	runHandler := NewRunHandler(store, registry)
	presenceHandler := NewPresenceHandler(registry)

	// Stand-in for the JWT middleware: inject the tenant directly.
	withTenant := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.TenantIDKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	r := chi.NewRouter()
	r.Use(withTenant)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/{id}/present", runHandler.StartPresenting)
		r.Post("/{id}/heartbeat", runHandler.Heartbeat)
		r.Get("/{id}/runs", runHandler.SessionRuns)
	})
	r.Get("/runs", runHandler.List)
	r.Get("/presence", presenceHandler.Current)

	return r, store, registry
}

func TestStartPresenting_OpensRunAndMarksPresenterOnline(t *testing.T) {
	r, store, registry := newTestRouter(t, "acme")

	req := httptest.NewRequest(http.MethodPost, "/sessions/sess1/present", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	run := store.GetLatestRun("acme", "sess1")
	if run == nil {
		t.Fatal("expected a run opened")
	}
	if run.PresenterStatus != models.StatusOnline {
		t.Error("expected presenter online on the opened run")
	}
	if registry.GetState("acme", "sess1").PresenterStatus != models.StatusOnline {
		t.Error("expected presenter online in presence")
	}

	// Starting again while the run is open must not duplicate it.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/sess1/present", nil))
	if got := len(store.SessionRuns("acme", "sess1")); got != 1 {
		t.Errorf("expected 1 run after re-presenting, got %d", got)
	}
}

func TestHeartbeat_ValidatesRole(t *testing.T) {
	r, _, registry := newTestRouter(t, "acme")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"viewer role", `{"role":"viewer"}`, http.StatusOK},
		{"presenter role", `{"role":"presenter"}`, http.StatusOK},
		{"unknown role", `{"role":"spectator"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess1/heartbeat", bytes.NewReader([]byte(tc.body)))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}

	if registry.GetState("acme", "sess1").ViewerStatus != models.StatusOnline {
		t.Error("expected viewer online after heartbeat")
	}
}

func TestSessionRuns_EmptySessionReturnsEmptyList(t *testing.T) {
	r, _, _ := newTestRouter(t, "acme")

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess1/runs", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Runs []models.Run `json:"runs"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Runs == nil || len(resp.Runs) != 0 {
		t.Errorf("expected an empty (non-null) run list, got %v", resp.Runs)
	}
}

func TestList_ScopedToTenant(t *testing.T) {
	r, store, _ := newTestRouter(t, "acme")
	store.AppendRun("acme", "sess1", models.RunPatch{})
	store.AppendRun("globex", "other", models.RunPatch{})

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp struct {
		Runs []models.FlatRun `json:"runs"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].Tenant != "acme" {
		t.Errorf("expected only the tenant's runs, got %+v", resp.Runs)
	}
}

func TestPresence_ReturnsTenantSnapshot(t *testing.T) {
	r, _, registry := newTestRouter(t, "acme")
	registry.UpdateStatus("acme", "sess1", models.RolePresenter, models.StatusOnline)
	registry.UpdateStatus("globex", "other", models.RoleViewer, models.StatusOnline)

	req := httptest.NewRequest(http.MethodGet, "/presence", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var resp struct {
		Presence []models.FlatPresence `json:"presence"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Presence) != 1 || resp.Presence[0].Session != "sess1" {
		t.Fatalf("expected only the tenant's presence, got %+v", resp.Presence)
	}
	if resp.Presence[0].PresenterStatus != models.StatusOnline {
		t.Error("expected presenter online in the snapshot")
	}
}
