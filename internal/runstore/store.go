package runstore

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/baz1ga/scenarwall/internal/models"
)

const (
	storeFile  = "runs.json"
	legacyFile = "runlog.json"
)

// Store owns the durable presentation-run history, the single source of truth
// for what happened. Every mutation re-reads the backing file first so that
// manual edits made while the process runs are not clobbered wholesale, and a
// per-tenant lock covers each read-mutate-write sequence.
//
// Storage faults never propagate: unreadable content degrades to an empty log
// and write failures are logged while the in-memory snapshot advances anyway.
type Store struct {
	path           string
	legacyPath     string
	minRunDuration time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	logs  []*models.TenantRunLog // snapshot, refreshed by every load
}

func New(dataPath string, minRunDuration time.Duration) *Store {
	s := &Store{
		path:           filepath.Join(dataPath, storeFile),
		legacyPath:     filepath.Join(dataPath, legacyFile),
		minRunDuration: minRunDuration,
		locks:          make(map[string]*sync.Mutex),
	}
	s.setLogs(s.load())
	return s
}

// load reads and normalizes the backing file. A missing file triggers a
// one-time rename from the legacy filename before giving up and starting
// empty. Closed runs shorter than the minimum duration are pruned here; an
// open run never matches the prune condition because at least one role is
// still online.
func (s *Store) load() []*models.TenantRunLog {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			if renameErr := os.Rename(s.legacyPath, s.path); renameErr == nil {
				log.Printf("run store: migrated legacy file %s -> %s", s.legacyPath, s.path)
				data, err = os.ReadFile(s.path)
			}
		}
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("run store: read failed, starting empty: %v", err)
			}
			return nil
		}
	}

	logs, err := normalize(data)
	if err != nil {
		log.Printf("run store: unparseable payload, starting empty: %v", err)
		return nil
	}
	return s.prune(logs)
}

func (s *Store) prune(logs []*models.TenantRunLog) []*models.TenantRunLog {
	for _, tl := range logs {
		for session, runs := range tl.Sessions {
			kept := make([]*models.Run, 0, len(runs))
			for _, run := range runs {
				if run.Closed() && run.Duration() < s.minRunDuration {
					continue
				}
				kept = append(kept, run)
			}
			tl.Sessions[session] = kept
		}
	}
	return logs
}

func (s *Store) persist(logs []*models.TenantRunLog) {
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		log.Printf("run store: marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("run store: mkdir failed: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		log.Printf("run store: write failed: %v", err)
	}
}

func (s *Store) setLogs(logs []*models.TenantRunLog) {
	s.mu.Lock()
	s.logs = logs
	s.mu.Unlock()
}

func (s *Store) snapshot() []*models.TenantRunLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs
}

func (s *Store) tenantLock(tenant string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenant]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenant] = l
	}
	return l
}

// AppendRun opens a new run for the session. Unset patch fields default to
// offline/now.
func (s *Store) AppendRun(tenant, session string, initial models.RunPatch) *models.Run {
	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	logs := s.load()
	tl := findTenant(logs, tenant)
	if tl == nil {
		tl = &models.TenantRunLog{Tenant: tenant, Sessions: make(map[string][]*models.Run)}
		logs = append(logs, tl)
	}
	if tl.Sessions == nil {
		tl.Sessions = make(map[string][]*models.Run)
	}

	now := time.Now().UTC()
	run := &models.Run{
		PresenterStatus: models.StatusOffline,
		ViewerStatus:    models.StatusOffline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	applyPatch(run, initial)
	tl.Sessions[session] = append(tl.Sessions[session], run)

	s.setLogs(logs)
	s.persist(logs)
	return run
}

// UpdateLatestRun merges the patch onto the session's last run. It returns
// nil when the session has no runs — callers must open a run explicitly, not
// rely on one being synthesized here. When the patch closes the run and its
// total duration is under the minimum, the run is popped instead of persisted
// (the incremental form of load-time pruning) and nil is returned.
func (s *Store) UpdateLatestRun(tenant, session string, patch models.RunPatch) *models.Run {
	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	logs := s.load()
	tl := findTenant(logs, tenant)
	if tl == nil {
		return nil
	}
	runs := tl.Sessions[session]
	if len(runs) == 0 {
		return nil
	}

	run := runs[len(runs)-1]
	applyPatch(run, patch)
	run.UpdatedAt = time.Now().UTC()

	result := run
	if run.Closed() && run.Duration() < s.minRunDuration {
		tl.Sessions[session] = runs[:len(runs)-1]
		result = nil
	}

	s.setLogs(logs)
	s.persist(logs)
	return result
}

// GetLatestRun reads the in-memory snapshot only; reads do not hit the disk.
func (s *Store) GetLatestRun(tenant, session string) *models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := findTenant(s.logs, tenant)
	if tl == nil {
		return nil
	}
	runs := tl.Sessions[session]
	if len(runs) == 0 {
		return nil
	}
	return runs[len(runs)-1]
}

// SessionRuns returns the full run history of one session from the snapshot.
func (s *Store) SessionRuns(tenant, session string) []*models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := findTenant(s.logs, tenant)
	if tl == nil {
		return nil
	}
	return tl.Sessions[session]
}

// Flatten produces a denormalized run list for reporting and listing UIs.
func (s *Store) Flatten() []models.FlatRun {
	var out []models.FlatRun
	for _, tl := range s.snapshot() {
		for _, session := range sortedSessions(tl.Sessions) {
			for _, run := range tl.Sessions[session] {
				out = append(out, models.FlatRun{Tenant: tl.Tenant, Session: session, Run: *run})
			}
		}
	}
	return out
}

// LatestRuns returns, per (tenant, session), the run with the greatest
// UpdatedAt. The presence registry hydrates from this at startup.
func (s *Store) LatestRuns() []models.FlatRun {
	var out []models.FlatRun
	for _, tl := range s.snapshot() {
		for _, session := range sortedSessions(tl.Sessions) {
			var latest *models.Run
			for _, run := range tl.Sessions[session] {
				if latest == nil || run.UpdatedAt.After(latest.UpdatedAt) {
					latest = run
				}
			}
			if latest != nil {
				out = append(out, models.FlatRun{Tenant: tl.Tenant, Session: session, Run: *latest})
			}
		}
	}
	return out
}

func applyPatch(run *models.Run, patch models.RunPatch) {
	if patch.PresenterStatus != nil {
		run.PresenterStatus = *patch.PresenterStatus
	}
	if patch.ViewerStatus != nil {
		run.ViewerStatus = *patch.ViewerStatus
	}
	if patch.LastPresenterHeartbeat != nil {
		run.LastPresenterHeartbeat = patch.LastPresenterHeartbeat
	}
	if patch.LastViewerHeartbeat != nil {
		run.LastViewerHeartbeat = patch.LastViewerHeartbeat
	}
}

func findTenant(logs []*models.TenantRunLog, tenant string) *models.TenantRunLog {
	for _, tl := range logs {
		if tl.Tenant == tenant {
			return tl
		}
	}
	return nil
}

func sortedSessions(sessions map[string][]*models.Run) []string {
	keys := make([]string, 0, len(sessions))
	for k := range sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
