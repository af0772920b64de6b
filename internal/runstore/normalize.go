package runstore

import (
	"encoding/json"
	"log"

	"github.com/baz1ga/scenarwall/internal/models"
)

// The backing file has gone through three historical shapes:
//
//	(a) grouped by tenant: [{"tenant": t, "sessions": {s: [runs]}}]
//	(b) grouped by session: [{"tenant": t, "session": s, "runs": [runs]}]
//	(c) fully flat:        [{"tenant": t, "session": s, ...run fields}]
//
// normalize accepts any mix of the three and always produces shape (a).
// Records are classified one by one; a record that fits none of the shapes is
// rejected with its own log line so data-quality regressions stay visible.

type sessionGroupRecord struct {
	Tenant  string        `json:"tenant"`
	Session string        `json:"session"`
	Runs    []*models.Run `json:"runs"`
}

type flatLegacyRecord struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
	models.Run
}

func normalize(data []byte) ([]*models.TenantRunLog, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	b := newLogBuilder()
	for i, rec := range raw {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(rec, &probe); err != nil {
			log.Printf("run store: rejected record %d: not an object: %v", i, err)
			continue
		}

		switch {
		case probe["sessions"] != nil:
			var tl models.TenantRunLog
			if err := json.Unmarshal(rec, &tl); err != nil {
				log.Printf("run store: rejected grouped record %d: %v", i, err)
				continue
			}
			if tl.Tenant == "" {
				log.Printf("run store: rejected grouped record %d: missing tenant", i)
				continue
			}
			for _, session := range sortedSessions(tl.Sessions) {
				for _, run := range tl.Sessions[session] {
					b.add(tl.Tenant, session, coerceRun(run, i))
				}
			}

		case probe["runs"] != nil:
			var g sessionGroupRecord
			if err := json.Unmarshal(rec, &g); err != nil {
				log.Printf("run store: rejected session record %d: %v", i, err)
				continue
			}
			if g.Tenant == "" || g.Session == "" {
				log.Printf("run store: rejected session record %d: missing tenant or session", i)
				continue
			}
			for _, run := range g.Runs {
				b.add(g.Tenant, g.Session, coerceRun(run, i))
			}

		default:
			var f flatLegacyRecord
			if err := json.Unmarshal(rec, &f); err != nil {
				log.Printf("run store: rejected legacy record %d: %v", i, err)
				continue
			}
			if f.Tenant == "" || f.Session == "" {
				log.Printf("run store: rejected legacy record %d: missing tenant or session", i)
				continue
			}
			run := f.Run
			b.add(f.Tenant, f.Session, coerceRun(&run, i))
		}
	}

	return b.logs(), nil
}

// coerceRun repairs records with missing fields instead of dropping them.
// Each repair is logged so defaulted data stays distinguishable from clean
// parses.
func coerceRun(run *models.Run, record int) *models.Run {
	if run.PresenterStatus != models.StatusOnline && run.PresenterStatus != models.StatusOffline {
		log.Printf("run store: defaulted presenter status in record %d", record)
		run.PresenterStatus = models.StatusOffline
	}
	if run.ViewerStatus != models.StatusOnline && run.ViewerStatus != models.StatusOffline {
		log.Printf("run store: defaulted viewer status in record %d", record)
		run.ViewerStatus = models.StatusOffline
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	return run
}

// logBuilder merges records into the canonical grouped shape while keeping
// first-seen tenant order and run insertion order stable.
type logBuilder struct {
	order    []string
	byTenant map[string]*models.TenantRunLog
}

func newLogBuilder() *logBuilder {
	return &logBuilder{byTenant: make(map[string]*models.TenantRunLog)}
}

func (b *logBuilder) add(tenant, session string, run *models.Run) {
	tl, ok := b.byTenant[tenant]
	if !ok {
		tl = &models.TenantRunLog{Tenant: tenant, Sessions: make(map[string][]*models.Run)}
		b.byTenant[tenant] = tl
		b.order = append(b.order, tenant)
	}
	tl.Sessions[session] = append(tl.Sessions[session], run)
}

func (b *logBuilder) logs() []*models.TenantRunLog {
	out := make([]*models.TenantRunLog, 0, len(b.order))
	for _, tenant := range b.order {
		out = append(out, b.byTenant[tenant])
	}
	return out
}
