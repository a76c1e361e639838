package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// AuditLog is one immutable entry in the audit trail.
type AuditLog struct {
	ID       int64          `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditFilters narrows the timeline query.
type AuditFilters struct {
	Entity string
	Action string
	Limit  int
	Offset int
}

// AuditLogger persists audit entries. Writes run on the pool, outside the
// business transaction, so a failed audit write never rolls work back.
type AuditLogger struct {
	q db.Querier
}

// NewAuditLogger wraps a pool.
func NewAuditLogger(q db.Querier) *AuditLogger {
	return &AuditLogger{q: q}
}

// Record appends one audit entry.
func (a *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	var meta []byte
	if log.Meta != nil {
		var err error
		meta, err = json.Marshal(log.Meta)
		if err != nil {
			return err
		}
	}
	_, err := a.q.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, at)
VALUES ($1,$2,$3,$4,$5,NOW())`,
		log.ActorID, log.Action, log.Entity, log.EntityID, meta)
	return err
}

// Timeline returns recent entries, newest first.
func (a *AuditLogger) Timeline(ctx context.Context, f AuditFilters) ([]AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := a.q.Query(ctx,
		`SELECT id, actor_id, action, entity, entity_id, meta, at
FROM audit_logs
WHERE ($1 = '' OR entity = $1) AND ($2 = '' OR action = $2)
ORDER BY at DESC, id DESC
LIMIT $3 OFFSET $4`,
		f.Entity, f.Action, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditLog
	for rows.Next() {
		var entry AuditLog
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Entity,
			&entry.EntityID, &meta, &entry.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
