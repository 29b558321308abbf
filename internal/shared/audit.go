package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeBlocked = "blocked"
	OutcomeFailed  = "failed"
)

// AuditLog represents a record stored in guard_audit_logs.
type AuditLog struct {
	ActorID  int64
	Role     string
	Action   string
	Entity   string
	EntityID string
	Outcome  string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes guard decisions into Postgres. A logger without a pool
// discards records, so deployments without PG_DSN keep working.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Enabled reports whether records are persisted.
func (l *AuditLogger) Enabled() bool {
	return l != nil && l.pool != nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if !l.Enabled() {
		return nil
	}
	if err := log.validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO guard_audit_logs (actor_id, role, action, entity, entity_id, outcome, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.ActorID, log.Role, log.Action, log.Entity, log.EntityID, log.Outcome, metaJSON, at)
	return err
}

func (log AuditLog) validate() error {
	if log.Action == "" || log.Entity == "" || log.Outcome == "" {
		return errors.New("audit log requires action/entity/outcome")
	}
	return nil
}
