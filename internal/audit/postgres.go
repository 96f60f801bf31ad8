package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const insertAuditEvent = `INSERT INTO audit_events (id, recorded_at, category, detail, host, username)
VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresSink inserts entries into the audit_events table.
type PostgresSink struct {
	db Execer
}

func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, insertAuditEvent, e.ID, e.Time, string(e.Category), e.Detail, e.Host, e.User)
	return errors.WithMessage(err, "inserting audit event")
}
