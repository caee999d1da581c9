package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/commutekit/commutekit/internal/plan"
)

// Execer runs statements that return no rows. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS plan_events (
		id          BIGSERIAL PRIMARY KEY,
		run_id      TEXT NOT NULL,
		event       TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		results     INTEGER NOT NULL DEFAULT 0,
		distance_m  DOUBLE PRECISION NOT NULL DEFAULT 0,
		error       TEXT,
		payload     JSONB NOT NULL
	)
`

const insertEvent = `
	INSERT INTO plan_events (run_id, event, occurred_at, results, distance_m, error, payload)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
`

// PostgresTracker appends events to the plan_events table.
type PostgresTracker struct {
	db Execer
}

// NewPostgresTracker creates a PostgreSQL event tracker.
func NewPostgresTracker(db Execer) *PostgresTracker {
	return &PostgresTracker{db: db}
}

// EnsureSchema creates the plan_events table if it does not exist.
func (t *PostgresTracker) EnsureSchema(ctx context.Context) error {
	if _, err := t.db.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("creating plan_events table: %w", err)
	}
	return nil
}

// Track implements plan.Tracker.
func (t *PostgresTracker) Track(ctx context.Context, e *plan.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	tag, err := t.db.Exec(ctx, insertEvent,
		e.RunID,
		e.Name,
		e.Timestamp,
		e.Results,
		e.Distance,
		e.Error,
		payload,
	)
	if err != nil {
		return fmt.Errorf("inserting plan event: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("inserting plan event: %d rows affected", tag.RowsAffected())
	}
	return nil
}
