package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"statusgate/internal/models"
)

var DB *pgxpool.Pool

// Init connects to Postgres and runs migrations
func Init(connString string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	DB, err = pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := DB.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return runMigrations(ctx, DB)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Event IDs double as request IDs, so redelivered events are ignored.
	queryEvents := `
	CREATE TABLE IF NOT EXISTS admission_events (
		id TEXT PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		outcome TEXT NOT NULL,
		stage TEXT NOT NULL,
		identity TEXT NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status INT NOT NULL
	);`

	queryIndex := `
	CREATE INDEX IF NOT EXISTS admission_events_identity_at
		ON admission_events (identity, at DESC);`

	if _, err := pool.Exec(ctx, queryEvents); err != nil {
		return fmt.Errorf("migration failed (admission_events): %w", err)
	}
	if _, err := pool.Exec(ctx, queryIndex); err != nil {
		return fmt.Errorf("migration failed (admission_events index): %w", err)
	}

	return nil
}

// EventStore persists admission events.
type EventStore struct {
	Pool *pgxpool.Pool
}

func (s *EventStore) InsertEvent(ctx context.Context, e models.AdmissionEvent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO admission_events (id, at, outcome, stage, identity, method, path, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.At, string(e.Outcome), e.Stage, string(e.Identity), e.Method, e.Path, e.Status)
	if err != nil {
		return fmt.Errorf("insert admission event %s: %w", e.ID, err)
	}
	return nil
}

// CountByIdentity returns how many rejections were recorded for id since the
// given time.
func (s *EventStore) CountByIdentity(ctx context.Context, id models.ClientIdentity, since time.Time) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM admission_events
		WHERE identity = $1 AND at >= $2
	`, string(id), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admission events: %w", err)
	}
	return n, nil
}
