package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"statusgate/internal/models"
)

func TestEventStore_Integration(t *testing.T) {
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DB_URL not set")
	}
	if err := Init(dbURL); err != nil {
		t.Skipf("Skipping integration test: Postgres not available (%v)", err)
	}
	t.Cleanup(DB.Close)

	ctx := context.Background()
	s := &EventStore{Pool: DB}
	identity := models.ClientIdentity("test-" + uuid.NewString())
	since := time.Now().Add(-time.Minute)

	e := models.AdmissionEvent{
		ID:       uuid.NewString(),
		At:       time.Now().UTC(),
		Outcome:  models.OutcomeRejectRateLimited,
		Stage:    models.StageRateLimit,
		Identity: identity,
		Method:   "GET",
		Path:     "/api/info",
		Status:   429,
	}

	// Redelivery of the same event is a no-op.
	for i := 0; i < 2; i++ {
		if err := s.InsertEvent(ctx, e); err != nil {
			t.Fatalf("InsertEvent failed: %v", err)
		}
	}

	n, err := s.CountByIdentity(ctx, identity, since)
	if err != nil {
		t.Fatalf("CountByIdentity failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountByIdentity() = %d, want 1", n)
	}

	if _, err := DB.Exec(ctx, `DELETE FROM admission_events WHERE identity = $1`, string(identity)); err != nil {
		t.Logf("cleanup failed: %v", err)
	}
}
