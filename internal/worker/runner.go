package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"statusgate/internal/models"
	"statusgate/internal/queue"
)

// Source yields admission events. It returns queue.ErrEmpty when nothing
// arrived in time and queue.ErrMalformed for an undecodable entry.
type Source interface {
	Next(ctx context.Context) (models.AdmissionEvent, error)
}

type Sink interface {
	InsertEvent(ctx context.Context, e models.AdmissionEvent) error
}

// Runner moves admission events from the queue into the database.
type Runner struct {
	Source  Source
	Sink    Sink
	Backoff time.Duration
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	log.Println("👷 Worker started. Waiting for admission events...")

	for ctx.Err() == nil {
		e, err := r.Source.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrEmpty):
			continue
		case errors.Is(err, queue.ErrMalformed):
			log.Printf("❌ %v", err)
			continue
		case ctx.Err() != nil:
			return
		default:
			log.Printf("❌ Redis error: %v", err)
			sleep(ctx, backoff)
			continue
		}

		// Persist with a detached deadline so an event already popped is
		// not lost to shutdown.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err = r.Sink.InsertEvent(saveCtx, e)
		cancel()
		if err != nil {
			log.Printf("❌ Failed to save event: %v", err)
			continue
		}
		log.Printf("✅ Stored: %s %s %s (%s)", e.Outcome, e.Method, e.Path, e.Identity)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
