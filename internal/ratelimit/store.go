// Package ratelimit implements a process-local fixed-window request limiter
// keyed by client identity.
//
// A window opens on the first request from an identity and lasts for the
// configured duration; every request inside it increments the counter, and
// requests past the limit are rejected. Counting continues while rejected, so
// a client hammering the server stays rejected until the window elapses.
//
// Fixed windows allow a burst of up to twice the limit around a boundary: a
// client can spend its quota just before its window ends and again just after
// the fresh one opens. That trade-off is accepted.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"statusgate/internal/models"
)

const (
	DefaultLimit  = 100
	DefaultWindow = 15 * time.Minute
)

type rateWindow struct {
	count int64
	start time.Time
}

// Result describes one admission.
type Result struct {
	Allowed   bool
	Limit     int
	Count     int64
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, measured from now.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter is safe for concurrent use.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[models.ClientIdentity]*rateWindow
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter admitting limit requests per window. Non-positive
// values fall back to the defaults.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[models.ClientIdentity]*rateWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Admit counts one request from id and reports whether it is within quota.
func (l *Limiter) Admit(id models.ClientIdentity) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[id]
	if !ok {
		w = &rateWindow{start: now}
		l.windows[id] = w
	} else if now.Sub(w.start) >= l.window {
		w.count = 0
		w.start = now
	}
	w.count++

	remaining := int64(l.limit) - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   w.count <= int64(l.limit),
		Limit:     l.limit,
		Count:     w.count,
		Remaining: int(remaining),
		ResetAt:   w.start.Add(l.window),
	}
}

// Len returns the number of identities currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep removes windows that have elapsed. An identity seen again after a
// sweep simply opens a fresh window, which is what Admit would do anyway.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// StartCleanup launches a goroutine that calls Sweep every interval and
// exits when ctx is cancelled.
func (l *Limiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					log.Printf("RATE_LIMIT_SWEEP | removed=%d", n)
				}
			}
		}
	}()
}
