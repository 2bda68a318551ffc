package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"statusgate/internal/models"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_RejectsAfterLimit(t *testing.T) {
	clock := newFakeClock()
	l := New(100, 15*time.Minute, WithClock(clock.Now))

	for i := 1; i <= 100; i++ {
		res := l.Admit("10.0.0.1")
		if !res.Allowed {
			t.Fatalf("request %d was unexpectedly denied", i)
		}
		if res.Remaining != 100-i {
			t.Fatalf("request %d: Remaining = %d, want %d", i, res.Remaining, 100-i)
		}
	}

	res := l.Admit("10.0.0.1")
	if res.Allowed {
		t.Fatal("the 101st request should have been denied")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}

	if other := l.Admit("10.0.0.2"); !other.Allowed {
		t.Error("a distinct identity in the same window should be allowed")
	}
}

func TestLimiter_CountsWhileRejected(t *testing.T) {
	clock := newFakeClock()
	l := New(2, time.Minute, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		l.Admit("a")
	}
	res := l.Admit("a")
	if res.Count != 6 {
		t.Errorf("Count = %d, want 6", res.Count)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	clock := newFakeClock()
	l := New(1, 15*time.Minute, WithClock(clock.Now))

	l.Admit("a")
	if l.Admit("a").Allowed {
		t.Fatal("second request should be denied")
	}

	clock.Advance(15*time.Minute - time.Nanosecond)
	if l.Admit("a").Allowed {
		t.Fatal("request just before the window elapses should still be denied")
	}

	clock.Advance(time.Nanosecond)
	res := l.Admit("a")
	if !res.Allowed {
		t.Fatal("request after the window elapsed should be allowed")
	}
	if res.Count != 1 {
		t.Errorf("Count after reset = %d, want 1", res.Count)
	}
}

// The boundary burst is an accepted property of fixed windows.
func TestLimiter_BoundaryBurst(t *testing.T) {
	clock := newFakeClock()
	l := New(3, time.Minute, WithClock(clock.Now))

	l.Admit("a")
	clock.Advance(time.Minute - time.Millisecond)
	for i := 0; i < 2; i++ {
		if !l.Admit("a").Allowed {
			t.Fatalf("late request %d in first window denied", i)
		}
	}
	clock.Advance(time.Millisecond)
	for i := 0; i < 3; i++ {
		if !l.Admit("a").Allowed {
			t.Fatalf("early request %d in fresh window denied", i)
		}
	}
}

func TestLimiter_ResetAt(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	l := New(5, 15*time.Minute, WithClock(clock.Now))

	l.Admit("a")
	clock.Advance(time.Minute)
	res := l.Admit("a")

	if want := start.Add(15 * time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
	if got := res.RetryAfter(clock.Now()); got != 14*time.Minute {
		t.Errorf("RetryAfter = %v, want 14m", got)
	}
	if got := res.RetryAfter(start.Add(time.Hour)); got != 0 {
		t.Errorf("RetryAfter past reset = %v, want 0", got)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0)
	if l.Limit() != DefaultLimit || l.Window() != DefaultWindow {
		t.Errorf("defaults = (%d, %v), want (%d, %v)", l.Limit(), l.Window(), DefaultLimit, DefaultWindow)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := New(10, time.Minute, WithClock(clock.Now))

	l.Admit("old")
	clock.Advance(30 * time.Second)
	l.Admit("fresh")
	clock.Advance(30 * time.Second)

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLimiter_StartCleanup(t *testing.T) {
	clock := newFakeClock()
	l := New(10, time.Minute, WithClock(clock.Now))
	l.Admit("a")
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.StartCleanup(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for l.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove the stale window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Race Test
func TestLimiter_ConcurrentSameIdentity(t *testing.T) {
	l := New(100, time.Hour)
	id := models.ClientIdentity("203.0.113.7")

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	wg.Add(250)
	for i := 0; i < 250; i++ {
		go func() {
			defer wg.Done()
			if l.Admit(id).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d concurrent requests, want exactly 100", allowed)
	}
	if res := l.Admit(id); res.Count != 251 {
		t.Errorf("Count = %d, want 251 (lost increments)", res.Count)
	}
}

func BenchmarkLimiter_Admit(b *testing.B) {
	l := New(1<<30, time.Hour)
	for i := 0; i < b.N; i++ {
		l.Admit("bench")
	}
}

func TestNew_CustomWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(3, time.Minute, WithClock(clock.Now))

	res := l.Admit("10.0.0.1")
	if !res.Allowed || res.Limit != 3 || res.Remaining != 2 {
		t.Fatalf("first Admit() = %+v, want allowed with 2 remaining", res)
	}
	if want := clock.Now().Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
	if l.Window() != time.Minute {
		t.Errorf("Window() = %v, want 1m", l.Window())
	}
}
