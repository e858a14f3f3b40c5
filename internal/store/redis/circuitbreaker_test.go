package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFail = errors.New("fail")

// manualClock is advanced by hand so the tests never sleep.
type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errFail }

func newTestBreaker(maxFailures int, coolDown time.Duration) (*CircuitBreaker, *manualClock) {
	clock := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, coolDown)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Do(ctx, fail); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	// Calls should be rejected immediately
	called := false
	err := cb.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("expected ErrCircuitOpen without calling fn, got %v (called=%v)", err, called)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Second)
	ctx := context.Background()

	cb.Do(ctx, fail)
	cb.Do(ctx, fail)
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected Open")
	}

	clock.advance(time.Second)
	if err := cb.Do(ctx, ok); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Second)
	ctx := context.Background()

	cb.Do(ctx, fail)
	cb.Do(ctx, fail)

	clock.advance(2 * time.Second)
	cb.Do(ctx, fail)
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", cb.CurrentState())
	}

	// The cool-down restarts from the failed probe.
	clock.advance(500 * time.Millisecond)
	if err := cb.Do(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen during new cool-down, got %v", err)
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	ctx := context.Background()
	cb.Do(ctx, fail)
	clock.advance(time.Second)

	err := cb.Do(ctx, func(ctx context.Context) error {
		// A second caller while the probe is in flight is rejected.
		if err := cb.Do(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("concurrent probe: got %v, want ErrCircuitOpen", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	ctx := context.Background()

	// 2 failures, then a success
	cb.Do(ctx, fail)
	cb.Do(ctx, fail)
	cb.Do(ctx, ok)

	// 2 more failures shouldn't trip because counter was reset
	cb.Do(ctx, fail)
	cb.Do(ctx, fail)

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_CancelledContextNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cb.Do(ctx, fail); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("cancelled call tripped the breaker")
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	var transitions []State
	cb, clock := newTestBreaker(1, time.Second)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}
	ctx := context.Background()

	cb.Do(ctx, fail)
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected [Open], got %v", transitions)
	}

	clock.advance(time.Second)
	cb.Do(ctx, ok)

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [Open, HalfOpen, Closed], got %v", transitions)
	}
}
