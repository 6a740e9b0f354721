package redis

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("backend down")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failN(cb, 2)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("state after 2 failures = %s, want closed", cb.CurrentState())
	}
	failN(cb, 1)
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state after 3 failures = %s, want open", cb.CurrentState())
	}

	// Open breaker rejects without running fn.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Error("fn ran while breaker open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failN(cb, 2)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Two more failures must not trip: the counter restarted at zero.
	failN(cb, 2)
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.CurrentState())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	failN(cb, 1)
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.CurrentState())
	}

	time.Sleep(20 * time.Millisecond)

	// Probe fails → reopen.
	_ = cb.Execute(func() error { return errProbe })
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state after failed probe = %s, want open", cb.CurrentState())
	}

	time.Sleep(20 * time.Millisecond)

	// Probe succeeds → close.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("state after successful probe = %s, want closed", cb.CurrentState())
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	var transitions []State
	cb.OnStateChange = func(_, to State) { transitions = append(transitions, to) }

	failN(cb, 1)
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}
