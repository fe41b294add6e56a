package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func testPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := testPolicy(3).Do(context.Background(), zap.NewNop(), func() error {
		attempts++
		if attempts < 3 {
			return transientTestError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoReturnsLastTransientError(t *testing.T) {
	attempts := 0
	err := testPolicy(2).Do(context.Background(), zap.NewNop(), func() error {
		attempts++
		return transientTestError{}
	})
	if !errors.As(err, new(transientTestError)) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := testPolicy(3).Do(context.Background(), zap.NewNop(), func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoRunsOnceWithoutAttempts(t *testing.T) {
	attempts := 0
	_ = Policy{}.Do(context.Background(), zap.NewNop(), func() error {
		attempts++
		return transientTestError{}
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	policy := testPolicy(3)
	policy.InitialBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := policy.Do(ctx, zap.NewNop(), func() error {
		attempts++
		cancel()
		return transientTestError{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestIsTransient(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":      {err: nil, want: false},
		"plain":    {err: errors.New("boom"), want: false},
		"deadline": {err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: true},
		"timeout":  {err: fmt.Errorf("dial: %w", transientTestError{}), want: true},
		"canceled": {err: context.Canceled, want: false},
	}
	for name, tc := range tests {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}
