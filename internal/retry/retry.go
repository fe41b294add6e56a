// Package retry runs operations against flaky backends with exponential
// backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Policy bounds the number of attempts and the wait between them.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Do calls fn until it succeeds, returns a permanent error, or the attempts
// are exhausted. The last error is returned unwrapped; a cancelled context
// during backoff returns ctx.Err().
func (p Policy) Do(ctx context.Context, logger *zap.Logger, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= p.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if !IsTransient(err) || attempt == attempts-1 {
			return err
		}
		logger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return err
}

// IsTransient reports whether err looks like a timeout or a temporary
// network failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
