// Package retry provides a small exponential-backoff helper shared by the
// Object Store and SFTP sinks (§4.10, §4.11), generalized from the
// connection-retry idiom the engine's SSH-based transports use elsewhere.
package retry

import (
	"context"
	"time"

	"github.com/triagekit/engine/pkg/timeutil"
)

// Backoff describes an exponential backoff schedule with a cap and an
// attempt bound.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	MaxAttempts int
}

// DefaultBackoff returns the schedule named in §4.11: 500 ms initial delay,
// doubling, capped at 30 s, bounded to a reasonable total attempt count.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     500 * time.Millisecond,
		Max:         30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 8,
	}
}

// Do invokes fn, retrying on a non-nil error according to b until fn
// succeeds, the attempt bound is exhausted, or ctx is cancelled. It returns
// the last error seen.
func Do(ctx context.Context, b Backoff, fn func() error) error {
	delay := b.Initial
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	maxAttempts := b.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timeutil.StopAndDrainTimer(timer)
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * multiplier)
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}

	return lastErr
}
