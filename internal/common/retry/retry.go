// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds the number of retries and the delay between them. Delays
// double per attempt starting at BaseDelay and are capped at MaxDelay.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Delay returns the backoff before retry number attempt (zero based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt > 30 {
		return p.MaxDelay
	}
	d := p.BaseDelay * time.Duration(1<<attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// retries run out. It reports how many attempts were made.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if !retryable(err) || attempt == p.MaxRetries {
			return attempt + 1, err
		}

		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return attempt + 1, fmt.Errorf("cancelled after %d attempts: %w", attempt+1, lastErr)
		}
	}
	return p.MaxRetries + 1, lastErr
}
