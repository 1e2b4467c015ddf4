package remote

import (
	"context"
	"time"
)

// rateLimiter spaces calls at least interval apart across all goroutines.
// The token is a one-slot channel: blocked senders are queued by the runtime in arrival order,
// and the holder sleeps out its own delay before stamping lastCall and handing the token on.
type rateLimiter struct {
	token    chan struct{}
	lastCall time.Time
	interval time.Duration
	now      func() time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{
		token:    make(chan struct{}, 1),
		interval: interval,
		now:      time.Now,
	}
}

func (r *rateLimiter) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case r.token <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.token }()

	if !r.lastCall.IsZero() {
		if remaining := r.interval - r.now().Sub(r.lastCall); remaining > 0 {
			if err := sleepContext(ctx, remaining); err != nil {
				return err
			}
		}
	}
	r.lastCall = r.now()
	return nil
}
