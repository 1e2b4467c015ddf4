package remote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/courseimport/internal/storage"
)

// newTestExecutor returns an executor without pacing that records backoff delays instead of sleeping
func newTestExecutor(cfg Config) (*Executor, *[]time.Duration) {
	if cfg.RateLimitInterval == 0 {
		cfg.RateLimitInterval = -1
	}
	ex := NewExecutor(cfg, nil)
	var delays []time.Duration
	ex.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return ex, &delays
}

func TestBackoffDelay_RateLimitedIsMonotonicAndCapped(t *testing.T) {
	base := 300 * time.Millisecond
	maxBackoff := 8 * time.Second

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := BackoffDelay(attempt, base, maxBackoff, true)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, maxBackoff, "attempt %d", attempt)
		prev = d
	}

	assert.Equal(t, 600*time.Millisecond, BackoffDelay(1, base, maxBackoff, true))
	assert.Equal(t, 1200*time.Millisecond, BackoffDelay(2, base, maxBackoff, true))
	assert.Equal(t, 4800*time.Millisecond, BackoffDelay(4, base, maxBackoff, true))
	assert.Equal(t, maxBackoff, BackoffDelay(5, base, maxBackoff, true))
	assert.Equal(t, maxBackoff, BackoffDelay(60, base, maxBackoff, true))
}

func TestBackoffDelay_GenericIsLinear(t *testing.T) {
	base := 300 * time.Millisecond
	for k := 1; k <= 6; k++ {
		assert.Equal(t, max(base, base*time.Duration(k)), BackoffDelay(k, base, 8*time.Second, false))
	}
	assert.Equal(t, base, BackoffDelay(0, base, 8*time.Second, false))
}

func TestExecute_SucceedsAfterFailures(t *testing.T) {
	ex, delays := newTestExecutor(Config{})

	calls := 0
	err := ex.Execute(context.Background(), "list:root", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 600 * time.Millisecond}, *delays)
}

func TestExecute_RateLimitedUsesExponentialBackoff(t *testing.T) {
	ex, delays := newTestExecutor(Config{})

	err := ex.Execute(context.Background(), "list:root", func(ctx context.Context) error {
		return &storage.APIError{StatusCode: 403, Reason: "userRateLimitExceeded"}
	}, WithRetries(4))

	require.Error(t, err)
	assert.Equal(t, []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond, 2400 * time.Millisecond}, *delays)
}

func TestExecute_ReturnsLastError(t *testing.T) {
	ex, _ := newTestExecutor(Config{})

	calls := 0
	err := ex.Execute(context.Background(), "get:file", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, WithRetries(3))

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
}

func TestExecute_ZeroRetriesMeansOneAttempt(t *testing.T) {
	ex, _ := newTestExecutor(Config{})

	calls := 0
	_ = ex.Execute(context.Background(), "x", func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	}, WithRetries(0))

	assert.Equal(t, 1, calls)
}

func TestExecute_DoesNotRetryUnauthorized(t *testing.T) {
	ex, delays := newTestExecutor(Config{})

	calls := 0
	err := ex.Execute(context.Background(), "about", func(ctx context.Context) error {
		calls++
		return &storage.APIError{StatusCode: 401, Message: "Invalid Credentials"}
	})

	assert.ErrorIs(t, err, storage.ErrUnauthorized)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestExecute_TimeoutAbortsOnlyTheAttempt(t *testing.T) {
	ex, _ := newTestExecutor(Config{})

	var calls int32
	err := ex.Execute(context.Background(), "export:slow", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, WithTimeout(20*time.Millisecond), WithRetries(2))

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecute_TimeoutError(t *testing.T) {
	ex, _ := newTestExecutor(Config{})

	block := make(chan struct{})
	defer close(block)

	err := ex.Execute(context.Background(), "export:stuck", func(ctx context.Context) error {
		<-block
		return nil
	}, WithTimeout(10*time.Millisecond), WithRetries(1))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "export:stuck", te.Label)
	assert.Equal(t, 10*time.Millisecond, te.Timeout)
	assert.True(t, IsTimeout(err))
}

func TestExecute_ParentCancellation(t *testing.T) {
	ex, _ := newTestExecutor(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := ex.Execute(ctx, "x", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_ReturnsValue(t *testing.T) {
	ex, _ := newTestExecutor(Config{})

	v, err := Do(context.Background(), ex, "value", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

type trackedCloser struct {
	name   string
	closed atomic.Bool
}

func (c *trackedCloser) Close() error {
	c.closed.Store(true)
	return nil
}

func TestDoCloser_ClosesValueOfAbandonedAttempt(t *testing.T) {
	ex, _ := newTestExecutor(Config{})
	late := &trackedCloser{name: "late"}
	fresh := &trackedCloser{name: "fresh"}
	release := make(chan struct{})

	var calls int32
	v, err := DoCloser(context.Background(), ex, "download:file", func(ctx context.Context) (*trackedCloser, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
			return late, nil
		}
		return fresh, nil
	}, WithTimeout(10*time.Millisecond), WithRetries(2))
	require.NoError(t, err)
	assert.Same(t, fresh, v)

	close(release)
	assert.Eventually(t, late.closed.Load, time.Second, 5*time.Millisecond)
	assert.False(t, fresh.closed.Load())
}

func TestDoCloser_ClosesEverythingOnFailure(t *testing.T) {
	ex, _ := newTestExecutor(Config{})
	opened := &trackedCloser{name: "opened"}

	var calls int32
	_, err := DoCloser(context.Background(), ex, "export:file", func(ctx context.Context) (*trackedCloser, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			<-time.After(5 * time.Millisecond)
			return opened, nil
		}
		return nil, errors.New("gone")
	}, WithTimeout(10*time.Millisecond), WithRetries(2))

	require.EqualError(t, err, "gone")
	assert.Eventually(t, opened.closed.Load, time.Second, 5*time.Millisecond)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&storage.APIError{StatusCode: 429}))
	assert.True(t, IsRateLimited(&storage.APIError{StatusCode: 403, Reason: "rateLimitExceeded"}))
	assert.True(t, IsRateLimited(errors.New("User Rate Limit Exceeded")))
	assert.True(t, IsRateLimited(storage.ErrRateLimited))
	assert.False(t, IsRateLimited(&storage.APIError{StatusCode: 500}))
	assert.False(t, IsRateLimited(nil))
}

func TestRateLimiter_SpacesCalls(t *testing.T) {
	rl := newRateLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRateLimiter_ConcurrentCallersAreSpaced(t *testing.T) {
	interval := 20 * time.Millisecond
	rl := newRateLimiter(interval)
	ctx := context.Background()

	var mu sync.Mutex
	var stamps []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, rl.wait(ctx))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 5)
	first, last := stamps[0], stamps[0]
	for _, s := range stamps {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 3*interval)
}

func TestRateLimiter_RespectsContext(t *testing.T) {
	rl := newRateLimiter(time.Hour)
	require.NoError(t, rl.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.wait(ctx), context.DeadlineExceeded)
}
