package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/storage"
)

const (
	defaultRetries             = 6
	defaultBaseDelay           = 300 * time.Millisecond
	defaultTimeout             = 60 * time.Second
	defaultRateLimitInterval   = 200 * time.Millisecond
	defaultMaxRateLimitBackoff = 8 * time.Second
)

// Config holds the executor-wide settings
type Config struct {
	RateLimitInterval   time.Duration
	MaxRateLimitBackoff time.Duration
	Retries             int
	BaseDelay           time.Duration
	Timeout             time.Duration
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		RateLimitInterval:   defaultRateLimitInterval,
		MaxRateLimitBackoff: defaultMaxRateLimitBackoff,
		Retries:             defaultRetries,
		BaseDelay:           defaultBaseDelay,
		Timeout:             defaultTimeout,
	}
}

// callOptions are the per-call knobs
type callOptions struct {
	retries   int
	baseDelay time.Duration
	timeout   time.Duration
}

// Option overrides a per-call setting
type Option func(*callOptions)

// WithRetries sets the number of attempts. Values below one mean a single attempt.
func WithRetries(n int) Option {
	return func(o *callOptions) { o.retries = n }
}

// WithBaseDelay sets the base backoff delay
func WithBaseDelay(d time.Duration) Option {
	return func(o *callOptions) { o.baseDelay = d }
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

// Executor runs remote calls through a shared rate limiter with per-attempt timeouts and backoff.
// One Executor is shared by every caller talking to the same provider account.
type Executor struct {
	cfg     Config
	limiter *rateLimiter
	logger  *zap.Logger

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor. Zero values in cfg fall back to DefaultConfig.
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	def := DefaultConfig()
	if cfg.RateLimitInterval < 0 {
		cfg.RateLimitInterval = 0
	} else if cfg.RateLimitInterval == 0 {
		cfg.RateLimitInterval = def.RateLimitInterval
	}
	if cfg.MaxRateLimitBackoff <= 0 {
		cfg.MaxRateLimitBackoff = def.MaxRateLimitBackoff
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitInterval),
		logger:  logger.Named("remote"),
		sleep:   sleepContext,
	}
}

// Execute runs fn until it succeeds or the attempts are exhausted.
// It returns a *TimeoutError when the last attempt timed out, otherwise the last error from fn.
func (e *Executor) Execute(ctx context.Context, label string, fn func(ctx context.Context) error, opts ...Option) error {
	o := callOptions{
		retries:   e.cfg.Retries,
		baseDelay: e.cfg.BaseDelay,
		timeout:   e.cfg.Timeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retries < 1 {
		o.retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= o.retries; attempt++ {
		if err := e.limiter.wait(ctx); err != nil {
			return err
		}

		lastErr = e.attempt(ctx, label, o.timeout, fn)
		if lastErr == nil {
			return nil
		}

		// The caller gave up; its deadline is not the attempt's.
		if ctx.Err() != nil {
			return lastErr
		}

		rateLimited := IsRateLimited(lastErr)
		e.logger.Warn("remote call failed",
			zap.String("label", label),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.retries),
			zap.Bool("rate_limited", rateLimited),
			zap.Error(lastErr),
		)

		if !isRetryable(lastErr) || attempt == o.retries {
			break
		}

		delay := BackoffDelay(attempt, o.baseDelay, e.cfg.MaxRateLimitBackoff, rateLimited)
		if err := e.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// Call runs fn with the default options. Its signature matches storage.CallFunc.
func (e *Executor) Call(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	return e.Execute(ctx, label, fn)
}

// Do runs fn through ex and returns the value of the attempt that succeeded
func Do[T any](ctx context.Context, ex *Executor, label string, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	return do(ctx, ex, label, fn, nil, opts...)
}

// DoCloser is Do for values that hold resources. Values produced by attempts that were abandoned
// on timeout, including ones that arrive after DoCloser returned, are closed.
func DoCloser[T io.Closer](ctx context.Context, ex *Executor, label string, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	return do(ctx, ex, label, fn, func(v T) { _ = v.Close() }, opts...)
}

func do[T any](ctx context.Context, ex *Executor, label string, fn func(ctx context.Context) (T, error), release func(T), opts ...Option) (T, error) {
	var (
		mu       sync.Mutex
		attempts int
		values   = make(map[int]T)
		finished bool
	)
	discard := func(v T) {
		if release != nil {
			release(v)
		}
	}

	err := ex.Execute(ctx, label, func(ctx context.Context) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		v, err := fn(ctx)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if finished {
			discard(v)
			return nil
		}
		values[n] = v
		return nil
	}, opts...)

	mu.Lock()
	defer mu.Unlock()
	finished = true

	var result T
	for n, v := range values {
		if err == nil && n == attempts {
			result = v
			continue
		}
		discard(v)
	}
	return result, err
}

// attempt runs fn once under its own timeout. fn keeps running in the background if it ignores
// its context, but the caller is released when the timeout fires.
func (e *Executor) attempt(ctx context.Context, label string, timeout time.Duration, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{Label: label, Timeout: timeout, Err: err}
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TimeoutError{Label: label, Timeout: timeout}
	}
}

// BackoffDelay computes the wait after the given failed attempt (1-based).
// Rate-limit errors back off exponentially up to maxRateLimit; other errors back off linearly.
func BackoffDelay(attempt int, base, maxRateLimit time.Duration, rateLimited bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if !rateLimited {
		return max(base, base*time.Duration(attempt))
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxRateLimit {
			return maxRateLimit
		}
	}
	return min(maxRateLimit, max(base, delay))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TimeoutError reports a call or transfer that exceeded its deadline
type TimeoutError struct {
	Label   string
	Timeout time.Duration
	Err     error // Error returned by the aborted operation, if any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Label, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is or wraps a *TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, storage.ErrUnauthorized) || errors.Is(err, storage.ErrNotFound) {
		return false
	}
	var apiErr *storage.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 403 && !IsRateLimited(err) {
		return false
	}
	return true
}
