// Package retry runs calls against the data service with bounded retries,
// exponential backoff, and full jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-proctor/internal/domain"
)

// Defaults used by DefaultConfig.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 3 * time.Second
	DefaultMultiplier      = 2.0
	DefaultMaxElapsedTime  = 20 * time.Second
)

var (
	errMaxAttemptsInvalid     = errors.New("max attempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initial interval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("max interval must be >= initial interval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errMaxElapsedTimeInvalid  = errors.New("max elapsed time must be >= 0")

	// ErrExhausted wraps the last error once every attempt has failed.
	ErrExhausted = errors.New("all retries exhausted")
)

// Config controls a retry loop.
type Config struct {
	MaxAttempts     int           `json:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
	Multiplier      float64       `json:"multiplier"`
	// MaxElapsedTime stops retrying once exceeded; zero disables the limit.
	MaxElapsedTime time.Duration `json:"max_elapsed_time"`
	UseJitter      bool          `json:"use_jitter"`
}

// DefaultConfig returns the retry policy used for remote calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		UseJitter:       true,
	}
}

// Validate checks that the policy terminates and never shrinks the interval.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, c.MaxAttempts)
	}
	if c.InitialInterval <= 0 {
		return fmt.Errorf("%w, got %v", errInitialIntervalInvalid, c.InitialInterval)
	}
	if c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("%w, max: %v, initial: %v", errMaxIntervalInvalid, c.MaxInterval, c.InitialInterval)
	}
	if c.Multiplier < 1.0 {
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, c.Multiplier)
	}
	if c.MaxElapsedTime < 0 {
		return fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, c.MaxElapsedTime)
	}
	return nil
}

// Backoff returns the delay before retry number attempt (1-based). With
// jitter the delay is uniform in [0, backoff].
func Backoff(attempt int, c Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	backoff := c.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * max(c.Multiplier, 1.0))
		if c.MaxInterval > 0 && backoff > c.MaxInterval {
			backoff = c.MaxInterval
			break
		}
	}
	if c.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		return time.Duration(jitterMs) * time.Millisecond
	}
	return backoff
}

// Retryable reports whether err may succeed on another attempt: retryable
// remote errors, deadline expiry of a single call, and network timeouts.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrShape) {
		return false
	}
	var re *domain.RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Stats is a snapshot of a Retrier's counters.
type Stats struct {
	Attempts          int64 `json:"attempts"`
	SuccessfulRetries int64 `json:"successful_retries"`
	Exhausted         int64 `json:"exhausted"`
}

// Retrier runs operations under a Config.
type Retrier struct {
	config    Config
	retryable func(error) bool
	logger    *slog.Logger

	attempts          atomic.Int64
	successfulRetries atomic.Int64
	exhausted         atomic.Int64
}

// New creates a Retrier. It fails when cfg is invalid.
func New(cfg Config) (*Retrier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retrier{
		config:    cfg,
		retryable: Retryable,
		logger:    slog.Default().With("component", "retry"),
	}, nil
}

// WithClassifier replaces the function deciding whether an error is retried.
func (r *Retrier) WithClassifier(fn func(error) bool) *Retrier {
	if fn != nil {
		r.retryable = fn
	}
	return r
}

// Stats returns the counters accumulated so far.
func (r *Retrier) Stats() Stats {
	return Stats{
		Attempts:          r.attempts.Load(),
		SuccessfulRetries: r.successfulRetries.Load(),
		Exhausted:         r.exhausted.Load(),
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or the elapsed time budget is spent. A non-retryable error is
// returned unchanged; exhaustion wraps the last error with ErrExhausted.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		r.attempts.Add(1)
		if err == nil {
			if attempt > 1 {
				r.successfulRetries.Add(1)
				r.logger.InfoContext(ctx, "call succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		}
		if !r.retryable(err) {
			return err
		}
		lastErr = err
		if attempt == r.config.MaxAttempts {
			break
		}

		backoff := Backoff(attempt, r.config)
		if r.config.MaxElapsedTime > 0 && time.Since(start)+backoff > r.config.MaxElapsedTime {
			r.logger.WarnContext(ctx, "max elapsed time exceeded",
				"op", op, "elapsed", time.Since(start), "attempts", attempt, "last_error", err)
			break
		}
		r.logger.DebugContext(ctx, "retrying after backoff",
			"op", op, "attempt", attempt, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: cancelled during retry: %w", op, ctx.Err())
		}
	}

	r.exhausted.Add(1)
	return fmt.Errorf("%s: %w: %w", op, ErrExhausted, lastErr)
}
