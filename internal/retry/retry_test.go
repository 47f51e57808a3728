package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/internal/domain"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero attempts", modify: func(c *Config) { c.MaxAttempts = 0 }, wantErr: errMaxAttemptsInvalid},
		{name: "zero interval", modify: func(c *Config) { c.InitialInterval = 0 }, wantErr: errInitialIntervalInvalid},
		{name: "max below initial", modify: func(c *Config) { c.MaxInterval = time.Millisecond }, wantErr: errMaxIntervalInvalid},
		{name: "shrinking multiplier", modify: func(c *Config) { c.Multiplier = 0.5 }, wantErr: errMultiplierInvalid},
		{name: "negative elapsed", modify: func(c *Config) { c.MaxElapsedTime = -1 }, wantErr: errMaxElapsedTimeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), Backoff(0, cfg))
	assert.Equal(t, 100*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, Backoff(2, cfg))
	assert.Equal(t, 400*time.Millisecond, Backoff(3, cfg))
	assert.Equal(t, time.Second, Backoff(10, cfg))

	cfg.UseJitter = true
	for i := 0; i < 100; i++ {
		d := Backoff(3, cfg)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &domain.RemoteError{Op: "x", Status: 503}, true},
		{"throttled", &domain.RemoteError{Op: "x", Status: 429}, true},
		{"transport", &domain.RemoteError{Op: "x", Cause: errors.New("reset")}, true},
		{"client error", &domain.RemoteError{Op: "x", Status: 400}, false},
		{"not found", fmt.Errorf("get: %w", domain.ErrNotFound), false},
		{"validation", domain.NewValidationError("x"), false},
		{"shape", &domain.ShapeError{Entity: "x", Field: "id"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestRetrier_Do(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "first try", errs: nil, attempts: 3, wantCalls: 1},
		{
			name:      "retries 5xx until success",
			errs:      []error{&domain.RemoteError{Status: 502}, &domain.RemoteError{Status: 503}},
			attempts:  3,
			wantCalls: 3,
		},
		{
			name:      "4xx is not retried",
			errs:      []error{&domain.RemoteError{Status: 422}},
			attempts:  3,
			wantCalls: 1,
			wantErr:   domain.ErrRemote,
		},
		{
			name:      "exhausted",
			errs:      []error{&domain.RemoteError{Status: 500}, &domain.RemoteError{Status: 500}, &domain.RemoteError{Status: 500}},
			attempts:  2,
			wantCalls: 2,
			wantErr:   ErrExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(fastConfig(tt.attempts))
			require.NoError(t, err)

			calls := 0
			err = r.Do(context.Background(), "op", func(context.Context) error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRetrier_DoCancelled(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialInterval, cfg.MaxInterval = time.Hour, time.Hour
	r, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = r.Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return &domain.RemoteError{Status: 503}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)

	err = r.Do(ctx, "op", func(context.Context) error {
		t.Fatal("must not be called")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetrier_Stats(t *testing.T) {
	r, err := New(fastConfig(3))
	require.NoError(t, err)

	calls := 0
	require.NoError(t, r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return &domain.RemoteError{Status: 500}
		}
		return nil
	}))

	assert.Equal(t, Stats{Attempts: 2, SuccessfulRetries: 1}, r.Stats())
}

func TestRetrier_WithClassifier(t *testing.T) {
	r, err := New(fastConfig(2))
	require.NoError(t, err)
	r.WithClassifier(func(error) bool { return true })

	calls := 0
	err = r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("anything")
	})
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, calls)
}
