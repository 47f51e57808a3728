// Package remote implements the data service as an HTTP/JSON client. Every
// call is rate limited and retried, and every response passes through a
// normalization layer that tolerates snake_case, camelCase, and PascalCase
// field names as well as enveloped listings.
package remote

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-proctor/internal/domain"
	"github.com/ahrav/go-proctor/internal/retry"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Token   string
	Timeout time.Duration

	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	Retry      retry.Config
	HTTPClient *http.Client
}

// Client talks to the remote data service.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retrier *retry.Retrier
	logger  *slog.Logger
}

// New creates a Client for baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid data service url %q", baseURL)
	}
	if opts.Retry == (retry.Config{}) {
		opts.Retry = retry.DefaultConfig()
	}
	retrier, err := retry.New(opts.Retry)
	if err != nil {
		return nil, fmt.Errorf("retry config: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cmp.Or(opts.Timeout, 10*time.Second)}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	return &Client{
		baseURL: u,
		token:   opts.Token,
		http:    httpClient,
		limiter: limiter,
		retrier: retrier,
		logger:  slog.Default().With("component", "remote-store"),
	}, nil
}

// RetryStats reports the retry counters of the client.
func (c *Client) RetryStats() retry.Stats { return c.retrier.Stats() }

// call performs one logical request with retries and returns the parsed body.
// A 404 is reported as domain.ErrNotFound; other failures as
// *domain.RemoteError.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body any) (gjson.Result, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return gjson.Result{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	// One key per logical write so retried attempts are deduplicated server side.
	var idempotencyKey string
	if method != http.MethodGet {
		idempotencyKey = uuid.NewString()
	}

	var result gjson.Result
	err := c.retrier.Do(ctx, op, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
		raw, err := c.send(ctx, op, method, path, query, payload, idempotencyKey)
		if err != nil {
			return err
		}
		result = gjson.ParseBytes(raw)
		return nil
	})
	return result, err
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, payload []byte, idempotencyKey string) ([]byte, error) {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return nil, &domain.RemoteError{Op: op, Cause: errors.Wrap(err, "send request")}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Cause: errors.Wrap(err, "read response")}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case resp.StatusCode >= 400:
		c.logger.DebugContext(ctx, "data service rejected request",
			"op", op, "method", method, "path", path, "status", resp.StatusCode)
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return strings.TrimSpace(string(raw))
	}
	doc := gjson.ParseBytes(raw)
	for _, path := range []string{"message", "Message", "error.message", "error", "detail", "title"} {
		if v := doc.Get(path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return strings.TrimSpace(string(raw))
}
