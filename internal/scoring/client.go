// Package scoring talks to the remote task scoring service: one endpoint
// scores a weighted batch, another returns the top suggestions.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/marcus/triage/internal/batch"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/tasks"
)

const (
	DefaultBaseURL     = "http://localhost:8000/api/tasks"
	DefaultAnalyzePath = "/analyze/"
	DefaultSuggestPath = "/suggest/"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 1
	DefaultRetryDelay  = 500 * time.Millisecond
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Client calls the analyze and suggest endpoints.
type Client struct {
	baseURL     string
	analyzePath string
	suggestPath string
	hc          *http.Client
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout bounds each request, including any retries.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry retries transport failures up to maxAttempts total attempts with
// exponential backoff starting at delay. HTTP error statuses are never retried.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.retryDelay = delay
	}
}

// WithPaths overrides the endpoint paths.
func WithPaths(analyze, suggest string) Option {
	return func(c *Client) {
		c.analyzePath = analyze
		c.suggestPath = suggest
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		analyzePath: DefaultAnalyzePath,
		suggestPath: DefaultSuggestPath,
		hc:          &http.Client{},
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      logging.Component("scoring"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// AnalyzeURL is the full analyze endpoint.
func (c *Client) AnalyzeURL() string { return c.baseURL + c.analyzePath }

// SuggestURL is the full suggest endpoint.
func (c *Client) SuggestURL() string { return c.baseURL + c.suggestPath }

// Analyze sends the weighted batch and returns the scored tasks in the order
// the service ranked them.
func (c *Client) Analyze(ctx context.Context, b []batch.WeightedTask) ([]tasks.Task, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return c.call(ctx, http.MethodPost, c.AnalyzeURL(), payload)
}

// Suggest fetches the service's top suggestions from the last analyzed batch.
func (c *Client) Suggest(ctx context.Context) ([]tasks.Task, error) {
	return c.call(ctx, http.MethodGet, c.SuggestURL(), nil)
}

// response is what one attempt produced. Any HTTP response counts as a
// completed attempt so only transport failures reach the retry policy.
type response struct {
	status int
	body   []byte
}

func (c *Client) call(ctx context.Context, method, url string, payload []byte) ([]tasks.Task, error) {
	r := retry.New[response](retry.Config{
		MaxAttempts:   c.maxAttempts,
		InitialDelay:  c.retryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[response](timeout.Config{DefaultTimeout: c.timeout})

	start := time.Now()
	resp, err := t.Execute(ctx, c.timeout, func(ctx context.Context) (response, error) {
		return r.Do(ctx, func(ctx context.Context) (response, error) {
			return c.send(ctx, method, url, payload)
		})
	})
	fields := map[string]any{
		"method":      method,
		"url":         url,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		c.logger.WarnCtx("scoring request failed", fields)
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	fields["status"] = resp.status
	c.logger.DebugCtx("scoring response", fields)

	if resp.status < 200 || resp.status > 299 {
		return nil, &StatusError{
			Endpoint:   url,
			StatusCode: resp.status,
			Body:       resp.body,
			Detail:     detail(resp.body),
		}
	}

	scored, err := tasks.DecodeScored(resp.body)
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %v", ErrMalformedResponse, url, err)
	}
	return scored, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("reading response: %w", err)
	}
	return response{status: res.StatusCode, body: data}, nil
}

// detail extracts the "detail" member the service puts in error bodies.
func detail(body []byte) string {
	var v struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &v); err != nil || v.Detail == nil {
		return ""
	}
	if s, ok := v.Detail.(string); ok {
		return s
	}
	out, err := json.Marshal(v.Detail)
	if err != nil {
		return ""
	}
	return string(out)
}
