package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"polyinfer-hq/polyinfer/pkg/config"
	"polyinfer-hq/polyinfer/pkg/template"
)

// DefaultMaxResponseBytes bounds how much of a response body is read.
const DefaultMaxResponseBytes = 10 << 20

// Request carries the per-attempt inputs of a provider call.
type Request struct {
	// Input replaces {input}.
	Input string

	// APIKey replaces {api_key}. Empty for keyless providers.
	APIKey string

	// KeyIndex is the position of APIKey in the selector output. It is
	// only used to label errors.
	KeyIndex int

	// RepairBody enables JSON repair of the rendered body.
	RepairBody bool
}

// Response is a successful provider answer.
type Response struct {
	// Text is the extracted answer.
	Text string

	// Raw is the full decoded response body.
	Raw any

	// Body is the response body as received.
	Body []byte

	// StatusCode is the HTTP status code.
	StatusCode int

	// Latency is the wall time of the HTTP exchange.
	Latency time.Duration
}

// Client performs templated provider calls over a pooled HTTP client.
// It is safe for concurrent use.
type Client struct {
	http             *http.Client
	logger           *slog.Logger
	maxResponseBytes int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxResponseBytes bounds the response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

// NewClient creates a client with connection pooling. Timeouts are
// applied per attempt from the provider configuration, not on the
// HTTP client.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		http:             &http.Client{Transport: transport},
		logger:           slog.Default(),
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call renders the provider templates, POSTs the body to the provider and
// extracts the answer text. Every failure is a *CallError. When ctx is
// cancelled by the caller the CallError wraps ctx.Err() so callers can
// tell a cancelled attempt from a failed one.
func (c *Client) Call(ctx context.Context, p *config.ProviderConfig, req Request) (*Response, error) {
	fail := func(stage Stage, status int, raw string, cause error) error {
		return &CallError{
			Provider:   p.Name,
			Stage:      stage,
			KeyIndex:   req.KeyIndex,
			StatusCode: status,
			RawBody:    raw,
			Cause:      cause,
		}
	}

	vars := template.Vars{Model: p.Model, Input: req.Input, APIKey: req.APIKey}
	body, err := template.RenderJSON(p.RequestStructure, vars, req.RepairBody)
	if err != nil {
		return nil, fail(StageRender, 0, "", err)
	}
	headers := template.RenderHeaders(p.RequestHeader, vars)

	attemptCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, p.APIURL, strings.NewReader(body))
	if err != nil {
		return nil, fail(StageRender, 0, "", fmt.Errorf("failed to create request: %w", err))
	}
	for name, value := range headers {
		httpReq.Header.Set(name, value)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request to provider",
		"provider", p.Name,
		"url", p.APIURL,
		"key_index", req.KeyIndex,
	)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fail(StageTransport, 0, "", c.transportCause(ctx, attemptCtx, p, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	latency := time.Since(start)
	if err != nil {
		return nil, fail(StageTransport, resp.StatusCode, "", c.transportCause(ctx, attemptCtx, p, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fail(StageStatus, resp.StatusCode, string(raw), statusCause(p.Name, resp, raw))
	}

	var decoded any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &decoded); err != nil {
		return nil, fail(StageDecode, resp.StatusCode, string(raw), &ParseError{
			Provider:    p.Name,
			RawResponse: string(raw),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		})
	}

	text, err := p.Path().Extract(decoded)
	if err != nil {
		return nil, fail(StageExtract, resp.StatusCode, string(raw), err)
	}

	return &Response{
		Text:       text,
		Raw:        decoded,
		Body:       raw,
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}, nil
}

// CloseIdleConnections closes idle pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// transportCause classifies a transport failure. Caller cancellation wins
// over the attempt's own deadline.
func (c *Client) transportCause(parent, attempt context.Context, p *config.ProviderConfig, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Provider: p.Name, Timeout: p.Timeout}
	}
	return err
}

func statusCause(provider string, resp *http.Response, raw []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Provider: provider, Message: string(raw)}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(raw),
		}
	default:
		return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Message: string(raw)}
	}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsCancelled reports whether err is an attempt abandoned because the
// caller's context was cancelled.
func IsCancelled(err error) bool {
	var ce *CallError
	if !errors.As(err, &ce) {
		return false
	}
	return errors.Is(ce.Cause, context.Canceled)
}
