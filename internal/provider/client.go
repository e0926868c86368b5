package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maximbilan/chatr/internal/apiconfig"
)

const (
	// DefaultRequestTimeout bounds the wait for response headers.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultIdleTimeout bounds the silence between two body reads.
	DefaultIdleTimeout = 60 * time.Second

	maxErrorBody = 4 << 10
)

// dialect is the provider-specific half of a streaming request.
type dialect interface {
	newRequest(ctx context.Context, req Request) (*http.Request, error)
	extract(payload []byte) (string, error)
}

// Client streams completions over HTTP.
type Client struct {
	httpClient     *http.Client
	logger         *zap.Logger
	requestTimeout time.Duration
	idleTimeout    time.Duration
	geminiBaseURL  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeouts sets the header and idle timeouts. Zero disables one.
func WithTimeouts(request, idle time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = request
		c.idleTimeout = idle
	}
}

// WithGeminiBaseURL points Gemini requests at another host.
func WithGeminiBaseURL(base string) Option {
	return func(c *Client) {
		c.geminiBaseURL = base
	}
}

// NewClient creates a Client with default timeouts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		logger:         zap.NewNop(),
		requestTimeout: DefaultRequestTimeout,
		idleTimeout:    DefaultIdleTimeout,
		geminiBaseURL:  apiconfig.GeminiBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) dialectFor(p apiconfig.Provider) (dialect, error) {
	switch p {
	case apiconfig.OpenAI:
		return openaiDialect{}, nil
	case apiconfig.Gemini:
		return geminiDialect{baseURL: c.geminiBaseURL}, nil
	}
	return nil, fmt.Errorf("unsupported provider %q", p)
}

// Stream sends req and returns the reply as a Stream. A non-2xx response is
// returned as a *TransportError before any delta is produced.
func (c *Client) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := apiconfig.Validate(req.Config); err != nil {
		return nil, err
	}
	provider := req.Config.ActiveProvider()
	d, err := c.dialectFor(provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := d.newRequest(ctx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build %s request: %w", provider, err)
	}

	wd := newWatchdog(c.requestTimeout, cancel)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		wd.stop()
		cancel()
		if wd.fired.Load() {
			return nil, &TransportError{Err: ErrIdleTimeout}
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		wd.stop()
		cancel()
		c.logger.Warn("provider rejected request",
			zap.String("provider", string(provider)),
			zap.String("model", req.Config.Model),
			zap.Int("status", resp.StatusCode))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     reasonPhrase(resp),
			Body:       errorSnippet(body),
		}
	}

	c.logger.Debug("stream opened",
		zap.String("provider", string(provider)),
		zap.String("model", req.Config.Model),
		zap.Duration("latency", time.Since(start)))

	wd.reset(c.idleTimeout)
	return newSSEStream(ctx, cancel, resp.Body, wd, c.idleTimeout, d.extract, c.logger), nil
}
