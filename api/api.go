package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/models"
)

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

// Client talks to the assignment tracker REST API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	logger     *zap.SugaredLogger
	metrics    *MetricsCollector
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http client. Its transport is wrapped by the
// client middleware.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		if ts != nil {
			c.tokens = ts
		}
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request logging
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records every request into the collector
func WithMetrics(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// NewClient creates an API client for the given base url, e.g. http://localhost:5001
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		tokens:  StaticToken(""),
		timeout: RequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.S()
	}

	hc := &http.Client{}
	if c.httpClient != nil {
		copied := *c.httpClient
		hc = &copied
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = chain(base,
		authTransport(c.tokens),
		loggingTransport(c.logger),
		metricsTransport(c.metrics),
		requestIDTransport,
	)
	c.httpClient = hc

	return c, nil
}

// Tokens returns the token source the client authenticates with
func (c *Client) Tokens() TokenSource {
	return c.tokens
}

// Request describes a single API call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	// Public requests are sent without requiring a token (login, register)
	Public bool
}

// Do sends the request and decodes a JSON response into out when out is not nil
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	if !req.Public && c.tokens.Token() == "" {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrAuthRequired)
	}

	ctx, cancel := WithRequestTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, errorFromResponse(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: %s %s: failed to decode response: %w", ErrServer, req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func errorFromResponse(resp *http.Response) error {
	e := &Error{
		StatusCode: resp.StatusCode,
		kind:       kindForStatus(resp.StatusCode),
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body models.ErrorMessageResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
