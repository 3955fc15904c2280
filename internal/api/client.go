package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultServerURL is used when no profile or environment names a server.
	DefaultServerURL = "https://api.cloudtruth.io"
	defaultTimeout   = 30 * time.Second
	defaultPageSize  = 100
	apiPrefix        = "/api/v1/"
)

// RequestContext carries everything needed to authenticate and identify a
// request. It is built once from the resolved profile.
type RequestContext struct {
	ServerURL   string
	APIKey      string
	BearerToken string
	UserAgent   string
	Timeout     time.Duration
}

func (rc RequestContext) authorization() string {
	if rc.BearerToken != "" {
		return "Bearer " + rc.BearerToken
	}
	if rc.APIKey != "" {
		return "Api-Key " + rc.APIKey
	}
	return ""
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a zap logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPageSize overrides the page size used for list calls.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// Client talks to the CloudTruth REST API.
type Client struct {
	httpClient *http.Client
	rc         RequestContext
	base       *url.URL
	logger     *zap.Logger
	metrics    *Metrics
	pageSize   int
}

// NewClient creates a client for the server named in rc.
func NewClient(rc RequestContext, opts ...Option) (*Client, error) {
	server := strings.TrimRight(rc.ServerURL, "/")
	if server == "" {
		server = DefaultServerURL
	}
	base, err := url.Parse(server + apiPrefix)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", rc.ServerURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", rc.ServerURL)
	}
	timeout := rc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		rc:         rc,
		base:       base,
		logger:     zap.NewNop(),
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Metrics returns the metrics attached to the client, if any.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, target string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.rc.authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if c.rc.UserAgent != "" {
		req.Header.Set("User-Agent", c.rc.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.observe(method, 0, elapsed)
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.String("request_id", requestID),
			zap.Error(err))
		return &Error{Kind: KindTransport, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.observe(method, resp.StatusCode, elapsed)
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", requestID))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, URL: target, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", target, err)
	}
	return nil
}

// listAll walks every page of a list endpoint.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("page_size", strconv.Itoa(c.pageSize))

	var all []T
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		var resp Page[T]
		if err := c.do(ctx, http.MethodGet, c.endpoint(path, query), nil, &resp); err != nil {
			return nil, err
		}
		c.metrics.pageFetched()
		all = append(all, resp.Results...)
		if resp.Next == nil || *resp.Next == "" || len(resp.Results) == 0 {
			break
		}
	}
	return all, nil
}

func boolParam(q url.Values, key string, v bool) {
	if v {
		q.Set(key, "true")
	}
}

func strParam(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
