// Package cloudflare talks to the Cloudflare v4 API for firewall rules and
// their filters.
//
// Every failure (transport, non-2xx status, unexpected payload) is logged
// once with enough context to diagnose it and reported to the caller as a
// plain "no result". Callers never need to tell the three apart.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grimm.is/dynwall/internal/brand"
	"grimm.is/dynwall/internal/clock"
	"grimm.is/dynwall/internal/config"
	"grimm.is/dynwall/internal/logging"
	"grimm.is/dynwall/internal/metrics"
)

// Failure kinds. Errors returned by Do wrap exactly one of these.
var (
	ErrTransport = errors.New("transport failure")
	ErrAPI       = errors.New("api failure")
	ErrMalformed = errors.New("malformed response")
)

const maxBody = 1 << 20

// Filter is the part of a firewall rule dynwall manages.
type Filter struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Paused     bool   `json:"paused"`
}

// APIError describes a non-2xx answer.
type APIError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// Client is a minimal Cloudflare API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *logging.Logger
	metrics    *metrics.Registry
	clock      clock.Clock
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root (tests point this at httptest servers).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the public API. No request timeout is set:
// a hanging API call stalls the current pass, and the next tick starts once
// it returns.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(brand.APIBaseURL, "/"),
		httpClient: &http.Client{},
		userAgent:  brand.UserAgent(brand.Version),
		logger:     logging.WithComponent("cloudflare"),
		metrics:    metrics.Get(),
		clock:      &clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RulePath is the endpoint of a firewall rule.
func RulePath(zoneID, ruleID string) string {
	return "zones/" + url.PathEscape(zoneID) + "/firewall/rules/" + url.PathEscape(ruleID)
}

// FilterPath is the endpoint of a filter.
func FilterPath(zoneID, filterID string) string {
	return "zones/" + url.PathEscape(zoneID) + "/filters/" + url.PathEscape(filterID)
}

// Do performs one request and decodes a 2xx JSON answer into result
// (when non-nil). The returned error wraps ErrTransport, ErrAPI or
// ErrMalformed.
func (c *Client) Do(ctx context.Context, method, endpoint string, auth config.Auth, body, result any) error {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal request body: %v", ErrTransport, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setAuth(req.Header, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		effective := target
		if resp.Request != nil && resp.Request.URL != nil {
			effective = resp.Request.URL.String()
		}
		return &APIError{
			Method: method,
			URL:    effective,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return nil
}

// Call is Do with the failure logged and flattened into ok=false.
func (c *Client) Call(ctx context.Context, method, endpoint string, auth config.Auth, body, result any) bool {
	start := c.clock.Now()
	err := c.Do(ctx, method, endpoint, auth, body, result)
	c.metrics.RecordAPIRequest(method, outcome(err), c.clock.Since(start))
	if err != nil {
		c.report(method, endpoint, err)
		return false
	}
	return true
}

func (c *Client) report(method, endpoint string, err error) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		c.logger.Error("Error sending request", "method", method, "url", apiErr.URL, "status", apiErr.Status, "body", apiErr.Body)
	case errors.Is(err, ErrMalformed):
		c.logger.Error("Unexpected response", "method", method, "endpoint", endpoint, "error", err)
	default:
		c.logger.Error("An exception occurred while sending request", "method", method, "endpoint", endpoint, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	}
	return "transport"
}

func setAuth(h http.Header, auth config.Auth) {
	if auth.UsesToken() {
		h.Set("Authorization", "Bearer "+auth.APIToken)
		return
	}
	h.Set("X-Auth-Email", auth.Email())
	h.Set("X-Auth-Key", auth.Key())
}
