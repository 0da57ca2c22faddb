package zumo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Request header names understood by Mobile Services.
const (
	HeaderApplication    = "X-ZUMO-APPLICATION"
	HeaderAuth           = "X-ZUMO-AUTH"
	HeaderInstallationID = "X-ZUMO-INSTALLATION-ID"
)

const (
	jsonContentType  = "application/json"
	defaultUserAgent = "zumo-go/0.1"
)

// Client talks to a single Mobile Service. It owns the login session: the
// auth token set by a successful login is attached to every later request.
// A Client is safe for concurrent use.
type Client struct {
	baseURL        string
	applicationKey string
	installationID string
	userAgent      string
	httpClient     *http.Client
	logger         *slog.Logger
	limiter        *rate.Limiter
	metrics        *Metrics

	session Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request. The client's
// own timeout, if any, is the only timeout applied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInstallationID sends id in the X-ZUMO-INSTALLATION-ID header.
func WithInstallationID(id string) Option {
	return func(c *Client) {
		c.installationID = id
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit throttles outgoing requests to rps requests per second.
// Zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps)))
		}
	}
}

// WithMetrics records request and login metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for the service at serviceURL, e.g.
// "https://todo.azure-mobile.net/". applicationKey may be empty.
func NewClient(serviceURL, applicationKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("zumo: parsing service URL: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("zumo: service URL must be an absolute http(s) URL, got %q", serviceURL)
	}

	c := &Client{
		baseURL:        strings.TrimRight(serviceURL, "/"),
		applicationKey: applicationKey,
		userAgent:      defaultUserAgent,
		httpClient:     http.DefaultClient,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Base returns the service URL without a trailing slash.
func (c *Client) Base() string {
	return c.baseURL
}

// Get issues a GET against path (relative to the service URL).
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with payload serialized as JSON.
func (c *Client) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, payload)
}

// Patch issues a PATCH with payload serialized as JSON.
func (c *Client) Patch(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.Do(ctx, http.MethodPatch, path, payload)
}

// Delete issues a DELETE against path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

// Do executes one request and returns the raw response body.
//
// path is joined to the service URL with a single "/". payload may be nil,
// a string, []byte or json.RawMessage (sent as-is), or any other value,
// which is marshaled to JSON. GET requests never carry a body.
//
// Failures come back as *TransportError when no response arrived and as
// *HTTPError for non-2xx statuses. Nothing is retried.
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, err := encodePayload(method, payload)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(method, 0, time.Since(start))

		if ctx.Err() != nil {
			return nil, &TransportError{Method: method, Path: path, Err: ctx.Err()}
		}

		cause := unwrapTransport(err)
		c.logger.Warn("request failed without response",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", cause.Error()),
		)

		return nil, &TransportError{Method: method, Path: path, Err: cause}
	}
	defer resp.Body.Close()

	c.metrics.observeRequest(method, resp.StatusCode, time.Since(start))

	data, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if readErr != nil {
			return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("reading response body: %w", readErr)}
		}

		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return data, nil
	}

	msg := string(data)
	if readErr != nil {
		msg = bodyUnreadable
	}

	c.logger.Debug("request returned error status",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       msg,
		Err:        classifyStatus(resp.StatusCode),
	}
}

// newRequest builds the request and attaches the Mobile Services headers.
// The auth header is read from the session at send time.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("zumo: creating request: %w", err)
	}

	req.Header.Set("Accept", jsonContentType)
	req.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		req.Header.Set("Content-Type", jsonContentType)
	}

	if c.applicationKey != "" {
		req.Header.Set(HeaderApplication, c.applicationKey)
	}

	if c.installationID != "" {
		req.Header.Set(HeaderInstallationID, c.installationID)
	}

	if tok := c.session.AuthToken(); tok != "" {
		req.Header.Set(HeaderAuth, tok)
	}

	return req, nil
}

// encodePayload turns a request payload into body bytes. A nil result means
// the request is sent without a body.
func encodePayload(method string, payload any) ([]byte, error) {
	if method == http.MethodGet || payload == nil {
		return nil, nil
	}

	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("zumo: encoding request body: %w", err)
	}

	return data, nil
}

// IsTransportError reports whether err means no HTTP response was received.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// HTTP status error.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}

	return 0
}
