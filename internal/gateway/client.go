// ABOUTME: Session-aware HTTP client that is the console's only path to the backend
// ABOUTME: Attaches bearer and admin headers, enforces timeouts, tears down on 401

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/2389/pharma-console/internal/config"
	"github.com/2389/pharma-console/internal/session"
)

// Header names attached by the client.
const (
	AdminKeyHeader  = "X-ADMIN-KEY"
	RequestIDHeader = "X-Request-ID"
)

// DefaultTimeout bounds every call unless overridden.
const DefaultTimeout = config.DefaultTimeout

// adminSegment marks the privileged namespace.
const adminSegment = "/admin"

// ErrUnsupportedMethod is returned by Request for verbs other than GET, POST,
// PUT and DELETE.
var ErrUnsupportedMethod = errors.New("unsupported method")

// ExpiredEvent is emitted once when the backend rejects the current session
// credential.
type ExpiredEvent struct {
	Method string
	Path   string
	At     time.Time
}

// Response is a successful backend response, passed through unchanged.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// RequestOptions carries per-call extras for Request.
type RequestOptions struct {
	Query  url.Values
	Header http.Header
}

// Client is the session-aware request gateway.
type Client struct {
	baseURL   string
	store     session.Store
	http      *http.Client
	timeout   time.Duration
	adminKey  string
	limiter   *rate.Limiter
	onExpired func(ExpiredEvent)
	logger    *slog.Logger
	now       func() time.Time

	// teardownMu serialises 401 handling so the credential is cleared and
	// the expiry handler notified at most once per credential.
	teardownMu        sync.Mutex
	notifiedNoSession bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call upper bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAdminKey sets the capability token sent on /admin paths.
func WithAdminKey(key string) Option {
	return func(c *Client) { c.adminKey = key }
}

// WithRateLimit caps outbound calls at rps requests per second. A zero rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithExpiryHandler registers the single listener notified when the session
// is torn down after a 401.
func WithExpiryHandler(fn func(ExpiredEvent)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a gateway client for baseURL reading credentials from store.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		store:    store,
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		adminKey: config.DefaultAdminKey,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "gateway")
	return c
}

// NewFromConfig creates a client from the api config section. Options are
// applied after the config values.
func NewFromConfig(cfg config.APIConfig, store session.Store, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithAdminKey(cfg.AdminKey),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	return New(cfg.BaseURL, store, append(base, opts...)...)
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetExpiryHandler replaces the expiry listener. Used when the listener
// depends on something built after the client, such as a UI program.
func (c *Client) SetExpiryHandler(fn func(ExpiredEvent)) {
	c.teardownMu.Lock()
	defer c.teardownMu.Unlock()
	c.onExpired = fn
}

// Request is the generic escape hatch. Only GET, POST, PUT and DELETE are
// accepted; anything else fails without touching the network. body may be
// nil, []byte, json.RawMessage or any JSON-marshalable value.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Response, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return c.do(ctx, method, path, body, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body any, opts *RequestOptions) (*Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	token, err := c.store.Get()
	if err != nil {
		return nil, fmt.Errorf("reading session credential: %w", err)
	}
	if token != "" {
		c.sessionSeen()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, opts), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.New().String()
	if opts != nil {
		for k, vs := range opts.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if strings.Contains(path, adminSegment) {
		req.Header.Set(AdminKeyHeader, c.adminKey)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", c.now().Sub(start),
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusUnauthorized {
			c.expire(token, method, path)
		}
		return nil, apiErr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// expire clears the credential the failed request carried and notifies the
// expiry handler. A credential that was already cleared or replaced by a
// newer login is left alone. Requests made without a credential notify once
// until a credential is seen again.
func (c *Client) expire(sent, method, path string) {
	c.teardownMu.Lock()
	current, err := c.store.Get()
	if err != nil {
		c.teardownMu.Unlock()
		c.logger.Error("reading credential during teardown", "error", err)
		return
	}
	if current != sent {
		c.teardownMu.Unlock()
		return
	}
	if sent == "" && c.notifiedNoSession {
		c.teardownMu.Unlock()
		return
	}
	if sent != "" {
		if err := c.store.Clear(); err != nil {
			c.logger.Error("clearing expired credential", "error", err)
		}
	}
	c.notifiedNoSession = true
	handler := c.onExpired
	c.teardownMu.Unlock()

	c.logger.Info("session expired", "method", method, "path", path)
	if handler != nil {
		handler(ExpiredEvent{Method: method, Path: path, At: c.now()})
	}
}

// sessionSeen re-arms the no-session notification once a credential is in use.
func (c *Client) sessionSeen() {
	c.teardownMu.Lock()
	c.notifiedNoSession = false
	c.teardownMu.Unlock()
}

func (c *Client) buildURL(path string, opts *RequestOptions) string {
	u := c.baseURL + path
	if opts == nil || len(opts.Query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + opts.Query.Encode()
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return data, nil
	}
}
