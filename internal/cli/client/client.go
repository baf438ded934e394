package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Credentials supplies the bearer token for outgoing calls and drops it
// when the backend rejects it.
type Credentials interface {
	Credential() string
	ClearCredential() error
}

// InvalidationEvent describes the authenticated call that ended the session
type InvalidationEvent struct {
	Method    string
	Path      string
	Status    int
	RequestID string
	At        time.Time
}

// Client represents an HTTP client for the marketplace API
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger

	mu          sync.RWMutex
	credentials Credentials
	listeners   map[int]func(InvalidationEvent)
	nextID      int
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds every request. Zero means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a new API client for baseURL (e.g. http://127.0.0.1:8000/api)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		listeners:  make(map[int]func(InvalidationEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the fixed base address of the client
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetCredentials wires the credential source. It is set after construction
// because the session manager that owns the credential also needs the client.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = creds
}

// OnSessionInvalidated registers fn to run synchronously whenever an
// authenticated call is answered with 401. The returned func unregisters it.
func (c *Client) OnSessionInvalidated(fn func(InvalidationEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// requestOptions are per-call settings
type requestOptions struct {
	query     url.Values
	anonymous bool
	bearer    string
}

// RequestOption customises a single call
type RequestOption func(*requestOptions)

// WithQuery adds query parameters
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithoutCredentials sends the call without a bearer token. Such calls are
// not authenticated calls, so a 401 on them does not end the session.
func WithoutCredentials() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}

// WithBearer sends token instead of the current credential
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
	}
}

// Request issues method path against the base URL. body, when non-nil, is
// sent as JSON; a 2xx response body is decoded into out (when non-nil).
// Non-2xx responses return *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(o.query) > 0 {
		target += "?" + o.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := o.bearer
	if token == "" && !o.anonymous {
		token = c.credential()
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := newAPIError(resp.StatusCode, data)

		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.invalidate(InvalidationEvent{
				Method:    method,
				Path:      path,
				Status:    resp.StatusCode,
				RequestID: requestID,
				At:        time.Now(),
			})
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.credentials == nil {
		return ""
	}
	return c.credentials.Credential()
}

// invalidate clears the durable credential and notifies listeners before the
// failing call returns to its caller.
func (c *Client) invalidate(ev InvalidationEvent) {
	c.mu.RLock()
	creds := c.credentials
	listeners := make([]func(InvalidationEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	c.logger.Warn().
		Str("request_id", ev.RequestID).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Msg("session rejected by server, clearing credential")

	if creds != nil {
		if err := creds.ClearCredential(); err != nil {
			c.logger.Error().Err(err).Msg("failed to clear credential")
		}
	}

	for _, fn := range listeners {
		fn(ev)
	}
}
