// Package api is the single configured HTTP client for the Grovia backend.
// It owns bearer-token attachment and unauthorized handling; no other
// package touches the Authorization header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds ordinary CRUD calls.
	DefaultTimeout = 10 * time.Second

	// DetectTimeout bounds the detection upload. Inference can take far
	// longer than a CRUD round trip, so the uniform timeout does not apply.
	DetectTimeout = 60 * time.Second
)

// TokenSource supplies the current bearer token. An empty string means no
// session, and the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is the gateway to the backend REST API.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	timeout          time.Duration
	tokens           TokenSource
	onSessionInvalid func()
	logger           *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource injects the bearer-token supplier.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithSessionInvalidated registers the callback invoked when the backend
// answers 401. The data layer never navigates anywhere itself; the
// subscriber decides what an invalidated session means for the UI.
func WithSessionInvalidated(fn func()) Option {
	return func(c *Client) {
		c.onSessionInvalid = fn
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the given base URL. An optional transport config
// string (outline-sdk format) routes all traffic through a custom stream
// dialer; an empty string uses the default transport.
func New(baseURL, transportConfig string, opts ...Option) (*Client, error) {
	rt, err := newRoundTripper(transportConfig)
	if err != nil {
		return nil, fmt.Errorf("error building transport: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{Transport: rt},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CallOption adjusts a single request.
type CallOption func(*callConfig)

type callConfig struct {
	timeout  time.Duration
	progress func(ProgressEvent)
}

// WithCallTimeout overrides the client default timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) {
		cc.timeout = d
	}
}

// WithProgress registers an upload-progress callback for one call.
func WithProgress(fn func(ProgressEvent)) CallOption {
	return func(cc *callConfig) {
		cc.progress = fn
	}
}

// Response is a successful (non-4xx/5xx) HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON decodes the response body into dst.
func (r *Response) JSON(dst any) error {
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return fmt.Errorf("error decoding response body: %w", err)
	}
	return nil
}

// Get issues a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...CallOption) (*Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, "", nil, opts...)
}

// Post issues a POST request with a JSON body. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	reader, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, "application/json", reader, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	reader, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, c.baseURL+path, "application/json", reader, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, c.baseURL+path, "", nil, opts...)
}

// PostMultipart uploads content as a multipart form under the given field
// name. The multipart content type never displaces the bearer header: header
// merging is additive, so authenticated uploads stay authenticated.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, content io.Reader, opts ...CallOption) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("error building multipart form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("error buffering upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing multipart form: %w", err)
	}

	cc := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cc)
	}

	var body io.Reader = &buf
	if cc.progress != nil {
		body = newProgressReader(&buf, int64(buf.Len()), cc.progress)
	}

	return c.doConfigured(ctx, http.MethodPost, c.baseURL+path, writer.FormDataContentType(), body, cc)
}

func (c *Client) do(ctx context.Context, method, target, contentType string, body io.Reader, opts ...CallOption) (*Response, error) {
	cc := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cc)
	}
	return c.doConfigured(ctx, method, target, contentType, body, cc)
}

func (c *Client) doConfigured(ctx context.Context, method, target, contentType string, body io.Reader, cc callConfig) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// Authorization is set last so no caller-supplied content type can
	// clobber it.
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", target, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.onSessionInvalid != nil {
		c.onSessionInvalid()
	}

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.logger.Debug("request rejected",
			"method", method,
			"url", target,
			"status", resp.StatusCode,
			"detail", apiErr.Detail)
		return nil, apiErr
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func jsonBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error encoding request body: %w", err)
	}
	return bytes.NewReader(encoded), nil
}
