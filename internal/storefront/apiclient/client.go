// Package apiclient talks to the storefront REST API on behalf of the shopper
// client. Error envelopes are decoded back into *pkgerrors.Error so callers
// can branch on codes such as CodeUnauthorized.
package apiclient

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
	"sync"
	"time"

	pkgerrors "github.com/liminara/storefront/pkg/errors"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/types"
)

const (
	defaultTimeout       = 15 * time.Second
	errorBodyReadLimit   = 64 * 1024
	successBodyReadLimit = 4 * 1024 * 1024
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	requestIDHeader      = "X-Request-Id"
)

var errBaseURLRequired = errors.New("api base url is required")

// Client is safe for concurrent use. The bearer token is swapped by the
// session as the shopper signs in and out.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logg       *logger.Logger

	mu    sync.RWMutex
	token string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithLogger attaches a logger for request failures.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithToken seeds the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New builds a client rooted at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    parsed,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SetToken replaces the bearer token. An empty token makes requests anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a bearer token is set.
func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

type requestOptions struct {
	query          url.Values
	body           any
	idempotencyKey string
	auth           bool
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// response is what do hands back for a 2xx.
type response struct {
	status   int
	replayed bool
}

// do sends the request and decodes the data envelope into out when out is
// non-nil and the response carries a body.
func (c *Client) do(ctx context.Context, method, path string, opts requestOptions, out any) (response, error) {
	endpoint := c.baseURL.JoinPath(path)
	if len(opts.query) > 0 {
		endpoint.RawQuery = opts.query.Encode()
	}

	var body io.Reader
	if opts.body != nil {
		buf, err := json.Marshal(opts.body)
		if err != nil {
			return response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, opts.idempotencyKey)
	}
	if opts.auth {
		token := c.Token()
		if token == "" {
			return response{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		}), "apiclient.request.failed")
		return response{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response{}, decodeError(resp)
	}

	result := response{status: resp.StatusCode, replayed: resp.Header.Get(replayedHeader) == "true"}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyReadLimit))
		return result, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, successBodyReadLimit)).Decode(out); err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s %s response", method, path))
	}
	return result, nil
}

// decodeError maps an error envelope back into a typed error. Responses
// without an envelope fall back to the status code.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var payload types.ErrorEnvelope
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Code != "" {
		typed := pkgerrors.New(pkgerrors.Code(payload.Error.Code), payload.Error.Message)
		if payload.Error.Details != nil {
			typed = typed.WithDetails(payload.Error.Details)
		}
		return typed
	}

	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if requestID := resp.Header.Get(requestIDHeader); requestID != "" {
		message = fmt.Sprintf("%s (request %s)", message, requestID)
	}
	return pkgerrors.New(pkgerrors.CodeForStatus(resp.StatusCode), message)
}
