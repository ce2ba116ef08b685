// Package client talks to the lifelessons REST API on behalf of a signed-in
// user. Requests are never retried; failures come back as *apperr.Error.
package client

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

	"lifelessons/backend/apperr"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrCancelled is returned when the Confirm callback declines a
	// destructive action. No request is sent.
	ErrCancelled = errors.New("action cancelled")

	// ErrInFlight is returned when the same row already has an action
	// running through this client.
	ErrInFlight = apperr.Conflict("in_flight", "another action on this item is still running")
)

// Confirm asks the user to approve a destructive action. A nil Confirm
// counts as declined.
type Confirm func(prompt string) bool

func Always(string) bool { return true }

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Option func(*options)

type options struct {
	base *http.Client
	log  *zap.Logger
}

// WithHTTPClient sets the client that carries requests underneath the
// bearer transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.base = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// New builds a client for the API rooted at baseURL. Every request carries
// the access token from ts as a bearer credential.
func New(ctx context.Context, baseURL string, ts oauth2.TokenSource, opts ...Option) *Client {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     oauth2.NewClient(ctx, ts),
		log:      o.log,
		inflight: make(map[string]struct{}),
	}
}

// StaticToken is a TokenSource for a token obtained from /api/auth/login.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// acquire marks key busy until the returned release is called.
func (c *Client) acquire(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return nil, ErrInFlight
	}
	c.inflight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

func confirmed(confirm Confirm, prompt string) bool {
	return confirm != nil && confirm(prompt)
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return apperr.Internal(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", eb.Code))
		return apperr.FromStatus(resp.StatusCode, eb.Code, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Network(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	return nil
}
