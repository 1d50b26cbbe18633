// Package transport is the HTTP side of the search orchestrator: a small
// Doer capability and its net/http implementation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"eosearch/internal/errdefs"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 60 * time.Second

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Check returns a TransportError for non-2xx responses.
func (r *Response) Check(op, url string) error {
	if r.OK() {
		return nil
	}
	msg := bytes.TrimSpace(r.Body)
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return &errdefs.TransportError{Op: op, URL: url, StatusCode: r.StatusCode, Err: fmt.Errorf("%s", msg)}
}

// Doer performs requests. Non-2xx responses are returned, not reported as
// errors; only network level failures are.
type Doer interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
	// Post sends body encoded as JSON.
	Post(ctx context.Context, url string, body any, headers map[string]string) (*Response, error)
}

// Options configure a Client.
type Options struct {
	Timeout time.Duration
	// RPS throttles requests; zero disables throttling.
	RPS   float64
	Burst int
	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// Client is the net/http Doer.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

var _ Doer = (*Client)(nil)

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{http: opts.HTTPClient}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body any, headers map[string]string) (*Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &errdefs.TransportError{Op: http.MethodPost, URL: url, Err: fmt.Errorf("encode body: %w", err)}
	}
	return c.do(ctx, http.MethodPost, url, raw, headers)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, headers map[string]string) (resp *Response, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &errdefs.TransportError{Op: method, URL: url, Err: err}
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &errdefs.TransportError{Op: method, URL: url, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	hr, err := c.http.Do(req)
	if err != nil {
		return nil, &errdefs.TransportError{Op: method, URL: url, Err: err}
	}
	defer func() {
		if cerr := hr.Body.Close(); cerr != nil && err == nil {
			err = errors.Join(err, cerr)
		}
	}()
	data, err := io.ReadAll(hr.Body)
	if err != nil {
		return nil, &errdefs.TransportError{Op: method, URL: url, StatusCode: hr.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{StatusCode: hr.StatusCode, Header: hr.Header, Body: data}, nil
}
