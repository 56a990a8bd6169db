// Package seatclient talks to a board server as a seated player: fasthttp
// for login and log download, a websocket connection for play.
package seatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/pkg/boarddto"
)

var ErrLoginRejected = errors.New("login rejected")

// APIError is a non-2xx answer. Domain is set when the body was a
// DomainError.
type APIError struct {
	Status int
	Body   string
	Domain *boarddto.DomainError
}

func (e *APIError) Error() string {
	if e.Domain != nil {
		return fmt.Sprintf("board api error: status=%d code=%s message=%s", e.Status, e.Domain.Code, e.Domain.Message)
	}
	return fmt.Sprintf("board api error: status=%d body=%s", e.Status, truncate(e.Body, 512))
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(attempts int) Option {
	return func(c *Client) { c.retryMax = attempts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health reports whether the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, fasthttp.MethodGet, "/health", "", nil, nil, true)
}

// Login exchanges a seat password for a token. A wrong password yields
// ErrLoginRejected wrapped with the server's message.
func (c *Client) Login(ctx context.Context, password string) (*boarddto.LoginResponse, error) {
	var resp boarddto.LoginResponse
	err := c.do(ctx, fasthttp.MethodPost, "/api/login", "", boarddto.LoginRequest{Password: password}, &resp, false)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusUnauthorized {
		_ = json.Unmarshal([]byte(apiErr.Body), &resp)
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, resp.Message)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DownloadLog(ctx context.Context, token string) (*gamelog.Document, error) {
	var doc gamelog.Document
	if err := c.do(ctx, fasthttp.MethodGet, "/api/log", token, nil, &doc, true); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = newAPIError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: string(body)}
	var de boarddto.DomainError
	if json.Unmarshal(body, &de) == nil && de.Code != "" {
		e.Domain = &de
	}
	return e
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
