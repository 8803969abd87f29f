// FILE: synctrack/src/internal/syncclient/transport.go
package syncclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"synctrack/src/internal/version"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// TransportOptions configures the HTTP transport to the sync backend
type TransportOptions struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side rate limiting
	Burst             int
	TLSConfig         *tls.Config

	// Dial overrides connection setup (tests use in-memory listeners)
	Dial fasthttp.DialFunc
}

// Transport issues authenticated requests to the sync backend
type Transport struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
	limiter *rate.Limiter
}

// NewTransport creates a backend transport
func NewTransport(opts TransportOptions) (*Transport, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("transport base URL cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	t := &Transport{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:               10,
			MaxIdleConnDuration:           10 * time.Second,
			ReadTimeout:                   opts.Timeout,
			WriteTimeout:                  opts.Timeout,
			DisableHeaderNamesNormalizing: true,
			TLSConfig:                     opts.TLSConfig,
			Dial:                          opts.Dial,
		},
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return t, nil
}

// BaseURL returns the backend base URL
func (t *Transport) BaseURL() string {
	return t.baseURL
}

type exchange struct {
	status int
	body   []byte
	err    error
}

// Do sends one request and returns the response body of a 2xx reply.
// Non-2xx replies are returned as *StatusError.
func (t *Transport) Do(ctx context.Context, method, path, token, contentType string, body []byte) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(t.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.SetContentType(contentType)
		req.SetBody(body)
	}

	// DoTimeout does not observe ctx. The goroutine owns req and resp until it finishes.
	done := make(chan exchange, 1)
	go func() {
		err := t.client.DoTimeout(req, resp, timeout)

		// Capture response before releasing
		result := exchange{status: resp.StatusCode(), err: err}
		if len(resp.Body()) > 0 {
			result.body = make([]byte, len(resp.Body()))
			copy(result.body, resp.Body())
		}

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		done <- result
	}()

	var result exchange
	select {
	case result = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s %s: request abandoned: %w", method, path, ctx.Err())
	}
	if result.err != nil {
		return nil, fmt.Errorf("%s %s: request failed: %w", method, path, result.err)
	}
	statusCode, responseBody := result.status, result.body

	if statusCode < 200 || statusCode >= 300 {
		msg := string(responseBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Code: statusCode, Body: msg}
	}

	return responseBody, nil
}

// DoJSON encodes in (if non-nil) and decodes the reply into out (if non-nil)
func (t *Transport) DoJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	respBody, err := t.Do(ctx, method, path, token, "application/json", body)
	if err != nil {
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
