// Package outbound provides the shared HTTP client used by every
// background worker that calls an external collaborator (the render
// service, the social endpoint): a bounded retry wrapped in a circuit
// breaker so a down collaborator fails fast instead of hanging a worker
// loop.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"fleetd/internal/ferrors"
)

// Client wraps http.Client with retry + circuit breaking per external
// collaborator name.
type Client struct {
	http     *http.Client
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a client with a 15s per-request deadline, matching §5's
// "explicit deadlines" requirement for outbound calls.
func New() *Client {
	return &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
}

func (c *Client) breakerFor(name string) *gobreaker.CircuitBreaker {
	if b, ok := c.breakers[name]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	c.breakers[name] = b
	return b
}

// PostJSON posts body as JSON to url under collaborator name, retrying
// transient failures with bounded exponential backoff inside the
// breaker. Returns the decoded JSON response body.
func (c *Client) PostJSON(ctx context.Context, name, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return ferrors.Wrap(ferrors.Internal, err, "encode outbound request body")
	}

	breaker := c.breakerFor(name)
	result, err := breaker.Execute(func() (any, error) {
		var respBody []byte
		retryErr := backoff.Retry(func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if reqErr != nil {
				return backoff.Permanent(reqErr)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, doErr := c.http.Do(req)
			if doErr != nil {
				return doErr
			}
			defer resp.Body.Close()

			data, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}
			if resp.StatusCode >= 500 {
				return errStatus(resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return backoff.Permanent(errStatus(resp.StatusCode))
			}
			respBody = data
			return nil
		}, backoffPolicy(ctx))
		return respBody, retryErr
	})
	if err != nil {
		return ferrors.Wrap(ferrors.TransportError, err, "call to %s failed", name)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result.([]byte), out)
}

func backoffPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 8 * time.Second
	return backoff.WithContext(b, ctx)
}

type statusError struct{ code int }

func errStatus(code int) error { return &statusError{code: code} }
func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
