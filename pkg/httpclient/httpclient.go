// Package httpclient defines the minimal outbound HTTP abstraction a saga
// coordinator dispatches through, and a net/http-backed implementation
// guarded by a per-host circuit breaker.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/qboxio/qbox/pkg/logger"
	"github.com/qboxio/qbox/pkg/reqtree"
)

// TimeoutError indicates the request/response cycle exceeded its deadline.
var TimeoutError = errors.New("httpclient: timeout")

// TransportError wraps a non-timeout failure to reach or read from the peer
// (DNS failure, connection refused, reset, etc).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("httpclient: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Request is one outbound call.
type Request struct {
	Method  string
	URL     string
	Headers reqtree.Headers
	Body    []byte
	Timeout time.Duration
}

// Response is the result of a successful round trip.
type Response struct {
	Status  int
	Headers reqtree.Headers
	Body    []byte
}

// Client performs one outbound HTTP request. Implementations must be safe
// for concurrent use across sagas.
type Client interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// CircuitBreakerConfig configures the per-host breaker wrapping outbound
// dispatch. A host is tripped after MinRequests observations cross
// FailureThreshold, and stays open for Timeout before probing again.
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig mirrors conservative defaults: trip once 60%
// of at least 5 requests to a host fail, stay open 30s before probing.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// HTTPClient is the net/http-backed Client, with a circuit breaker per
// destination host so a failing downstream doesn't get hammered by every
// saga still trying to reach it.
type HTTPClient struct {
	transport *http.Client
	cbConfig  CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates an HTTPClient with the given circuit breaker configuration.
func New(cbConfig CircuitBreakerConfig) *HTTPClient {
	return &HTTPClient{
		transport: &http.Client{},
		cbConfig:  cbConfig,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *HTTPClient) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	cfg := c.cbConfig
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "host", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[host] = cb
	return cb
}

// Do performs req, applying req.Timeout as a hard cap on the whole
// request/response cycle. A timeout is reported as TimeoutError; any other
// failure to complete the round trip is wrapped in TransportError.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	cb := c.breakerFor(parsed.Host)

	result, err := cb.Execute(func() (any, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, TimeoutError) {
			return nil, TimeoutError
		}
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		// Breaker-originated rejection (open/too-many-requests): treat as
		// a transport failure, same as any other unreachable peer.
		return nil, &TransportError{Err: err}
	}
	return result.(*Response), nil
}

func (c *HTTPClient) do(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Headers.Range(func(key, value string) {
		httpReq.Header.Set(key, value)
	})

	resp, err := c.transport.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, TimeoutError
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, TimeoutError
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	respHeaders := reqtree.Headers{}
	for k := range resp.Header {
		respHeaders.Set(k, resp.Header.Get(k))
	}

	return &Response{Status: resp.StatusCode, Headers: respHeaders, Body: body}, nil
}
