package restclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"syscall"
	"time"
)

const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// HTTPTransport issues single deadline-bounded attempts over net/http.
type HTTPTransport struct {
	client *nethttp.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport with a tuned connection pool. The
// per-request deadline is enforced via context, not the http.Client timeout,
// so one transport can serve requests with different deadlines.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &nethttp.Client{
			Transport: &nethttp.Transport{
				Proxy:                 nethttp.ProxyFromEnvironment,
				MaxIdleConns:          defaultMaxIdleConns,
				MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
				IdleConnTimeout:       defaultIdleConnTimeout,
				TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// NewHTTPTransportWithClient wraps a caller-supplied http.Client. The
// client's own Timeout still applies if set; the request deadline is layered
// on top via context.
func NewHTTPTransportWithClient(client *nethttp.Client) *HTTPTransport {
	if client == nil {
		return NewHTTPTransport()
	}
	return &HTTPTransport{client: client}
}

// Issue performs exactly one network attempt, racing the request against the
// Request's deadline. Faults map onto the taxonomy: DNS/refused/reset is
// NoConnectivity, deadline expiry is Timeout, caller cancellation and
// anything else is Unknown.
func (t *HTTPTransport) Issue(ctx context.Context, req *Request) (*Response, error) {
	if req.Deadline <= 0 {
		return nil, fmt.Errorf("%w: request deadline must be positive", ErrContract)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, req.Deadline)
	defer cancel()

	httpReq, err := t.buildHTTPRequest(attemptCtx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportFault(err, req.Deadline)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportFault(err, req.Deadline)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// buildHTTPRequest constructs the per-attempt http.Request and applies
// headers and auth. Rebuilding per attempt keeps bodies re-sendable.
func (t *HTTPTransport) buildHTTPRequest(ctx context.Context, req *Request) (*nethttp.Request, error) {
	var body io.Reader = nethttp.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, NewUnknown("failed to build HTTP request", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// Default Content-Type when a body is present and none was set.
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.Auth != nil {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	return httpReq, nil
}

// classifyTransportFault maps a transport-level fault onto the taxonomy.
// Cancellation is checked before deadline expiry: a canceled parent context
// must never report as Timeout.
func classifyTransportFault(err error, deadline time.Duration) *Error {
	if errors.Is(err, context.Canceled) {
		return NewUnknown("request canceled", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout("request deadline elapsed", deadline)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeout("network timeout", deadline)
	}
	if isConnectivityFault(err) {
		return NewNoConnectivity("connection failed", err)
	}
	return NewUnknown("transport fault", err)
}

// isConnectivityFault reports whether err is a reachability failure: DNS
// resolution, refused or reset connections, or an unreachable host/network.
func isConnectivityFault(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
