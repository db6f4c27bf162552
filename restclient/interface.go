package restclient

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/textproto"
	"time"
)

// Client defines the verb-level REST operations exposed to callers.
// Expected failures are returned as *Error values; nothing is thrown past
// this boundary except construction-time contract violations.
type Client interface {
	Fetch(ctx context.Context, path string, out any, opts ...RequestOption) (*Result, error)
	Create(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Result, error)
	Update(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Result, error)
	Delete(ctx context.Context, path string, opts ...RequestOption) (*Result, error)
	Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) (*Result, error)
}

// Request is one outbound HTTP request. It is immutable once handed to the
// Transport; the per-attempt http.Request is rebuilt from it on every attempt.
//
// Headers keys are kept in canonical MIME form (textproto); the client and
// its options canonicalize on write, so differently-cased writes to the same
// header collapse to one entry with last write winning.
type Request struct {
	Method   string
	URL      string // full URL assembled from the service base URL and Path
	Path     string // original path, kept for logging, metrics and cache keys
	Headers  map[string]string
	Body     []byte
	Deadline time.Duration // strictly positive, fixed at creation
	Auth     *BasicAuth
}

// Response is the raw outcome of a single attempt: status, headers and body.
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
}

// Stats contains execution statistics for one logical operation.
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	CallCount   int64
}

// Result is the successful outcome of an operation. The decoded payload, if a
// destination was supplied, has already been written to it; Raw keeps the
// undecoded body for callers that defer decoding.
type Result struct {
	StatusCode int
	Headers    nethttp.Header
	Raw        []byte
	Stats      Stats
}

// Decode unmarshals the raw body into out. A body that fails to decode
// returns a MalformedResponse error, matching the classifier's behavior.
func (r *Result) Decode(out any) error {
	if err := json.Unmarshal(r.Raw, out); err != nil {
		return NewMalformedResponse(err)
	}
	return nil
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Transport issues exactly one network attempt per call, bounded by the
// Request's deadline. Retries are layered above by the retry policy.
type Transport interface {
	Issue(ctx context.Context, req *Request) (*Response, error)
}

// Classifier maps a raw response to a decoded payload (written into out,
// returning nil) or to a classified *Error.
type Classifier func(resp *Response, out any) error

// RequestOption customizes a single request before it is issued.
type RequestOption func(*Request)

// WithHeader sets one header on the request, overriding any default. The key
// is canonicalized, so the override applies regardless of casing.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.Headers[textproto.CanonicalMIMEHeaderKey(key)] = value
	}
}

// WithHeaders sets multiple headers on the request, overriding defaults.
// Keys are canonicalized.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range headers {
			r.Headers[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
	}
}

// WithDeadline overrides the service-level deadline for this request.
func WithDeadline(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Deadline = d
	}
}

// WithRequestAuth overrides the service-level basic auth for this request.
func WithRequestAuth(username, password string) RequestOption {
	return func(r *Request) {
		r.Auth = &BasicAuth{Username: username, Password: password}
	}
}
