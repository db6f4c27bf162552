package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	nethttp "net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-restclient/internal/validation"
	"github.com/gaborage/go-restclient/logger"
)

// DefaultDeadline bounds each attempt when the builder sets no other value.
const DefaultDeadline = 30 * time.Second

var allowedMethods = map[string]struct{}{
	nethttp.MethodGet:     {},
	nethttp.MethodHead:    {},
	nethttp.MethodPost:    {},
	nethttp.MethodPut:     {},
	nethttp.MethodPatch:   {},
	nethttp.MethodDelete:  {},
	nethttp.MethodOptions: {},
}

// client implements the Client interface.
type client struct {
	baseURL        string
	defaultHeaders map[string]string
	auth           *BasicAuth
	deadline       time.Duration
	retry          RetryPolicy
	classifier     Classifier
	transport      Transport
	chain          *Chain
	log            logger.Logger
	callCount      atomic.Int64
}

// New creates a client for baseURL with default settings: a 30 second
// deadline, a single attempt, exact status classification and an empty
// interceptor chain.
func New(baseURL string) (Client, error) {
	return NewBuilder(baseURL).Build()
}

// Builder provides a fluent interface for configuring a client. Builders
// are not safe for concurrent use; the clients they build are.
type Builder struct {
	baseURL        string
	defaultHeaders map[string]string
	auth           *BasicAuth
	deadline       time.Duration
	retry          RetryPolicy
	classifier     Classifier
	transport      Transport
	stages         []Stage
	log            logger.Logger
}

// NewBuilder creates a builder for a client rooted at baseURL.
func NewBuilder(baseURL string) *Builder {
	return &Builder{
		baseURL:        baseURL,
		defaultHeaders: make(map[string]string),
		deadline:       DefaultDeadline,
		retry:          DefaultRetryPolicy(),
	}
}

// WithDeadline sets the per-attempt deadline applied to every request.
func (b *Builder) WithDeadline(d time.Duration) *Builder {
	b.deadline = d
	return b
}

// WithRetry sets the retry policy applied to every request.
func (b *Builder) WithRetry(policy RetryPolicy) *Builder {
	b.retry = policy
	return b
}

// WithClassifier replaces the default exact-status classifier.
func (b *Builder) WithClassifier(fn Classifier) *Builder {
	b.classifier = fn
	return b
}

// WithTransport replaces the default pooled HTTP transport.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithBasicAuth sets basic authentication credentials sent with all requests.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.auth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests.
// The key is stored in canonical MIME form.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.defaultHeaders[textproto.CanonicalMIMEHeaderKey(key)] = value
	return b
}

// WithDefaultHeaders adds multiple default headers sent with all requests.
// Keys are stored in canonical MIME form.
func (b *Builder) WithDefaultHeaders(headers map[string]string) *Builder {
	for k, v := range headers {
		b.defaultHeaders[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	return b
}

// WithStages appends interceptor stages to the chain, in execution order.
func (b *Builder) WithStages(stages ...Stage) *Builder {
	b.stages = append(b.stages, stages...)
	return b
}

// WithLogger sets the logger used for request and response logging. Without
// one the client stays silent.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration and creates the client. Configuration
// bugs are reported as errors wrapping ErrContract.
func (b *Builder) Build() (Client, error) {
	base := strings.TrimSpace(b.baseURL)
	if base == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrContract)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %q: %v", ErrContract, base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL scheme must be http or https, got %q", ErrContract, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: base URL host is required", ErrContract)
	}
	if b.deadline <= 0 {
		return nil, fmt.Errorf("%w: deadline must be positive, got %v", ErrContract, b.deadline)
	}
	if err := validation.Struct(b.retry); err != nil {
		return nil, fmt.Errorf("%w: invalid retry policy: %v", ErrContract, err)
	}

	transport := b.transport
	if transport == nil {
		transport = NewHTTPTransport()
	}
	classifier := b.classifier
	if classifier == nil {
		classifier = ClassifyStatus
	}
	log := b.log
	if log == nil {
		log = logger.NewNop()
	}

	return &client{
		baseURL:        strings.TrimSuffix(base, "/"),
		defaultHeaders: maps.Clone(b.defaultHeaders),
		auth:           b.auth,
		deadline:       b.deadline,
		retry:          b.retry,
		classifier:     classifier,
		transport:      transport,
		chain:          NewChain(b.stages...),
		log:            log,
	}, nil
}

// MustBuild is like Build but panics on configuration errors. Intended for
// package-level construction where the configuration is static.
func (b *Builder) MustBuild() Client {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// Fetch performs a GET request and decodes the response body into out.
func (c *client) Fetch(ctx context.Context, path string, out any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, nethttp.MethodGet, path, nil, out, opts...)
}

// Create performs a POST request with body and decodes the response into out.
func (c *client) Create(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, nethttp.MethodPost, path, body, out, opts...)
}

// Update performs a PUT request with body and decodes the response into out.
func (c *client) Update(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, nethttp.MethodPut, path, body, out, opts...)
}

// Delete performs a DELETE request.
func (c *client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, nethttp.MethodDelete, path, nil, nil, opts...)
}

// Do performs a request with the given method. The request runs through the
// interceptor chain, the transport attempt is retried per the retry policy,
// and the response is classified before out is populated.
func (c *client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) (*Result, error) {
	req, err := c.newRequest(method, path, body, opts)
	if err != nil {
		return nil, err
	}

	count := c.callCount.Add(1)
	start := time.Now()
	attempts := 0

	// classified tracks the response the classifier decoded, so a response a
	// stage produced or swapped in is recognized below and classified too.
	var classified *Response

	invoke := func(ctx context.Context, req *Request) (*Response, error) {
		return WithRetry(ctx, c.retry, func(ctx context.Context) (*Response, error) {
			attempts++
			c.logRequest(req, attempts)
			resp, err := c.transport.Issue(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := c.classifier(resp, out); err != nil {
				return nil, err
			}
			classified = resp
			return resp, nil
		})
	}

	resp, err := c.chain.Execute(ctx, req, invoke)
	if err == nil && resp == nil {
		err = NewUnknown("chain produced no response", nil)
	}
	if err == nil && resp != classified {
		// The response came from a stage, not the transport; classify and
		// decode it the same way a transport response would be.
		err = c.classifier(resp, out)
	}

	elapsed := time.Since(start)
	if err != nil {
		c.logFailure(req, err, elapsed, attempts)
		return nil, err
	}
	c.logResponse(req, resp, elapsed, attempts, count)

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Raw:        resp.Body,
		Stats: Stats{
			ElapsedTime: elapsed,
			Attempts:    attempts,
			CallCount:   count,
		},
	}, nil
}

// newRequest assembles the Request for one operation: method and path are
// validated, the body is encoded, default headers and auth are applied, and
// per-request options run last.
func (c *client) newRequest(method, path string, body any, opts []RequestOption) (*Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if _, ok := allowedMethods[method]; !ok {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrContract, method)
	}

	full := joinURL(c.baseURL, path)
	if _, err := url.Parse(full); err != nil {
		return nil, fmt.Errorf("%w: invalid path %q: %v", ErrContract, path, err)
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request body: %v", ErrContract, err)
	}

	req := &Request{
		Method:   method,
		URL:      full,
		Path:     path,
		Headers:  maps.Clone(c.defaultHeaders),
		Body:     payload,
		Deadline: c.deadline,
		Auth:     c.auth,
	}
	for _, opt := range opts {
		opt(req)
	}
	if req.Deadline <= 0 {
		return nil, fmt.Errorf("%w: request deadline must be positive, got %v", ErrContract, req.Deadline)
	}
	return req, nil
}

// encodeBody turns the caller's body into wire bytes. Byte slices, strings
// and raw JSON pass through untouched; anything else is JSON-encoded.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(body)
	}
}

// joinURL glues path onto base with exactly one slash between them. The
// path may carry a query string.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
