package interceptor

import (
	"context"
	"fmt"
	"net/textproto"

	"github.com/gaborage/go-restclient/restclient"
)

// headers returns the request's header map, allocating it when a hand-built
// request carries none. Keys are rewritten to canonical MIME form so stage
// presence checks work regardless of the casing the caller used; when a
// canonical entry already exists it wins over a non-canonical duplicate.
func headers(req *restclient.Request) map[string]string {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
		return req.Headers
	}
	for k, v := range req.Headers {
		ck := textproto.CanonicalMIMEHeaderKey(k)
		if ck == k {
			continue
		}
		if _, ok := req.Headers[ck]; !ok {
			req.Headers[ck] = v
		}
		delete(req.Headers, k)
	}
	return req.Headers
}

// HeaderProvider supplies per-call headers, letting callers derive them from
// the context (tenant, locale, signing material). Implementations must be
// safe for concurrent use.
type HeaderProvider func(ctx context.Context) (map[string]string, error)

// HeaderStage injects default headers into every outbound request. Headers
// already present on the request are left untouched, so per-request options
// and earlier stages win.
type HeaderStage struct {
	static   map[string]string
	provider HeaderProvider
}

// NewHeaderStage returns a stage injecting a fixed header set.
func NewHeaderStage(static map[string]string) *HeaderStage {
	return &HeaderStage{static: static}
}

// NewDynamicHeaderStage returns a stage that asks provider for headers on
// every call.
func NewDynamicHeaderStage(provider HeaderProvider) *HeaderStage {
	return &HeaderStage{provider: provider}
}

// Name implements restclient.Stage.
func (h *HeaderStage) Name() string { return "headers" }

// HandleRequest implements restclient.RequestHandler.
func (h *HeaderStage) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	dst := headers(ex.Request())

	for k, v := range h.static {
		k = textproto.CanonicalMIMEHeaderKey(k)
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}

	if h.provider == nil {
		return nil
	}
	dynamic, err := h.provider(ctx)
	if err != nil {
		return fmt.Errorf("header provider: %w", err)
	}
	for k, v := range dynamic {
		k = textproto.CanonicalMIMEHeaderKey(k)
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return nil
}
