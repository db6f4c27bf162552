package interceptor

import (
	"context"

	"github.com/gaborage/go-restclient/restclient"
	"github.com/gaborage/go-restclient/trace"
)

// RequestID stamps outbound requests with an X-Request-ID header, reusing
// the identifier already carried by the context or minting a fresh UUID.
// The zero value is ready to use.
type RequestID struct {
	// TraceContext additionally propagates W3C traceparent and tracestate
	// headers, generating a new traceparent when the context carries none.
	TraceContext bool
}

// Name implements restclient.Stage.
func (r *RequestID) Name() string { return "requestid" }

// HandleRequest implements restclient.RequestHandler.
func (r *RequestID) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	dst := headers(ex.Request())

	if _, ok := dst[trace.HeaderXRequestID]; !ok {
		dst[trace.HeaderXRequestID] = trace.EnsureRequestID(ctx)
	}

	if !r.TraceContext {
		return nil
	}
	if _, ok := dst[trace.HeaderTraceParent]; !ok {
		tp, ok := trace.TraceParent(ctx)
		if !ok {
			tp = trace.NewTraceParent()
		}
		dst[trace.HeaderTraceParent] = tp
	}
	if ts, ok := trace.TraceState(ctx); ok {
		if _, present := dst[trace.HeaderTraceState]; !present {
			dst[trace.HeaderTraceState] = ts
		}
	}
	return nil
}
