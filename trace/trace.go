// Package trace carries request correlation identifiers through context and
// generates W3C Trace Context header values for outbound propagation.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"
	traceStateKey  contextKey = "tracestate"

	// HeaderXRequestID is the standard header name for request correlation,
	// in canonical MIME form to match Request.Headers keys.
	HeaderXRequestID = "X-Request-Id"
	// HeaderTraceParent is the W3C trace context header name. Header names
	// are case-insensitive on the wire; the canonical MIME form is used so
	// map lookups against Request.Headers are deterministic.
	HeaderTraceParent = "Traceparent"
	// HeaderTraceState is the W3C trace context "tracestate" header name.
	HeaderTraceState = "Tracestate"
)

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID from context if present.
func RequestID(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the request ID from context, generating a fresh
// UUID when none is present.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestID(ctx); ok {
		return id
	}
	return uuid.New().String()
}

// WithTraceParent returns a context carrying a W3C traceparent value.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// TraceParent returns the traceparent from context if present.
func TraceParent(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// WithTraceState returns a context carrying a W3C tracestate value.
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// TraceState returns the tracestate from context if present.
func TraceState(ctx context.Context) (string, bool) {
	if ts, ok := ctx.Value(traceStateKey).(string); ok && ts != "" {
		return ts, true
	}
	return "", false
}

// NewTraceParent creates a minimal W3C traceparent header value.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g. "00-<32>-<16>-01".
// The trace and span IDs are random and never all-zero per the W3C spec.
func NewTraceParent() string {
	traceID := randomNonZero(16)
	spanID := randomNonZero(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

func randomNonZero(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		// RNG failure: fall through to the all-zero guard below.
		for i := range b {
			b[i] = 0
		}
	}
	if allZero(b) {
		b[n-1] = 0x01
	}
	return b
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
