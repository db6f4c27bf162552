package interceptor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-restclient/restclient"
	"github.com/gaborage/go-restclient/trace"
)

func newTracingChain(t *testing.T) (*restclient.Chain, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return restclient.NewChain(NewTracing(tp)), sr
}

func findAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingRecordsClientSpan(t *testing.T) {
	chain, sr := newTracingChain(t)

	_, err := chain.Execute(context.Background(), newTestRequest("GET"), okInvoker(200, []byte(testBody)))
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "HTTP GET", span.Name())
	assert.Equal(t, oteltrace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	method, ok := findAttr(span.Attributes(), "http.request.method")
	require.True(t, ok)
	assert.Equal(t, "GET", method.AsString())

	url, ok := findAttr(span.Attributes(), "url.full")
	require.True(t, ok)
	assert.Equal(t, testURL, url.AsString())

	status, ok := findAttr(span.Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), status.AsInt64())
}

func TestTracingInjectsTraceParent(t *testing.T) {
	chain, sr := newTracingChain(t)
	req := newTestRequest("GET")

	_, err := chain.Execute(context.Background(), req, okInvoker(200, nil))
	require.NoError(t, err)

	header := req.Headers[trace.HeaderTraceParent]
	require.NotEmpty(t, header, "traceparent header should be injected")

	spans := sr.Ended()
	require.Len(t, spans, 1)
	traceID := spans[0].SpanContext().TraceID().String()
	assert.True(t, strings.Contains(header, traceID),
		"traceparent %q should carry the span's trace ID %q", header, traceID)
}

func TestTracingRecordsFailure(t *testing.T) {
	chain, sr := newTracingChain(t)

	_, err := chain.Execute(context.Background(), newTestRequest("GET"),
		errInvoker(restclient.NewServerError(500, nil)))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "server_error", span.Status().Description)

	status, ok := findAttr(span.Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(500), status.AsInt64())

	var hasException bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			hasException = true
		}
	}
	assert.True(t, hasException, "failure should record an exception event")
}

func TestTracingParentSpanLinkage(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	chain := restclient.NewChain(NewTracing(tp))
	ctx, parent := tp.Tracer("test").Start(context.Background(), "operation")

	_, err := chain.Execute(ctx, newTestRequest("GET"), okInvoker(200, nil))
	require.NoError(t, err)
	parent.End()

	var client sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.SpanKind() == oteltrace.SpanKindClient {
			client = s
		}
	}
	require.NotNil(t, client)
	assert.Equal(t, parent.SpanContext().TraceID(), client.SpanContext().TraceID(),
		"client span should join the caller's trace")
	assert.Equal(t, parent.SpanContext().SpanID(), client.Parent().SpanID())
}

func TestTracingNilProviderIsSafe(t *testing.T) {
	chain := restclient.NewChain(NewTracing(nil))
	req := newTestRequest("GET")

	resp, err := chain.Execute(context.Background(), req, okInvoker(200, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
