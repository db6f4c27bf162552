package interceptor

import (
	"context"
	"errors"
	"net/textproto"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-restclient/restclient"
)

// tracerName identifies this instrumentation scope.
const tracerName = "go-restclient"

// Tracing opens one client span per call and injects W3C trace context
// headers so the remote service can join the trace. The span ends when the
// call's outcome reaches the stage on the way out; failures record the error
// and its classified kind.
type Tracing struct {
	tracer     oteltrace.Tracer
	propagator propagation.TextMapPropagator
}

type tracingSpanKey struct{}

// NewTracing returns a tracing stage backed by tp. A nil tp uses the global
// tracer provider.
func NewTracing(tp oteltrace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer:     tp.Tracer(tracerName),
		propagator: propagation.TraceContext{},
	}
}

// Name implements restclient.Stage.
func (t *Tracing) Name() string { return "tracing" }

// HandleRequest implements restclient.RequestHandler.
func (t *Tracing) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	req := ex.Request()

	spanCtx, span := t.tracer.Start(ctx, "HTTP "+req.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL),
		),
	)
	t.propagator.Inject(spanCtx, headerCarrier(headers(req)))

	ex.Set(tracingSpanKey{}, span)
	return nil
}

// headerCarrier adapts the request's header map for trace-context injection,
// storing keys in canonical MIME form like the rest of the map.
type headerCarrier map[string]string

func (c headerCarrier) Get(key string) string {
	return c[textproto.CanonicalMIMEHeaderKey(key)]
}

func (c headerCarrier) Set(key, value string) {
	c[textproto.CanonicalMIMEHeaderKey(key)] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// HandleResponse implements restclient.ResponseHandler.
func (t *Tracing) HandleResponse(_ context.Context, ex *restclient.Exchange) error {
	span, ok := ex.Value(tracingSpanKey{}).(oteltrace.Span)
	if !ok {
		return nil
	}
	if resp := ex.Response(); resp != nil {
		span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	}
	span.End()
	ex.Set(tracingSpanKey{}, nil)
	return nil
}

// HandleError implements restclient.ErrorHandler.
func (t *Tracing) HandleError(_ context.Context, ex *restclient.Exchange) error {
	span, ok := ex.Value(tracingSpanKey{}).(oteltrace.Span)
	if !ok {
		return nil
	}

	err := ex.Err()
	span.RecordError(err)
	span.SetStatus(codes.Error, string(restclient.KindOf(err)))

	var restErr *restclient.Error
	if errors.As(err, &restErr) && restErr.StatusCode() != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(restErr.StatusCode()))
	}

	span.End()
	ex.Set(tracingSpanKey{}, nil)
	return nil
}
