package interceptor

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gaborage/go-restclient/restclient"
)

// Metrics records Prometheus counters and latency histograms for every call
// passing through the chain. Labels stay low-cardinality: method plus status
// code on success, method plus failure kind on error.
//
// Create one Metrics stage per registry and share it across clients;
// registering the same collectors twice panics, per Prometheus rules.
type Metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

type metricsStartKey struct{}

// NewMetrics returns a metrics stage registered on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restclient",
				Name:      "requests_total",
				Help:      "Completed requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "restclient",
				Name:      "failures_total",
				Help:      "Failed requests by method and failure kind.",
			},
			[]string{"method", "kind"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "restclient",
				Name:      "request_duration_seconds",
				Help:      "End-to-end request latency, including retries and stages.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// Name implements restclient.Stage.
func (m *Metrics) Name() string { return "metrics" }

// HandleRequest implements restclient.RequestHandler.
func (m *Metrics) HandleRequest(_ context.Context, ex *restclient.Exchange) error {
	ex.Set(metricsStartKey{}, time.Now())
	return nil
}

// HandleResponse implements restclient.ResponseHandler.
func (m *Metrics) HandleResponse(_ context.Context, ex *restclient.Exchange) error {
	method := ex.Request().Method
	m.observe(ex, method)

	code := 0
	if resp := ex.Response(); resp != nil {
		code = resp.StatusCode
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	return nil
}

// HandleError implements restclient.ErrorHandler.
func (m *Metrics) HandleError(_ context.Context, ex *restclient.Exchange) error {
	method := ex.Request().Method
	m.observe(ex, method)

	kind := restclient.KindOf(ex.Err())
	if kind == "" {
		kind = restclient.Unknown
	}
	m.failures.WithLabelValues(method, string(kind)).Inc()
	return nil
}

func (m *Metrics) observe(ex *restclient.Exchange, method string) {
	start, ok := ex.Value(metricsStartKey{}).(time.Time)
	if !ok {
		return
	}
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
