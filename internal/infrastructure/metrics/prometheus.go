package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
)

// PrometheusExporter exports metrics to Prometheus format.
// Cache metrics are read from the collector at scrape time.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry

	grpcRequests *prometheus.CounterVec
	grpcDuration *prometheus.HistogramVec
	grpcErrors   *prometheus.CounterVec

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
}

// NewPrometheusExporter creates an exporter registering into registry.
// A nil registry creates a fresh one with the Go and process collectors.
func NewPrometheusExporter(collector *Collector, registry *prometheus.Registry) *PrometheusExporter {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	e := &PrometheusExporter{
		collector: collector,
		registry:  registry,
		grpcRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permcondition_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method"},
		),
		grpcDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permcondition_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		grpcErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permcondition_grpc_errors_total",
				Help: "Total number of gRPC errors by status code",
			},
			[]string{"method", "code"},
		),
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permcondition_evaluations_total",
				Help: "Total number of visibility checks by result",
			},
			[]string{"allowed", "cached"},
		),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "permcondition_evaluation_duration_seconds",
			Help:    "Duration of visibility checks in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "permcondition_cache_hits_total",
		Help: "Total number of evaluation cache hits",
	}, func() float64 { return float64(collector.GetCacheMetrics().Hits) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "permcondition_cache_misses_total",
		Help: "Total number of evaluation cache misses",
	}, func() float64 { return float64(collector.GetCacheMetrics().Misses) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "permcondition_cache_evictions_total",
		Help: "Total number of cache evictions due to memory limits",
	}, func() float64 { return float64(collector.GetCacheMetrics().Evictions) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "permcondition_cache_hit_rate",
		Help: "Current cache hit rate (0.0 to 1.0)",
	}, func() float64 { return collector.GetCacheMetrics().HitRate })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "permcondition_cache_keys_current",
		Help: "Current number of keys in the evaluation cache",
	}, func() float64 { return float64(collector.GetCacheMetrics().KeysCurrent) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "permcondition_cache_memory_bytes",
		Help: "Approximate memory used by the evaluation cache in bytes",
	}, func() float64 { return float64(collector.GetCacheMetrics().MemoryBytes) })

	return e
}

// Handler serves the registry in the Prometheus exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.grpcRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.grpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records an error in Prometheus.
func (e *PrometheusExporter) RecordError(method string, code codes.Code) {
	e.grpcErrors.WithLabelValues(method, code.String()).Inc()
}

// RecordEvaluation records a visibility check in the collector and in Prometheus.
func (e *PrometheusExporter) RecordEvaluation(allowed, cached bool, duration time.Duration) {
	e.collector.RecordEvaluation(allowed, cached, duration)
	e.evaluations.WithLabelValues(strconv.FormatBool(allowed), strconv.FormatBool(cached)).Inc()
	e.evaluationDuration.Observe(duration.Seconds())
}
