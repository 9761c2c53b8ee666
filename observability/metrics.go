package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	hostMetricsOnce sync.Once
	hostRegistry    *HostMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route, method, and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "market",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// HostMetrics tracks contract calls executed by the host.
type HostMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	height  prometheus.Gauge
	events  *prometheus.CounterVec

	otelCalls   metric.Int64Counter
	otelLatency metric.Float64Histogram
}

// Host returns the singleton registry for host call execution.
func Host() *HostMetrics {
	hostMetricsOnce.Do(func() {
		hostRegistry = &HostMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "host",
				Name:      "calls_total",
				Help:      "Contract calls segmented by method and error kind.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "market",
				Subsystem: "host",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for contract calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "market",
				Subsystem: "host",
				Name:      "block_height",
				Help:      "Height of the last committed call.",
			}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "host",
				Name:      "events_total",
				Help:      "Committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(hostRegistry.calls, hostRegistry.latency, hostRegistry.height, hostRegistry.events)
		hostRegistry.initMeter()
	})
	return hostRegistry
}

// initMeter mirrors call metrics onto the global OpenTelemetry meter so they
// reach the OTLP exporter when one is configured.
func (m *HostMetrics) initMeter() {
	meter := otel.GetMeterProvider().Meter("nftmarket/host")
	calls, err := meter.Int64Counter("market.host.calls")
	if err != nil {
		meter = noop.NewMeterProvider().Meter("nftmarket/host")
		calls, _ = meter.Int64Counter("market.host.calls")
	}
	latency, err := meter.Float64Histogram("market.host.call_duration", metric.WithUnit("s"))
	if err != nil {
		latency, _ = noop.NewMeterProvider().Meter("nftmarket/host").Float64Histogram("market.host.call_duration")
	}
	m.otelCalls = calls
	m.otelLatency = latency
}

// RecordCall records one call. outcome is "ok" or the error kind.
func (m *HostMetrics) RecordCall(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
	if m.otelCalls != nil {
		attrs := metric.WithAttributes(attribute.String("method", method), attribute.String("outcome", outcome))
		m.otelCalls.Add(context.Background(), 1, attrs)
		m.otelLatency.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attribute.String("method", method)))
	}
}

// SetHeight publishes the committed height.
func (m *HostMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// RecordEvent counts a committed event.
func (m *HostMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
