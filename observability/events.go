package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	sales     *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking settlement activity.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "events",
				Name:      "payments_total",
				Help:      "Count of payment instructions executed segmented by denom.",
			}, []string{"denom"}),
			sales: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "events",
				Name:      "sales_total",
				Help:      "Count of completed purchases segmented by market.",
			}, []string{"market"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.sales)
	})
	return eventRegistry
}

// RecordPayment increments the payment counter for the supplied denom.
func (m *eventMetrics) RecordPayment(denom string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(denom))
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// RecordSale counts a purchase on the "secondary" or "primary" market.
func (m *eventMetrics) RecordSale(market string) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(market).Inc()
}
