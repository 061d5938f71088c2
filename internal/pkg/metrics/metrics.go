package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cinema"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OrderMetrics tracks PlaceOrder outcomes. outcome is "placed", "replayed" or
// the lower-case failure kind.
type OrderMetrics struct {
	Outcomes   *prometheus.CounterVec
	TotalValue prometheus.Histogram
	SeatsSold  prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "PlaceOrder calls by outcome.",
	}, []string{"outcome"})
	total := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "grand_total",
		Help:      "Grand total of committed orders in currency units.",
		Buckets:   prometheus.ExponentialBuckets(10000, 2, 10),
	})
	seats := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "seats_sold_total",
		Help:      "Seats claimed by committed orders.",
	})

	reg.MustRegister(outcomes, total, seats)
	return &OrderMetrics{Outcomes: outcomes, TotalValue: total, SeatsSold: seats}
}

func (m *OrderMetrics) ObservePlaced(total int64, seats int) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues("placed").Inc()
	m.TotalValue.Observe(float64(total))
	m.SeatsSold.Add(float64(seats))
}

func (m *OrderMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// RelayMetrics counts outbox events handed to the broker.
type RelayMetrics struct {
	Published prometheus.Counter
	Failed    prometheus.Counter
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Order events published to the broker.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_failures_total",
		Help:      "Order event publish attempts that failed.",
	})

	reg.MustRegister(published, failed)
	return &RelayMetrics{Published: published, Failed: failed}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
