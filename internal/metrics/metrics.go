// Package metrics exposes pipeline metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

const namespace = "iso20022"

// Metrics holds the simulator collectors. It implements processor.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessed  *prometheus.CounterVec
	ValidationErrors   *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ParseFailures      prometheus.Counter
	Duplicates         prometheus.Counter
	InFlight           prometheus.Gauge
	Rejected           *prometheus.CounterVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_processed_total",
				Help:      "Total number of messages processed",
			},
			[]string{"type", "status"},
		),

		ValidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of validation defects by kind",
			},
			[]string{"kind"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processing_duration_seconds",
				Help:      "Message processing duration in seconds",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"type"},
		),

		ParseFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_failures_total",
				Help:      "Total number of documents that could not be parsed",
			},
		),

		Duplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_total",
				Help:      "Total number of messages with a recently seen message id",
			},
		),

		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_messages",
				Help:      "Messages currently being processed",
			},
		),

		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rejected_requests_total",
				Help:      "Requests refused before processing, by reason",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.MessagesProcessed,
		m.ValidationErrors,
		m.ProcessingDuration,
		m.ParseFailures,
		m.Duplicates,
		m.InFlight,
		m.Rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageProcessed records one processed message of the given family.
func (m *Metrics) MessageProcessed(family string, status message.Status, elapsed time.Duration) {
	m.MessagesProcessed.WithLabelValues(family, status.String()).Inc()
	m.ProcessingDuration.WithLabelValues(family).Observe(elapsed.Seconds())
}

// ValidationError records one validation defect.
func (m *Metrics) ValidationError(kind message.ErrorKind) {
	m.ValidationErrors.WithLabelValues(kind.String()).Inc()
}

// ParseFailure records one unparseable document.
func (m *Metrics) ParseFailure() {
	m.ParseFailures.Inc()
}

// Duplicate records one duplicate message id.
func (m *Metrics) Duplicate() {
	m.Duplicates.Inc()
}

// RequestRejected records a request refused before processing, e.g.
// "too_large" or "busy".
func (m *Metrics) RequestRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}
