// Package metrics holds the Prometheus instruments of the chat relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streamchat"

// Stream outcome labels.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusCanceled = "canceled"
)

// Relay counts and times relayed completions. All methods are safe for concurrent use.
type Relay struct {
	RequestsTotal         *prometheus.CounterVec
	FragmentsTotal        *prometheus.CounterVec
	TimeToFirstFragment   *prometheus.HistogramVec
	StreamDurationSeconds *prometheus.HistogramVec
	ActiveStreams         prometheus.Gauge
}

// NewRelay creates the relay instruments and registers them with reg. Each registry can hold one
// Relay; pass a fresh prometheus.NewRegistry() in tests.
func NewRelay(reg prometheus.Registerer) *Relay {
	f := promauto.With(reg)
	return &Relay{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Chat relay requests by resolved model and outcome",
			},
			[]string{"model", "status"},
		),
		FragmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "fragments_total",
				Help:      "Upstream fragments written to clients by resolved model",
			},
			[]string{"model"},
		),
		TimeToFirstFragment: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "time_to_first_fragment_seconds",
				Help:      "Time from request to the first fragment in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"model"},
		),
		StreamDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model", "status"},
		),
		ActiveStreams: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "active_streams",
				Help:      "Number of relay streams currently open",
			},
		),
	}
}

// Rejected records a request refused before streaming started.
func (m *Relay) Rejected() {
	m.RequestsTotal.WithLabelValues("", StatusRejected).Inc()
}

// StreamStarted marks a stream as open.
func (m *Relay) StreamStarted() {
	m.ActiveStreams.Inc()
}

// Fragment records one relayed fragment. first is set for the first fragment of a stream, with
// elapsed measured from the start of the request.
func (m *Relay) Fragment(model string, first bool, elapsedSeconds float64) {
	m.FragmentsTotal.WithLabelValues(model).Inc()
	if first {
		m.TimeToFirstFragment.WithLabelValues(model).Observe(elapsedSeconds)
	}
}

// StreamEnded closes a stream opened with StreamStarted.
func (m *Relay) StreamEnded(model, status string, seconds float64) {
	m.ActiveStreams.Dec()
	m.RequestsTotal.WithLabelValues(model, status).Inc()
	m.StreamDurationSeconds.WithLabelValues(model, status).Observe(seconds)
}
