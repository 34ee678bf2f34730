package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for vhub.
//
// Every recording method accepts a nil receiver, so components can treat metrics as optional.
type Metrics struct {
	// Dispatcher metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ForcedLogouts   prometheus.Counter

	// Session metrics
	SessionTransitions *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	StorageCorruption  prometheus.Counter

	// Error metrics (by structured error code)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vhub_requests_total",
				Help: "Total number of dispatched API requests by method and status code",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vhub_request_duration_seconds",
				Help:    "API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method"},
		),
		ForcedLogouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vhub_forced_logouts_total",
				Help: "Times stored credentials were cleared after the server rejected them",
			},
		),
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vhub_session_transitions_total",
				Help: "Session state machine transitions",
			},
			[]string{"from", "to"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vhub_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		StorageCorruption: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vhub_storage_corruption_total",
				Help: "Stored credentials that could not be parsed during hydration",
			},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vhub_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// ObserveRequest records one dispatched request. status is 0 when no response arrived.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(method, label).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ForcedLogout records a credential clear triggered by an authorization failure.
func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}

// Transition records a session state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
}

// LoginAttempt records a login outcome ("success", "rejected", "error").
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// CorruptStorage records an unparseable stored credential.
func (m *Metrics) CorruptStorage() {
	if m == nil {
		return
	}
	m.StorageCorruption.Inc()
}

// Error records a coded error for a component.
func (m *Metrics) Error(code, component string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
