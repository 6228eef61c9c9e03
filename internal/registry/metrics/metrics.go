package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module. Tracks
// registration outcomes and critical path durations.
type Metrics struct {
	AgentsRegistered     prometheus.Counter
	RegistrationConflict prometheus.Counter
	RegisterDuration     prometheus.Histogram
	VerifyDuration       prometheus.Histogram
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		AgentsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrasync_agents_registered_total",
			Help: "Total number of agents registered",
		}),
		RegistrationConflict: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrasync_registration_conflicts_total",
			Help: "Total number of registrations rejected by the public id uniqueness constraint",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "astrasync_register_duration_seconds",
			Help:    "Duration of Register operations (write critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "astrasync_verify_duration_seconds",
			Help:    "Duration of Verify lookups (read critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementAgentsRegistered records a successful registration.
func (m *Metrics) IncrementAgentsRegistered() {
	m.AgentsRegistered.Inc()
}

// IncrementRegistrationConflict records a public id collision.
func (m *Metrics) IncrementRegistrationConflict() {
	m.RegistrationConflict.Inc()
}

// ObserveRegister records the duration of a Register operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a Verify lookup.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
