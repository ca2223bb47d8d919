package scheduling

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records scheduling outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	decisions  *prometheus.CounterVec
	slotTiming prometheus.Histogram
	collisions prometheus.Counter
}

// NewMetrics registers the scheduling collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_booking_decisions_total",
				Help: "Booking decisions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		slotTiming: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scheduler_slot_computation_seconds",
				Help:    "Time spent computing available slots for a resource day",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
		collisions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_identifier_collisions_total",
				Help: "Appointment codes regenerated after a uniqueness collision",
			},
		),
	}
	reg.MustRegister(m.decisions, m.slotTiming, m.collisions)
	return m
}

func (m *Metrics) observeDecision(operation string, d Decision) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if !d.Accepted {
		outcome = string(d.Reason)
	}
	m.decisions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) observeSlots(started time.Time) {
	if m == nil {
		return
	}
	m.slotTiming.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeCollision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}
