package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the controller.
type Metrics struct {
	ticksTotal           prometheus.Counter
	decisionsTotal       *prometheus.CounterVec
	changesTotal         *prometheus.CounterVec
	activeCriteria       prometheus.Gauge
	actuationErrorsTotal prometheus.Counter
	storeErrorsTotal     prometheus.Counter
	rejectedTotal        prometheus.Counter
}

// newMetrics creates and registers controller metrics.
// Returns nil if no registerer is provided (nil input = nil feature).
func newMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return nil
	}

	m := &Metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "ticks_total",
			Help:      "Total sensor readings processed",
		}),

		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "decisions_total",
			Help:      "Decisions by resulting action and reason",
		}, []string{"action", "reason"}),

		changesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "criteria_changes_total",
			Help:      "Criteria changes applied, by kind",
		}, []string{"kind"}),

		activeCriteria: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "active_criteria",
			Help:      "Number of criteria held by the engine",
		}),

		actuationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "actuation_errors_total",
			Help:      "Actuator failures",
		}),

		storeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "store_errors_total",
			Help:      "Failed writes to the decision log",
		}),

		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakguard",
			Subsystem: "controller",
			Name:      "rejected_events_total",
			Help:      "Events rejected before reaching the engine",
		}),
	}

	registerer.MustRegister(
		m.ticksTotal,
		m.decisionsTotal,
		m.changesTotal,
		m.activeCriteria,
		m.actuationErrorsTotal,
		m.storeErrorsTotal,
		m.rejectedTotal,
	)

	return m
}
