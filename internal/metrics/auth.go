// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for the clientauth daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No account or flow IDs in labels: cardinality must stay bounded.

var (
	// FlowOutcomesTotal counts terminal flow outcomes by result kind ("SUCCEEDED" or an ErrorKind).
	FlowOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_flow_outcomes_total",
		Help: "Total number of finished authentication flows, by outcome kind.",
	}, []string{"kind"})

	// FlowDuration observes wall time from admission to terminal phase.
	FlowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientauth_flow_duration_seconds",
		Help:    "Duration of authentication flows from admission to terminal phase.",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
	}, []string{"result"})

	// StepDuration observes how long each flow phase took.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clientauth_step_duration_seconds",
		Help:    "Duration of individual login steps, by phase.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"phase"})

	// FlowTransitionsTotal counts flow phase transitions.
	FlowTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_flow_transitions_total",
		Help: "Flow phase transitions.",
	}, []string{"phase_from", "phase_to"})

	// FlowsActive tracks the number of non-terminal flows.
	FlowsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clientauth_flows_active",
		Help: "Current number of non-terminal authentication flows.",
	})

	// AdmissionsTotal counts guard decisions by result ("admitted", "rejected", "error").
	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_admissions_total",
		Help: "Total number of flow admission decisions, by result.",
	}, []string{"result"})

	// FlowRecordErrorsTotal counts failures writing flow history.
	FlowRecordErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientauth_flow_record_errors_total",
		Help: "Total number of failed flow history writes, by backend.",
	}, []string{"backend"})
)

// RecordFlowOutcome records a terminal outcome and its duration.
func RecordFlowOutcome(kind string, elapsed time.Duration) {
	FlowOutcomesTotal.WithLabelValues(kind).Inc()
	result := "failed"
	if kind == "SUCCEEDED" {
		result = "succeeded"
	}
	FlowDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveStep records the duration of a finished step.
func ObserveStep(phase string, elapsed time.Duration) {
	StepDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RecordTransition increments the flow transition counter.
func RecordTransition(from, to string) {
	FlowTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordAdmission increments the admission counter.
func RecordAdmission(result string) {
	AdmissionsTotal.WithLabelValues(result).Inc()
}

// IncFlowsActive increments the active flow gauge.
func IncFlowsActive() {
	FlowsActive.Inc()
}

// DecFlowsActive decrements the active flow gauge.
func DecFlowsActive() {
	FlowsActive.Dec()
}

// RecordFlowRecordError increments the flow history write error counter.
func RecordFlowRecordError(backend string) {
	FlowRecordErrorsTotal.WithLabelValues(backend).Inc()
}
