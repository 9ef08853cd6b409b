package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PollAttemptsTotal tracks poll attempts that did not finish a polling loop.
var PollAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dcprobe_poll_attempts_total",
		Help: "Total poll attempts that had to be retried",
	},
	[]string{"run", "phase"},
)

// PhaseFailuresTotal tracks failed phases by error kind.
var PhaseFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dcprobe_phase_failures_total",
		Help: "Total failed phases by error kind",
	},
	[]string{"run", "phase", "kind"},
)

// RunsTotal tracks finished runs by outcome.
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dcprobe_runs_total",
		Help: "Total finished runs by outcome",
	},
	[]string{"run", "outcome"},
)

// Datacenters tracks the number of datacenters in the discovered topology.
var Datacenters = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dcprobe_datacenters",
		Help: "Datacenters in the discovered topology",
	},
	[]string{"run"},
)

// PhaseDuration tracks time spent in each phase.
var PhaseDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dcprobe_phase_duration_seconds",
		Help:    "Time spent in each phase",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"run", "phase"},
)
