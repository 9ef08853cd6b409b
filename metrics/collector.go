package metrics

import (
	"sync"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/progress"
)

// Collector wraps metrics and provides helper methods with the run label pre-filled.
// It also observes polling progress.
type Collector struct {
	run string

	mu    sync.Mutex
	began map[dcprobe.Phase]time.Time
}

// Compile-time check that Collector implements progress.Observer.
var _ progress.Observer = (*Collector)(nil)

// NewCollector creates a new Collector for the given run identifier.
func NewCollector(run string) *Collector {
	return &Collector{
		run:   run,
		began: make(map[dcprobe.Phase]time.Time),
	}
}

// IncPollAttempts increments the retried poll attempts counter of a phase.
func (c *Collector) IncPollAttempts(phase dcprobe.Phase) {
	PollAttemptsTotal.WithLabelValues(c.run, string(phase)).Inc()
}

// IncPhaseFailures increments the failure counter of a phase for the kind carried by err.
func (c *Collector) IncPhaseFailures(phase dcprobe.Phase, err error) {
	PhaseFailuresTotal.WithLabelValues(c.run, string(phase), kindLabel(err)).Inc()
}

// IncRuns increments the finished runs counter.
func (c *Collector) IncRuns(outcome string) {
	RunsTotal.WithLabelValues(c.run, outcome).Inc()
}

// SetDatacenters sets the discovered datacenters gauge.
func (c *Collector) SetDatacenters(count int) {
	Datacenters.WithLabelValues(c.run).Set(float64(count))
}

// ObservePhaseDuration records a phase duration observation.
func (c *Collector) ObservePhaseDuration(phase dcprobe.Phase, seconds float64) {
	PhaseDuration.WithLabelValues(c.run, string(phase)).Observe(seconds)
}

// Begin implements progress.Observer.
func (c *Collector) Begin(phase dcprobe.Phase, _ string) {
	c.mu.Lock()
	c.began[phase] = time.Now()
	c.mu.Unlock()
}

// Attempt implements progress.Observer.
func (c *Collector) Attempt(phase dcprobe.Phase, _ dcprobe.PollState) {
	c.IncPollAttempts(phase)
}

// End implements progress.Observer. Polling loop durations are recorded here;
// failures are counted once per run by the caller.
func (c *Collector) End(phase dcprobe.Phase, _ string, _ error) {
	c.mu.Lock()
	began, ok := c.began[phase]
	delete(c.began, phase)
	c.mu.Unlock()

	if ok {
		c.ObservePhaseDuration(phase, time.Since(began).Seconds())
	}
}

func kindLabel(err error) string {
	if kind := dcprobe.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "unknown"
}
