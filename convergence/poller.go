// Package convergence waits for strictly created schema to become visible to
// datacenter-local reads.
//
// Schema propagation between datacenters is asynchronous and has no "done"
// signal. The poller reads the object at the weakest local level and treats
// "not configured in this replica's catalog" as the only retryable outcome.
// The same shape applies to waiting for any strict write to become visible at
// a weaker level.
package convergence

import (
	"context"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/internal/poll"
	"github.com/getpup/dcprobe/progress"
)

// State is the state of one WaitUntilVisible call.
type State string

const (
	StatePolling State = "polling"
	StateVisible State = "visible"
	StateFailed  State = "failed"
)

// Config holds configuration for the Poller.
type Config struct {
	// PollInterval is the sleep between reads (default: 100ms).
	PollInterval time.Duration

	// MaxWait bounds WaitUntilVisible (default: 5m). Negative means unbounded,
	// which is only acceptable in a controlled test harness.
	MaxWait time.Duration

	// Logger is for observability (optional).
	Logger dcprobe.Logger

	// Observer receives one notification per poll attempt (optional).
	Observer progress.Observer
}

// Poller checks local visibility of a schema object.
type Poller struct {
	config Config
	exec   cluster.Executor
	sleep  poll.SleepFunc
}

// New creates a new Poller borrowing exec.
// Applies default values for PollInterval, MaxWait and Observer if zero.
func New(cfg Config, exec cluster.Executor) *Poller {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = poll.DefaultPollInterval
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = poll.DefaultMaxWait
	}
	if cfg.Observer == nil {
		cfg.Observer = progress.Nop{}
	}

	return &Poller{
		config: cfg,
		exec:   exec,
		sleep:  poll.Sleep,
	}
}

// WaitUntilVisible reads obj at the local weak level until the read succeeds,
// whatever the row count.
//
// A read failing because obj is not yet configured locally is retried after
// PollInterval. Any other failure returns ErrClusterError at once with the
// query attached. Returns ErrTimeout once MaxWait elapses and ErrCancelled if
// ctx is done.
func (p *Poller) WaitUntilVisible(ctx context.Context, obj dcprobe.SchemaObject) error {
	stmt := p.exec.Dialect().SelectObject(obj)
	budget := poll.NewBudget(p.config.MaxWait)
	state := StatePolling

	p.config.Observer.Begin(dcprobe.PhaseConvergence, "Checking:")

	for attempt := 1; state == StatePolling; attempt++ {
		_, err := p.exec.Execute(ctx, stmt, cluster.LocalWeak)

		switch {
		case err == nil:
			state = StateVisible
			p.config.Observer.End(dcprobe.PhaseConvergence, "exists", nil)
			if p.config.Logger != nil {
				p.config.Logger.Info(ctx, "object visible locally",
					"object", obj.QualifiedName(),
					"attempts", attempt,
					"elapsed", budget.Elapsed())
			}

		case ctx.Err() == nil && cluster.IsObjectNotConfigured(err):
			p.config.Observer.Attempt(dcprobe.PhaseConvergence, dcprobe.PollState{
				Attempt: attempt,
				Elapsed: budget.Elapsed(),
				LastErr: err,
			})
			if p.config.Logger != nil {
				p.config.Logger.Debug(ctx, "object not yet configured", "attempt", attempt, "error", err)
			}

			if kind, cause := budget.Wait(ctx, p.config.PollInterval, p.sleep); kind != nil {
				if cause == nil {
					cause = err
				}
				return p.fail(ctx, kind, stmt, attempt, budget.Elapsed(), cause)
			}

		default:
			return p.fail(ctx, poll.Classify(ctx, err), stmt, attempt, budget.Elapsed(), err)
		}
	}

	return nil
}

func (p *Poller) fail(ctx context.Context, kind error, stmt string, attempts int, elapsed time.Duration, cause error) error {
	err := &dcprobe.PhaseError{
		Phase:     dcprobe.PhaseConvergence,
		Kind:      kind,
		Statement: stmt,
		Attempts:  attempts,
		Elapsed:   elapsed,
		Err:       cause,
	}

	p.config.Observer.End(dcprobe.PhaseConvergence, "", err)
	if p.config.Logger != nil {
		p.config.Logger.Error(ctx, "convergence failed", "state", StateFailed, "error", err)
	}

	return err
}
