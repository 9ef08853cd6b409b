// Package topology discovers the datacenters participating in a cluster.
package topology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/internal/poll"
	"github.com/getpup/dcprobe/progress"
)

// Config holds configuration for the Discoverer.
type Config struct {
	// PollInterval is the sleep between peer queries (default: 100ms).
	PollInterval time.Duration

	// MaxWait bounds DiscoverTopology (default: 5m). Negative means unbounded,
	// which is only acceptable in a controlled test harness.
	MaxWait time.Duration

	// Logger is for observability (optional).
	Logger dcprobe.Logger

	// Observer receives one notification per poll attempt (optional).
	Observer progress.Observer
}

// Discoverer finds the local datacenter and waits for the remote ones.
type Discoverer struct {
	config Config
	exec   cluster.Executor
	sleep  poll.SleepFunc
}

// New creates a new Discoverer borrowing exec.
// Applies default values for PollInterval, MaxWait and Observer if zero.
func New(cfg Config, exec cluster.Executor) *Discoverer {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = poll.DefaultPollInterval
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = poll.DefaultMaxWait
	}
	if cfg.Observer == nil {
		cfg.Observer = progress.Nop{}
	}

	return &Discoverer{
		config: cfg,
		exec:   exec,
		sleep:  poll.Sleep,
	}
}

// DiscoverLocalDC returns the datacenter of the node the session talks to.
// Returns ErrProtocolViolation unless the query yields exactly one labelled row.
func (d *Discoverer) DiscoverLocalDC(ctx context.Context) (string, error) {
	stmt := d.exec.Dialect().LocalDCQuery()
	start := time.Now()

	rs, err := d.exec.Execute(ctx, stmt, cluster.LocalWeak)
	if err != nil {
		return "", d.fail(ctx, poll.Classify(ctx, err), stmt, 1, time.Since(start), err)
	}

	if len(rs) != 1 {
		return "", d.fail(ctx, dcprobe.ErrProtocolViolation, stmt, 1, time.Since(start),
			fmt.Errorf("expected 1 row of local metadata, got %d", len(rs)))
	}

	dc, ok := rs[0].String(cluster.DCColumn)
	if !ok || dc == "" {
		return "", d.fail(ctx, dcprobe.ErrProtocolViolation, stmt, 1, time.Since(start),
			fmt.Errorf("local metadata has no %s", cluster.DCColumn))
	}

	if d.config.Logger != nil {
		d.config.Logger.Info(ctx, "local datacenter discovered", "localDC", dc)
	}

	return dc, nil
}

// DiscoverTopology polls peer metadata until expectedTotalDCs-1 distinct
// remote datacenters are observed. Each poll replaces the previous result.
//
// Returns ErrTimeout if MaxWait elapses first, ErrCancelled if ctx is done,
// ErrClusterError if a query fails, and ErrProtocolViolation if more remote
// datacenters show up than expected. An expectedTotalDCs below 1 fails with
// ErrInvalidConfig before any query runs.
func (d *Discoverer) DiscoverTopology(ctx context.Context, expectedTotalDCs int) (dcprobe.Topology, error) {
	if expectedTotalDCs < 1 {
		return dcprobe.Topology{}, d.fail(ctx, dcprobe.ErrInvalidConfig, "", 0, 0,
			fmt.Errorf("expected datacenter count must be at least 1, got %d", expectedTotalDCs))
	}

	localDC, err := d.DiscoverLocalDC(ctx)
	if err != nil {
		return dcprobe.Topology{}, err
	}

	want := expectedTotalDCs - 1
	stmt := d.exec.Dialect().PeerDCQuery()
	budget := poll.NewBudget(d.config.MaxWait)

	d.config.Observer.Begin(dcprobe.PhaseDiscovery, "Remote DCs:")

	for attempt := 1; ; attempt++ {
		rs, err := d.exec.Execute(ctx, stmt, cluster.LocalWeak)
		if err != nil {
			return dcprobe.Topology{}, d.endWith(ctx, poll.Classify(ctx, err), stmt, attempt, budget.Elapsed(), err)
		}

		topo := dcprobe.NewTopology(localDC, remoteLabels(rs))

		if d.config.Logger != nil {
			d.config.Logger.Debug(ctx, "peer datacenters observed",
				"attempt", attempt,
				"remoteDCs", topo.RemoteDCs,
				"want", want)
		}

		switch {
		case len(topo.RemoteDCs) == want:
			d.config.Observer.End(dcprobe.PhaseDiscovery, outcome(topo), nil)
			if d.config.Logger != nil {
				d.config.Logger.Info(ctx, "topology discovered",
					"localDC", topo.LocalDC,
					"remoteDCs", topo.RemoteDCs,
					"attempts", attempt,
					"elapsed", budget.Elapsed())
			}
			return topo, nil

		case len(topo.RemoteDCs) > want:
			return dcprobe.Topology{}, d.endWith(ctx, dcprobe.ErrProtocolViolation, stmt, attempt, budget.Elapsed(),
				fmt.Errorf("observed %d remote datacenters %v, expected %d", len(topo.RemoteDCs), topo.RemoteDCs, want))
		}

		d.config.Observer.Attempt(dcprobe.PhaseDiscovery, dcprobe.PollState{
			Attempt: attempt,
			Elapsed: budget.Elapsed(),
		})

		if kind, cause := budget.Wait(ctx, d.config.PollInterval, d.sleep); kind != nil {
			return dcprobe.Topology{}, d.endWith(ctx, kind, stmt, attempt, budget.Elapsed(), cause)
		}
	}
}

// remoteLabels extracts the datacenter labels of peer rows. Rows of nodes
// that have not gossiped their datacenter yet carry no label and are skipped.
func remoteLabels(rs cluster.ResultSet) []string {
	labels := make([]string, 0, len(rs))
	for _, row := range rs {
		if dc, ok := row.String(cluster.DCColumn); ok && dc != "" {
			labels = append(labels, dc)
		}
	}
	return labels
}

func outcome(t dcprobe.Topology) string {
	if len(t.RemoteDCs) == 0 {
		return "(none)"
	}
	return strings.Join(t.RemoteDCs, " ")
}

// endWith closes the progress line before failing.
func (d *Discoverer) endWith(ctx context.Context, kind error, stmt string, attempts int, elapsed time.Duration, cause error) error {
	err := d.fail(ctx, kind, stmt, attempts, elapsed, cause)
	d.config.Observer.End(dcprobe.PhaseDiscovery, "", err)
	return err
}

func (d *Discoverer) fail(ctx context.Context, kind error, stmt string, attempts int, elapsed time.Duration, cause error) error {
	err := &dcprobe.PhaseError{
		Phase:     dcprobe.PhaseDiscovery,
		Kind:      kind,
		Statement: stmt,
		Attempts:  attempts,
		Elapsed:   elapsed,
		Err:       cause,
	}

	if d.config.Logger != nil {
		d.config.Logger.Error(ctx, "topology discovery failed", "error", err)
	}

	return err
}
