// Package experiment runs one consistency experiment end to end: topology
// discovery, namespace provisioning, then convergence polling.
package experiment

import (
	"context"
	"errors"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/convergence"
	"github.com/getpup/dcprobe/metrics"
	"github.com/getpup/dcprobe/progress"
	"github.com/getpup/dcprobe/provision"
	"github.com/getpup/dcprobe/topology"
	"github.com/google/uuid"
)

// Config holds configuration for the Runner.
type Config struct {
	// Executor runs statements against the cluster (required).
	// The runner borrows it and never closes it.
	Executor cluster.Executor

	// Identity names the run and its namespace (required).
	Identity dcprobe.RunIdentity

	// ExpectedDCs is the total number of datacenters, local included (default: 2).
	ExpectedDCs int

	// PollInterval is the sleep between polls of both loops (default: 100ms).
	PollInterval time.Duration

	// DiscoveryTimeout bounds topology discovery (default: 5m, negative: unbounded).
	DiscoveryTimeout time.Duration

	// ConvergenceTimeout bounds convergence polling (default: 5m, negative: unbounded).
	ConvergenceTimeout time.Duration

	// Logger is for observability (optional).
	Logger dcprobe.Logger

	// Observer receives polling progress (optional).
	Observer progress.Observer

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	// Set to false explicitly to disable metrics.
	MetricsEnabled *bool
}

// Runner is the default dcprobe.Prober.
type Runner struct {
	config      Config
	instanceID  string
	collector   *metrics.Collector
	discoverer  *topology.Discoverer
	provisioner *provision.Provisioner
	poller      *convergence.Poller
}

// Compile-time check that Runner implements dcprobe.Prober.
var _ dcprobe.Prober = (*Runner)(nil)

// clusterNamer is implemented by executors that can report the cluster name.
type clusterNamer interface {
	ClusterName(ctx context.Context) (string, error)
}

// New creates a new Runner with the given configuration.
// Applies default values for ExpectedDCs and Observer if zero. Poll intervals
// and timeouts are defaulted by the phase components.
func New(cfg Config) *Runner {
	if cfg.ExpectedDCs == 0 {
		cfg.ExpectedDCs = 2
	}
	if cfg.Observer == nil {
		cfg.Observer = progress.Nop{}
	}

	var collector *metrics.Collector
	metricsEnabled := true
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}

	observer := cfg.Observer
	if metricsEnabled {
		collector = metrics.NewCollector(cfg.Identity.RunID)
		observer = progress.Multi{cfg.Observer, collector}
	}

	return &Runner{
		config:     cfg,
		instanceID: uuid.NewString(),
		collector:  collector,
		discoverer: topology.New(topology.Config{
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.DiscoveryTimeout,
			Logger:       cfg.Logger,
			Observer:     observer,
		}, cfg.Executor),
		provisioner: provision.New(provision.Config{
			Logger: cfg.Logger,
		}, cfg.Executor),
		poller: convergence.New(convergence.Config{
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.ConvergenceTimeout,
			Logger:       cfg.Logger,
			Observer:     observer,
		}, cfg.Executor),
	}
}

// InstanceID identifies this participant. Every datacenter runs its own
// process with the same run identifier; the instance id tells them apart in
// logs.
func (r *Runner) InstanceID() string {
	return r.instanceID
}

// Run implements dcprobe.Prober.
func (r *Runner) Run(ctx context.Context) (dcprobe.Result, error) {
	res := dcprobe.Result{Identity: r.config.Identity}

	if r.config.Logger != nil {
		r.config.Logger.Info(ctx, "starting experiment",
			"runID", r.config.Identity.RunID,
			"namespace", r.config.Identity.NamespaceName(),
			"instanceID", r.instanceID,
			"expectedDCs", r.config.ExpectedDCs)
	}
	r.logClusterName(ctx)

	// 1. Discover the topology
	start := time.Now()
	topo, err := r.discoverer.DiscoverTopology(ctx, r.config.ExpectedDCs)
	res.DiscoveryElapsed = time.Since(start)
	if err != nil {
		return res, r.failed(ctx, dcprobe.PhaseDiscovery, err)
	}
	res.Topology = topo
	if r.collector != nil {
		r.collector.SetDatacenters(len(topo.DCs()))
	}

	// 2. Provision the namespace and the probe table with strict acknowledgement
	start = time.Now()
	ns, err := r.provisioner.CreateNamespace(ctx, r.config.Identity, topo)
	if err != nil {
		res.ProvisioningElapsed = time.Since(start)
		return res, r.failed(ctx, dcprobe.PhaseProvisioning, err)
	}
	res.Namespace = ns

	obj, err := r.provisioner.CreateObject(ctx, ns)
	res.ProvisioningElapsed = time.Since(start)
	if err != nil {
		return res, r.failed(ctx, dcprobe.PhaseProvisioning, err)
	}
	res.Object = obj
	if r.collector != nil {
		r.collector.ObservePhaseDuration(dcprobe.PhaseProvisioning, res.ProvisioningElapsed.Seconds())
	}

	// 3. Wait until the table is readable at the weak local level
	start = time.Now()
	err = r.poller.WaitUntilVisible(ctx, obj)
	res.ConvergenceElapsed = time.Since(start)
	if err != nil {
		return res, r.failed(ctx, dcprobe.PhaseConvergence, err)
	}

	if r.collector != nil {
		r.collector.IncRuns("succeeded")
	}
	if r.config.Logger != nil {
		r.config.Logger.Info(ctx, "experiment finished",
			"runID", r.config.Identity.RunID,
			"localDC", topo.LocalDC,
			"remoteDCs", topo.RemoteDCs,
			"object", obj.QualifiedName(),
			"elapsed", res.Elapsed())
	}

	return res, nil
}

// failed records a phase failure. Errors that are not already phase errors
// are wrapped so callers can always report a phase and a kind.
func (r *Runner) failed(ctx context.Context, phase dcprobe.Phase, err error) error {
	var pe *dcprobe.PhaseError
	if !errors.As(err, &pe) {
		kind := dcprobe.KindOf(err)
		if kind == nil {
			kind = dcprobe.ErrProtocolViolation
		}
		err = &dcprobe.PhaseError{Phase: phase, Kind: kind, Err: err}
	}

	if r.collector != nil {
		r.collector.IncPhaseFailures(phase, err)
		r.collector.IncRuns("failed")
	}
	if r.config.Logger != nil {
		r.config.Logger.Error(ctx, "experiment failed",
			"runID", r.config.Identity.RunID,
			"phase", phase,
			"error", err)
	}

	return err
}

func (r *Runner) logClusterName(ctx context.Context) {
	namer, ok := r.config.Executor.(clusterNamer)
	if !ok || r.config.Logger == nil {
		return
	}
	name, err := namer.ClusterName(ctx)
	if err != nil {
		r.config.Logger.Debug(ctx, "cluster name unavailable", "error", err)
		return
	}
	r.config.Logger.Info(ctx, "cluster identified", "clusterName", name)
}
