// Package provision creates the per-run namespace and its probe table.
package provision

import (
	"context"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/internal/poll"
)

// ReplicasPerDC is the replica count given to every datacenter.
// One full copy per datacenter keeps the topology flat: every datacenter
// holds all the data regardless of where a client sits.
const ReplicasPerDC = 1

// Config holds configuration for the Provisioner.
type Config struct {
	// Logger is for observability (optional).
	Logger dcprobe.Logger
}

// Provisioner creates schema at the strict consistency level.
type Provisioner struct {
	config Config
	exec   cluster.Executor
}

// New creates a new Provisioner borrowing exec.
func New(cfg Config, exec cluster.Executor) *Provisioner {
	return &Provisioner{
		config: cfg,
		exec:   exec,
	}
}

// CreateNamespace creates the run's namespace replicated once to every
// datacenter of topology. All replicas must acknowledge before it returns.
//
// Returns ErrSchemaConflict if the namespace already exists. For a fresh run
// identifier that means an identifier collision, so it is never retried.
func (p *Provisioner) CreateNamespace(ctx context.Context, identity dcprobe.RunIdentity, topology dcprobe.Topology) (dcprobe.Namespace, error) {
	start := time.Now()

	if err := topology.Validate(); err != nil {
		return dcprobe.Namespace{}, p.fail(ctx, dcprobe.ErrProtocolViolation, "", time.Since(start), err)
	}

	ns := dcprobe.Namespace{
		Name:        identity.NamespaceName(),
		PrimaryDC:   topology.LocalDC,
		Replication: topology.ReplicationMap(ReplicasPerDC),
	}

	for _, stmt := range p.exec.Dialect().CreateNamespace(ns) {
		if err := p.execute(ctx, stmt, start); err != nil {
			return dcprobe.Namespace{}, err
		}
	}

	if p.config.Logger != nil {
		p.config.Logger.Info(ctx, "namespace created",
			"namespace", ns.Name,
			"replication", ns.Replication,
			"elapsed", time.Since(start))
	}

	return ns, nil
}

// CreateObject creates the probe table inside ns with a single DDL statement
// at the strict consistency level.
func (p *Provisioner) CreateObject(ctx context.Context, ns dcprobe.Namespace) (dcprobe.SchemaObject, error) {
	start := time.Now()
	obj := dcprobe.DefaultObject(ns.Name)

	if err := p.execute(ctx, p.exec.Dialect().CreateObject(obj), start); err != nil {
		return dcprobe.SchemaObject{}, err
	}

	if p.config.Logger != nil {
		p.config.Logger.Info(ctx, "object created",
			"object", obj.QualifiedName(),
			"elapsed", time.Since(start))
	}

	return obj, nil
}

func (p *Provisioner) execute(ctx context.Context, stmt string, start time.Time) error {
	if _, err := p.exec.Execute(ctx, stmt, cluster.StrictAll); err != nil {
		kind := poll.Classify(ctx, err)
		if kind == dcprobe.ErrClusterError && cluster.IsSchemaConflict(err) {
			kind = dcprobe.ErrSchemaConflict
		}
		return p.fail(ctx, kind, stmt, time.Since(start), err)
	}
	return nil
}

func (p *Provisioner) fail(ctx context.Context, kind error, stmt string, elapsed time.Duration, cause error) error {
	err := &dcprobe.PhaseError{
		Phase:     dcprobe.PhaseProvisioning,
		Kind:      kind,
		Statement: stmt,
		Attempts:  1,
		Elapsed:   elapsed,
		Err:       cause,
	}

	if p.config.Logger != nil {
		p.config.Logger.Error(ctx, "provisioning failed", "error", err)
	}

	return err
}
