package dcprobe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultNamespacePrefix is prepended to the sanitized run identifier.
const DefaultNamespacePrefix = "partial_rep_test"

// MaxNamespaceLength is the longest keyspace name Cassandra accepts.
const MaxNamespaceLength = 48

// Reserved suffixes for auxiliary bookkeeping namespaces of a run.
// The probe never creates them; they are reserved so other tools sharing
// the run identifier do not collide with it.
const (
	AttrPopSuffix = "_attr_pop"
	ObjLocSuffix  = "_obj_loc"
)

// Phase names a step of the experiment. Errors report the phase they failed in.
type Phase string

const (
	// PhaseConnect covers establishing the cluster session.
	PhaseConnect Phase = "connect"

	// PhaseDiscovery covers local and remote datacenter discovery.
	PhaseDiscovery Phase = "discovery"

	// PhaseProvisioning covers namespace and object creation.
	PhaseProvisioning Phase = "provisioning"

	// PhaseConvergence covers waiting for the object to become locally visible.
	PhaseConvergence Phase = "convergence"
)

// Logger is the logging contract shared by every component.
// Implementations receive alternating key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...interface{})
	Info(ctx context.Context, msg string, keyvals ...interface{})
	Error(ctx context.Context, msg string, keyvals ...interface{})
}

// RunIdentity identifies one experiment run and the namespace derived from it.
// It is created once at startup and never mutated.
type RunIdentity struct {
	// RunID is the identifier exactly as supplied by the operator.
	RunID string

	// NamespaceBase is the sanitized namespace name, "<prefix>_<sanitized run id>".
	NamespaceBase string
}

// NewRunIdentity derives a RunIdentity from a free-form run identifier.
// An empty prefix selects DefaultNamespacePrefix.
// Returns ErrInvalidRunID if the identifier is blank or the derived name is too long.
func NewRunIdentity(prefix, runID string) (RunIdentity, error) {
	if prefix == "" {
		prefix = DefaultNamespacePrefix
	}
	if strings.TrimSpace(runID) == "" {
		return RunIdentity{}, fmt.Errorf("%w: run id is empty", ErrInvalidRunID)
	}

	name := Sanitize(prefix) + "_" + Sanitize(runID)
	if len(name) > MaxNamespaceLength {
		return RunIdentity{}, fmt.Errorf("%w: namespace %q exceeds %d characters", ErrInvalidRunID, name, MaxNamespaceLength)
	}

	return RunIdentity{
		RunID:         runID,
		NamespaceBase: name,
	}, nil
}

// Sanitize lower-cases s and replaces every character that is not allowed in
// an unquoted namespace name with an underscore.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// NamespaceName returns the namespace created for this run.
func (r RunIdentity) NamespaceName() string {
	return r.NamespaceBase
}

// ReservedNamespaces returns the auxiliary namespace names reserved for this run.
func (r RunIdentity) ReservedNamespaces() []string {
	return []string{
		r.NamespaceBase + AttrPopSuffix,
		r.NamespaceBase + ObjLocSuffix,
	}
}

// Topology is the set of datacenters participating in the cluster.
type Topology struct {
	// LocalDC is the datacenter of the node the session is connected to.
	LocalDC string

	// RemoteDCs are the other datacenters, sorted and unique.
	RemoteDCs []string
}

// NewTopology builds a Topology, deduplicating and sorting the remote labels
// and dropping empty labels and the local datacenter.
func NewTopology(localDC string, remote []string) Topology {
	seen := make(map[string]struct{}, len(remote))
	dcs := make([]string, 0, len(remote))
	for _, dc := range remote {
		if dc == "" || dc == localDC {
			continue
		}
		if _, ok := seen[dc]; ok {
			continue
		}
		seen[dc] = struct{}{}
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)

	return Topology{LocalDC: localDC, RemoteDCs: dcs}
}

// Validate checks the topology invariants.
func (t Topology) Validate() error {
	if t.LocalDC == "" {
		return fmt.Errorf("%w: local datacenter is empty", ErrProtocolViolation)
	}
	seen := make(map[string]struct{}, len(t.RemoteDCs))
	for _, dc := range t.RemoteDCs {
		if dc == t.LocalDC {
			return fmt.Errorf("%w: local datacenter %q listed as remote", ErrProtocolViolation, dc)
		}
		if _, ok := seen[dc]; ok {
			return fmt.Errorf("%w: remote datacenter %q listed twice", ErrProtocolViolation, dc)
		}
		seen[dc] = struct{}{}
	}
	return nil
}

// DCs returns the local datacenter followed by the remote ones.
func (t Topology) DCs() []string {
	return append([]string{t.LocalDC}, t.RemoteDCs...)
}

// ReplicationMap assigns replicas to every datacenter of the topology.
func (t Topology) ReplicationMap(replicas int) map[string]int {
	m := make(map[string]int, len(t.RemoteDCs)+1)
	for _, dc := range t.DCs() {
		m[dc] = replicas
	}
	return m
}

// Namespace is the isolated keyspace created for one run.
type Namespace struct {
	// Name is the namespace name, unique per run.
	Name string

	// PrimaryDC is the datacenter the namespace is created from. Dialects
	// with a home region use it; others ignore it.
	PrimaryDC string

	// Replication maps every participating datacenter to its replica count.
	Replication map[string]int
}

// DCs returns the datacenters of the replication map in sorted order.
func (n Namespace) DCs() []string {
	dcs := make([]string, 0, len(n.Replication))
	for dc := range n.Replication {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)
	return dcs
}

// ColumnType is a logical column type, mapped to a concrete type by each dialect.
type ColumnType string

const (
	ColumnInt  ColumnType = "int"
	ColumnText ColumnType = "text"
)

// Column is a logical column definition.
type Column struct {
	Name string
	Type ColumnType
}

// SchemaObject is the table created inside a run's namespace.
type SchemaObject struct {
	Namespace string
	Name      string

	// KeyColumn is the sole primary key column.
	KeyColumn Column

	// Columns are the attribute columns.
	Columns []Column
}

// DefaultObjectName is the name of the probe table.
const DefaultObjectName = "t0"

// DefaultObject returns the probe table definition for a namespace.
func DefaultObject(namespace string) SchemaObject {
	return SchemaObject{
		Namespace: namespace,
		Name:      DefaultObjectName,
		KeyColumn: Column{Name: "obj_id", Type: ColumnInt},
		Columns: []Column{
			{Name: "user", Type: ColumnText},
			{Name: "topic", Type: ColumnText},
		},
	}
}

// QualifiedName returns "<namespace>.<name>".
func (o SchemaObject) QualifiedName() string {
	return o.Namespace + "." + o.Name
}

// PollState is the transient state of one polling call.
type PollState struct {
	// Attempt is the 1-based number of the attempt just made.
	Attempt int

	// Elapsed is the time since the polling call started.
	Elapsed time.Duration

	// LastErr is the recoverable error of the last attempt, if any.
	LastErr error
}
