package dcprobe

import (
	"context"
	"time"
)

// Prober runs one experiment: discovery, provisioning, then convergence.
type Prober interface {
	// Run blocks until the probe table is visible at the local datacenter
	// under the weak consistency level, or until a phase fails.
	//
	// Run returns a *PhaseError naming the failed phase and its kind.
	// Cancelling ctx makes Run fail with ErrCancelled.
	// Created namespaces are left in place on failure.
	Run(ctx context.Context) (Result, error)
}

// Result summarizes a successful run.
type Result struct {
	Identity  RunIdentity
	Topology  Topology
	Namespace Namespace
	Object    SchemaObject

	DiscoveryElapsed    time.Duration
	ProvisioningElapsed time.Duration
	ConvergenceElapsed  time.Duration
}

// Elapsed is the total time spent across all phases.
func (r Result) Elapsed() time.Duration {
	return r.DiscoveryElapsed + r.ProvisioningElapsed + r.ConvergenceElapsed
}
