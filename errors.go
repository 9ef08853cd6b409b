package dcprobe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrProtocolViolation indicates a metadata query returned an unexpected shape.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTimeout indicates a bounded wait ended before the target state was reached.
	ErrTimeout = errors.New("timeout")

	// ErrSchemaConflict indicates the target namespace or object already exists.
	// For a fresh run identifier this means the identifier collided with an earlier run.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrClusterError indicates any other failure reported by the cluster.
	ErrClusterError = errors.New("cluster error")

	// ErrCancelled indicates the operation was interrupted from outside.
	ErrCancelled = errors.New("cancelled")

	// ErrConnectFailure indicates the initial session could not be established.
	ErrConnectFailure = errors.New("connect failure")

	// ErrObjectNotConfigured indicates the queried object is not yet present in
	// the local replica's catalog. It is the only recoverable failure of the
	// convergence loop and never escapes it.
	ErrObjectNotConfigured = errors.New("object not yet configured")

	// ErrInvalidRunID indicates the run identifier cannot produce a valid namespace name.
	ErrInvalidRunID = errors.New("invalid run identifier")

	// ErrInvalidConfig indicates a phase was asked to run with settings it cannot satisfy.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var kinds = []error{
	ErrProtocolViolation,
	ErrTimeout,
	ErrSchemaConflict,
	ErrClusterError,
	ErrCancelled,
	ErrConnectFailure,
	ErrInvalidConfig,
}

// PhaseError is the terminal error of an experiment phase.
// It matches both its Kind and its cause with errors.Is.
type PhaseError struct {
	Phase Phase

	// Kind is one of the sentinel errors of this package.
	Kind error

	// Statement is the statement that failed, if any.
	Statement string

	// Attempts is the number of attempts made before failing.
	Attempts int

	// Elapsed is the time spent in the operation.
	Elapsed time.Duration

	// Err is the underlying cause.
	Err error
}

func (e *PhaseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %v", e.Phase, e.Kind)
	if e.Err != nil && e.Err != e.Kind {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Statement != "" {
		fmt.Fprintf(&b, " (query=[%s])", e.Statement)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
	}
	return b.String()
}

func (e *PhaseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind carried by err, or nil if err carries none.
func KindOf(err error) error {
	var pe *PhaseError
	if errors.As(err, &pe) && pe.Kind != nil {
		return pe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// PhaseOf returns the phase a PhaseError failed in, or "" for other errors.
func PhaseOf(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}
