package cluster

import (
	"context"
	"fmt"

	"github.com/getpup/dcprobe"
)

// DCColumn is the column every dialect uses for datacenter labels.
const DCColumn = "data_center"

// Row is one result row keyed by column name.
type Row map[string]interface{}

// String returns the column as a string.
// Returns false if the column is missing, null or not textual.
func (r Row) String(column string) (string, bool) {
	switch v := r[column].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

// ResultSet holds all rows returned by a statement.
type ResultSet []Row

// Session executes statements against a cluster.
// A session belongs to exactly one Handle and is never shared across runs.
type Session interface {
	// Execute runs a statement at the given consistency and returns all rows.
	// DDL statements return an empty ResultSet.
	Execute(ctx context.Context, statement string, consistency Consistency) (ResultSet, error)

	// Close releases the session and the underlying cluster resources.
	Close() error
}

// Driver opens sessions for one kind of cluster.
type Driver interface {
	// Name identifies the driver in logs, e.g. "cql".
	Name() string

	// Open establishes a session. Retrying is left to the driver itself.
	Open(ctx context.Context) (Session, error)

	// Dialect returns the statement builder for this cluster kind.
	Dialect() Dialect
}

// Executor is the capability borrowed by the probe components.
// *Handle implements it.
type Executor interface {
	Execute(ctx context.Context, statement string, consistency Consistency) (ResultSet, error)
	Dialect() Dialect
}

// Dialect builds the statements the probe issues.
type Dialect interface {
	// LocalDCQuery selects the DCColumn of the connected node. Must return one row.
	LocalDCQuery() string

	// PeerDCQuery selects the DCColumn of every peer node.
	PeerDCQuery() string

	// ClusterNameQuery selects the cluster name as its only column.
	ClusterNameQuery() string

	// CreateNamespace returns the statements creating ns with its replication map.
	CreateNamespace(ns dcprobe.Namespace) []string

	// CreateObject returns the DDL creating obj.
	CreateObject(obj dcprobe.SchemaObject) string

	// SelectObject returns a read of the key column of obj.
	SelectObject(obj dcprobe.SchemaObject) string
}

func unexpectedColumnError(column string, row Row) error {
	return fmt.Errorf("%w: column %q missing or not text in row %v", dcprobe.ErrProtocolViolation, column, row)
}
