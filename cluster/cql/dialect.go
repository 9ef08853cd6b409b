package cql

import (
	"fmt"
	"strings"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
)

// Dialect builds CQL statements for Cassandra-compatible clusters.
type Dialect struct{}

// Compile-time check that Dialect implements cluster.Dialect.
var _ cluster.Dialect = Dialect{}

// LocalDCQuery implements cluster.Dialect.
func (Dialect) LocalDCQuery() string {
	return "SELECT " + cluster.DCColumn + " FROM system.local"
}

// PeerDCQuery implements cluster.Dialect.
// system.peers lists every other node, including nodes of the local datacenter.
func (Dialect) PeerDCQuery() string {
	return "SELECT " + cluster.DCColumn + " FROM system.peers"
}

// ClusterNameQuery implements cluster.Dialect.
func (Dialect) ClusterNameQuery() string {
	return "SELECT cluster_name FROM system.local"
}

// CreateNamespace implements cluster.Dialect using NetworkTopologyStrategy.
func (Dialect) CreateNamespace(ns dcprobe.Namespace) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE KEYSPACE %s WITH replication = {'class': 'NetworkTopologyStrategy'", ns.Name)
	for _, dc := range ns.DCs() {
		fmt.Fprintf(&b, ", %s: %d", quote(dc), ns.Replication[dc])
	}
	b.WriteString("}")
	return []string{b.String()}
}

// CreateObject implements cluster.Dialect.
func (Dialect) CreateObject(obj dcprobe.SchemaObject) string {
	cols := make([]string, 0, len(obj.Columns)+1)
	cols = append(cols, obj.KeyColumn.Name+" "+columnType(obj.KeyColumn.Type))
	for _, c := range obj.Columns {
		cols = append(cols, c.Name+" "+columnType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s, PRIMARY KEY (%s))",
		obj.QualifiedName(), strings.Join(cols, ", "), obj.KeyColumn.Name)
}

// SelectObject implements cluster.Dialect.
func (Dialect) SelectObject(obj dcprobe.SchemaObject) string {
	return fmt.Sprintf("SELECT %s FROM %s", obj.KeyColumn.Name, obj.QualifiedName())
}

func columnType(t dcprobe.ColumnType) string {
	switch t {
	case dcprobe.ColumnInt:
		return "int"
	default:
		return "text"
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
