package crdb

import (
	"fmt"
	"strings"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
)

// Dialect builds SQL statements for multi-region CockroachDB clusters.
// A node's datacenter is the "region" tier of its locality.
type Dialect struct{}

// Compile-time check that Dialect implements cluster.Dialect.
var _ cluster.Dialect = Dialect{}

// LocalDCQuery implements cluster.Dialect.
func (Dialect) LocalDCQuery() string {
	return "SELECT crdb_internal.locality_value('region') AS " + cluster.DCColumn
}

// PeerDCQuery implements cluster.Dialect.
func (Dialect) PeerDCQuery() string {
	return "SELECT substring(locality, 'region=([^,]*)') AS " + cluster.DCColumn +
		" FROM crdb_internal.gossip_nodes WHERE node_id <> crdb_internal.node_id()"
}

// ClusterNameQuery implements cluster.Dialect.
func (Dialect) ClusterNameQuery() string {
	return "SELECT crdb_internal.cluster_name() AS cluster_name"
}

// CreateNamespace implements cluster.Dialect. The namespace becomes a
// multi-region database with one region per datacenter of the replication
// map, so every region holds a replica. The primary region is ns.PrimaryDC,
// or the first datacenter when it is unset.
func (Dialect) CreateNamespace(ns dcprobe.Namespace) []string {
	dcs := ns.DCs()
	if len(dcs) == 0 {
		return []string{"CREATE DATABASE " + ns.Name}
	}

	primary := ns.PrimaryDC
	if _, ok := ns.Replication[primary]; !ok {
		primary = dcs[0]
	}

	stmt := "CREATE DATABASE " + ns.Name + " PRIMARY REGION " + ident(primary)
	regions := make([]string, 0, len(dcs))
	for _, dc := range dcs {
		regions = append(regions, ident(dc))
	}
	if len(regions) > 1 {
		stmt += " REGIONS " + strings.Join(regions, ", ")
	}
	return []string{stmt}
}

// CreateObject implements cluster.Dialect.
func (Dialect) CreateObject(obj dcprobe.SchemaObject) string {
	cols := make([]string, 0, len(obj.Columns)+1)
	cols = append(cols, ident(obj.KeyColumn.Name)+" "+columnType(obj.KeyColumn.Type)+" PRIMARY KEY")
	for _, c := range obj.Columns {
		cols = append(cols, ident(c.Name)+" "+columnType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", obj.QualifiedName(), strings.Join(cols, ", "))
}

// SelectObject implements cluster.Dialect.
func (Dialect) SelectObject(obj dcprobe.SchemaObject) string {
	return fmt.Sprintf("SELECT %s FROM %s", ident(obj.KeyColumn.Name), obj.QualifiedName())
}

func columnType(t dcprobe.ColumnType) string {
	switch t {
	case dcprobe.ColumnInt:
		return "INT8"
	default:
		return "STRING"
	}
}

// ident quotes column names; "user" is reserved in SQL.
func ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
