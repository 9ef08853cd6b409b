package cql

import (
	"testing"

	"github.com/getpup/dcprobe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_MetadataQueries(t *testing.T) {
	d := Dialect{}

	assert.Equal(t, "SELECT data_center FROM system.local", d.LocalDCQuery())
	assert.Equal(t, "SELECT data_center FROM system.peers", d.PeerDCQuery())
	assert.Equal(t, "SELECT cluster_name FROM system.local", d.ClusterNameQuery())
}

func TestDialect_CreateNamespaceSortsDCs(t *testing.T) {
	ns := dcprobe.Namespace{
		Name:        "partial_rep_test_run1",
		Replication: map[string]int{"us-west": 1, "eu-central": 1, "us-east": 1},
	}

	stmts := Dialect{}.CreateNamespace(ns)

	require.Len(t, stmts, 1)
	assert.Equal(t,
		"CREATE KEYSPACE partial_rep_test_run1 WITH replication = {'class': 'NetworkTopologyStrategy', 'eu-central': 1, 'us-east': 1, 'us-west': 1}",
		stmts[0])
}

func TestDialect_CreateNamespaceQuotesLabels(t *testing.T) {
	ns := dcprobe.Namespace{Name: "ns", Replication: map[string]int{"o'dc": 1}}

	stmts := Dialect{}.CreateNamespace(ns)

	assert.Contains(t, stmts[0], "'o''dc': 1")
}

func TestDialect_ObjectStatements(t *testing.T) {
	obj := dcprobe.DefaultObject("partial_rep_test_run1")

	assert.Equal(t,
		"CREATE TABLE partial_rep_test_run1.t0 (obj_id int, user text, topic text, PRIMARY KEY (obj_id))",
		Dialect{}.CreateObject(obj))
	assert.Equal(t, "SELECT obj_id FROM partial_rep_test_run1.t0", Dialect{}.SelectObject(obj))
}
