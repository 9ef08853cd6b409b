package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/cluster/cql"
	"github.com/getpup/dcprobe/cluster/crdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T) dcprobe.RunIdentity {
	t.Helper()
	id, err := dcprobe.NewRunIdentity("", "230101-120000")
	require.NoError(t, err)
	return id
}

var twoDCs = dcprobe.Topology{LocalDC: "us-east", RemoteDCs: []string{"us-west"}}

func TestCreateNamespace_ReplicatesOncePerDC(t *testing.T) {
	session := cluster.NewMockSession()
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	ns, err := p.CreateNamespace(context.Background(), testIdentity(t), twoDCs)

	require.NoError(t, err)
	assert.Equal(t, "partial_rep_test_230101_120000", ns.Name)
	assert.Equal(t, map[string]int{"us-east": 1, "us-west": 1}, ns.Replication)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		"CREATE KEYSPACE partial_rep_test_230101_120000 WITH replication = {'class': 'NetworkTopologyStrategy', 'us-east': 1, 'us-west': 1}",
		calls[0].Statement)
	assert.Equal(t, cluster.StrictAll, calls[0].Consistency)
}

func TestCreateNamespace_SingleDC(t *testing.T) {
	session := cluster.NewMockSession()
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	ns, err := p.CreateNamespace(context.Background(), testIdentity(t), dcprobe.Topology{LocalDC: "us-east"})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"us-east": 1}, ns.Replication)
}

func TestCreateNamespace_MultiRegionDatabaseIsOneStatement(t *testing.T) {
	session := cluster.NewMockSession()
	p := New(Config{}, cluster.NewHandle(session, crdb.Dialect{}, nil))

	ns, err := p.CreateNamespace(context.Background(), testIdentity(t), twoDCs)

	require.NoError(t, err)
	assert.Equal(t, "us-east", ns.PrimaryDC)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		`CREATE DATABASE partial_rep_test_230101_120000 PRIMARY REGION "us-east" REGIONS "us-east", "us-west"`,
		calls[0].Statement)
	assert.Equal(t, cluster.StrictAll, calls[0].Consistency)
}

func TestCreateNamespace_InvalidTopologyIsProtocolViolation(t *testing.T) {
	session := cluster.NewMockSession()
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	_, err := p.CreateNamespace(context.Background(), testIdentity(t),
		dcprobe.Topology{LocalDC: "us-east", RemoteDCs: []string{"us-east"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, dcprobe.ErrProtocolViolation)
	assert.Empty(t, session.Calls())
}

func TestCreateNamespace_ExistingNamespaceIsSchemaConflict(t *testing.T) {
	session := cluster.NewMockSession()
	session.ExecuteFunc = func(ctx context.Context, stmt string, c cluster.Consistency) (cluster.ResultSet, error) {
		return nil, errors.New("Cannot add existing keyspace \"partial_rep_test_230101_120000\"")
	}
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	_, err := p.CreateNamespace(context.Background(), testIdentity(t), twoDCs)

	require.Error(t, err)
	assert.ErrorIs(t, err, dcprobe.ErrSchemaConflict)
	assert.NotErrorIs(t, err, dcprobe.ErrClusterError)
	assert.Equal(t, dcprobe.PhaseProvisioning, dcprobe.PhaseOf(err))
	assert.Len(t, session.Calls(), 1, "conflicts are never retried")
}

func TestCreateNamespace_UnavailableReplicaIsClusterError(t *testing.T) {
	boom := errors.New("Cannot achieve consistency level ALL")
	session := cluster.NewMockSession()
	session.ExecuteFunc = func(ctx context.Context, stmt string, c cluster.Consistency) (cluster.ResultSet, error) {
		return nil, boom
	}
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	_, err := p.CreateNamespace(context.Background(), testIdentity(t), twoDCs)

	require.Error(t, err)
	assert.ErrorIs(t, err, dcprobe.ErrClusterError)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "CREATE KEYSPACE")
}

func TestCreateNamespace_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := cluster.NewMockSession()
	session.ExecuteFunc = func(ctx context.Context, stmt string, c cluster.Consistency) (cluster.ResultSet, error) {
		return nil, ctx.Err()
	}
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	_, err := p.CreateNamespace(ctx, testIdentity(t), twoDCs)

	assert.ErrorIs(t, err, dcprobe.ErrCancelled)
}

func TestCreateObject_CreatesProbeTable(t *testing.T) {
	session := cluster.NewMockSession()
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))
	ns := dcprobe.Namespace{Name: "partial_rep_test_230101_120000"}

	obj, err := p.CreateObject(context.Background(), ns)

	require.NoError(t, err)
	assert.Equal(t, "t0", obj.Name)
	assert.Equal(t, ns.Name, obj.Namespace)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		"CREATE TABLE partial_rep_test_230101_120000.t0 (obj_id int, user text, topic text, PRIMARY KEY (obj_id))",
		calls[0].Statement)
	assert.Equal(t, cluster.StrictAll, calls[0].Consistency)
}

func TestCreateObject_ExistingTableIsSchemaConflict(t *testing.T) {
	session := cluster.NewMockSession()
	session.ExecuteFunc = func(ctx context.Context, stmt string, c cluster.Consistency) (cluster.ResultSet, error) {
		return nil, dcprobe.ErrSchemaConflict
	}
	p := New(Config{}, cluster.NewHandle(session, cql.Dialect{}, nil))

	_, err := p.CreateObject(context.Background(), dcprobe.Namespace{Name: "ns"})

	assert.ErrorIs(t, err, dcprobe.ErrSchemaConflict)
}
