package dcprobe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunIdentity_SanitizesRunID(t *testing.T) {
	id, err := NewRunIdentity("", "230101-120000")

	require.NoError(t, err)
	assert.Equal(t, "230101-120000", id.RunID)
	assert.Equal(t, "partial_rep_test_230101_120000", id.NamespaceName())
}

func TestNewRunIdentity_LowercasesAndReplaces(t *testing.T) {
	id, err := NewRunIdentity("Probe", "Run 7/eu.West")

	require.NoError(t, err)
	assert.Equal(t, "probe_run_7_eu_west", id.NamespaceName())
}

func TestNewRunIdentity_IsDeterministic(t *testing.T) {
	a, err := NewRunIdentity("", "r-1")
	require.NoError(t, err)
	b, err := NewRunIdentity("", "r-1")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNewRunIdentity_RejectsBlank(t *testing.T) {
	for _, runID := range []string{"", "   "} {
		_, err := NewRunIdentity("", runID)
		assert.ErrorIs(t, err, ErrInvalidRunID, "run id %q", runID)
	}
}

func TestNewRunIdentity_RejectsTooLong(t *testing.T) {
	_, err := NewRunIdentity("", strings.Repeat("x", MaxNamespaceLength))

	assert.ErrorIs(t, err, ErrInvalidRunID)
}

func TestNewRunIdentity_AcceptsMaximumLength(t *testing.T) {
	runID := strings.Repeat("x", MaxNamespaceLength-len(DefaultNamespacePrefix)-1)

	id, err := NewRunIdentity("", runID)

	require.NoError(t, err)
	assert.Len(t, id.NamespaceName(), MaxNamespaceLength)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc_123", Sanitize("abc_123"))
	assert.Equal(t, "a_b_c", Sanitize("A-B.C"))
	assert.Equal(t, "caf_", Sanitize("café"))
}

func TestRunIdentity_ReservedNamespaces(t *testing.T) {
	id, err := NewRunIdentity("", "r1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"partial_rep_test_r1_attr_pop",
		"partial_rep_test_r1_obj_loc",
	}, id.ReservedNamespaces())
}

func TestNewTopology_NormalizesRemoteDCs(t *testing.T) {
	topo := NewTopology("us-east", []string{"us-west", "", "us-east", "eu-central", "us-west"})

	assert.Equal(t, "us-east", topo.LocalDC)
	assert.Equal(t, []string{"eu-central", "us-west"}, topo.RemoteDCs)
	assert.NoError(t, topo.Validate())
}

func TestTopology_Validate(t *testing.T) {
	assert.ErrorIs(t, Topology{}.Validate(), ErrProtocolViolation)
	assert.ErrorIs(t, Topology{LocalDC: "a", RemoteDCs: []string{"a"}}.Validate(), ErrProtocolViolation)
	assert.ErrorIs(t, Topology{LocalDC: "a", RemoteDCs: []string{"b", "b"}}.Validate(), ErrProtocolViolation)
	assert.NoError(t, Topology{LocalDC: "a"}.Validate())
}

func TestTopology_ReplicationMap(t *testing.T) {
	topo := NewTopology("us-east", []string{"us-west"})

	assert.Equal(t, []string{"us-east", "us-west"}, topo.DCs())
	assert.Equal(t, map[string]int{"us-east": 1, "us-west": 1}, topo.ReplicationMap(1))
}

func TestNamespace_DCsSorted(t *testing.T) {
	ns := Namespace{Name: "ns", Replication: map[string]int{"us-west": 1, "eu-central": 1, "us-east": 1}}

	assert.Equal(t, []string{"eu-central", "us-east", "us-west"}, ns.DCs())
}

func TestDefaultObject(t *testing.T) {
	obj := DefaultObject("partial_rep_test_r1")

	assert.Equal(t, "partial_rep_test_r1.t0", obj.QualifiedName())
	assert.Equal(t, Column{Name: "obj_id", Type: ColumnInt}, obj.KeyColumn)
	assert.Equal(t, []Column{
		{Name: "user", Type: ColumnText},
		{Name: "topic", Type: ColumnText},
	}, obj.Columns)
}
