//go:build integration

package integration_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/getpup/dcprobe/cluster/cql"
	"github.com/getpup/dcprobe/cluster/crdb"
	"github.com/google/uuid"
)

// target is one cluster the integration tests run against.
type target struct {
	name string

	// connect skips the test if the cluster is not configured.
	connect func(t *testing.T) *cluster.Handle

	// drop removes a namespace created by a test.
	drop func(name string) string
}

var targets = []target{
	{
		name:    "cql",
		connect: getCQLHandle,
		drop:    func(name string) string { return "DROP KEYSPACE IF EXISTS " + name },
	},
	{
		name:    "crdb",
		connect: getCRDBHandle,
		drop:    func(name string) string { return "DROP DATABASE IF EXISTS " + name + " CASCADE" },
	},
}

// getCQLHandle connects to the cluster listed in CASSANDRA_HOSTS and skips
// the test if the variable is not set.
func getCQLHandle(t *testing.T) *cluster.Handle {
	t.Helper()

	hosts := os.Getenv("CASSANDRA_HOSTS")
	if hosts == "" {
		t.Skip("CASSANDRA_HOSTS not set, skipping integration test")
	}

	driver := cql.New(cql.Config{
		Hosts:   strings.Split(hosts, ","),
		Timeout: 30 * time.Second,
	})
	return connect(t, driver)
}

// getCRDBHandle connects to the cluster at COCKROACH_URL and skips the test
// if the variable is not set. Nodes must be started with a region locality.
func getCRDBHandle(t *testing.T) *cluster.Handle {
	t.Helper()

	dsn := os.Getenv("COCKROACH_URL")
	if dsn == "" {
		t.Skip("COCKROACH_URL not set, skipping integration test")
	}

	return connect(t, crdb.New(crdb.Config{DSN: dsn}))
}

func connect(t *testing.T, driver cluster.Driver) *cluster.Handle {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, err := cluster.Connect(ctx, driver, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// newIdentity returns an identity that no earlier test run used.
func newIdentity(t *testing.T) dcprobe.RunIdentity {
	t.Helper()

	id, err := dcprobe.NewRunIdentity("it", uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("failed to build identity: %v", err)
	}
	return id
}

// dropNamespace removes the namespace of id when the test ends.
// Errors are logged but don't fail the test.
func dropNamespace(t *testing.T, h *cluster.Handle, tg target, id dcprobe.RunIdentity) {
	t.Helper()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := h.Execute(ctx, tg.drop(id.NamespaceName()), cluster.StrictAll); err != nil {
			t.Logf("warning: failed to drop %s: %v", id.NamespaceName(), err)
		}
	})
}
