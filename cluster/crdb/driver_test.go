package crdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestNew_AppliesDefaults(t *testing.T) {
	d := New(Config{DSN: "postgresql://root@localhost:26257/defaultdb?sslmode=disable"})

	assert.Equal(t, 10*time.Second, d.config.ConnectTimeout)
	assert.Equal(t, 2, d.config.MaxOpenConns)
	assert.Equal(t, "crdb", d.Name())
	assert.Equal(t, Dialect{}, d.Dialect())
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := New(Config{}).Open(context.Background())

	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"duplicate database", "42P04", dcprobe.ErrSchemaConflict},
		{"duplicate table", "42P07", dcprobe.ErrSchemaConflict},
		{"undefined table", "42P01", dcprobe.ErrObjectNotConfigured},
		{"invalid catalog", "3D000", dcprobe.ErrObjectNotConfigured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orig := &pq.Error{Code: tc.code, Message: tc.name}

			err := translateError(orig)

			assert.ErrorIs(t, err, tc.want)
			var pqErr *pq.Error
			assert.ErrorAs(t, err, &pqErr)
		})
	}
}

func TestTranslateError_UnknownCodeIsUntouched(t *testing.T) {
	orig := &pq.Error{Code: "40001", Message: "restart transaction"}

	err := translateError(orig)

	assert.Equal(t, error(orig), err)
	assert.False(t, cluster.IsSchemaConflict(err))
}

func TestTranslateError_NonPQError(t *testing.T) {
	orig := errors.New("driver: bad connection")

	assert.Equal(t, orig, translateError(orig))
}

func TestIsRead(t *testing.T) {
	assert.True(t, isRead(`SELECT "obj_id" FROM ns.t0`))
	assert.False(t, isRead("CREATE DATABASE ns"))
	assert.False(t, isRead(`CREATE DATABASE ns PRIMARY REGION "us-east"`))
}
