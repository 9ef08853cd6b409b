// Package cql connects the probe to Cassandra-compatible clusters through gocql.
package cql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/gocql/gocql"
)

// Config configures the CQL driver.
type Config struct {
	// Hosts are the seed addresses (required).
	Hosts []string

	// Port is the native protocol port (default: 9042).
	Port int

	// LocalDC routes requests to coordinators of this datacenter when set.
	// Left empty, the driver round-robins over all hosts.
	LocalDC string

	// Username and Password enable password authentication when Username is set.
	Username string
	Password string

	// ConnectTimeout bounds the initial connection (default: 10s).
	ConnectTimeout time.Duration

	// Timeout bounds each request (default: 10s). Schema statements at ALL
	// may need a generous value on wide clusters.
	Timeout time.Duration

	// ProtoVersion forces a native protocol version (default: negotiated).
	ProtoVersion int

	// NumRetries is the driver-level retry count below the statement level (default: 0).
	NumRetries int
}

// Driver opens gocql sessions.
type Driver struct {
	config Config
}

// Compile-time check that Driver implements cluster.Driver.
var _ cluster.Driver = (*Driver)(nil)

// New creates a new Driver with the given configuration.
// Applies default values for Port and timeouts if zero.
func New(cfg Config) *Driver {
	if cfg.Port == 0 {
		cfg.Port = 9042
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Driver{config: cfg}
}

// Name implements cluster.Driver.
func (d *Driver) Name() string {
	return "cql"
}

// Dialect implements cluster.Driver.
func (d *Driver) Dialect() cluster.Dialect {
	return Dialect{}
}

// ClusterConfig builds the gocql cluster configuration.
func (d *Driver) ClusterConfig() *gocql.ClusterConfig {
	cc := gocql.NewCluster(d.config.Hosts...)
	cc.Port = d.config.Port
	cc.ConnectTimeout = d.config.ConnectTimeout
	cc.Timeout = d.config.Timeout
	cc.Consistency = gocql.LocalOne
	if d.config.ProtoVersion > 0 {
		cc.ProtoVersion = d.config.ProtoVersion
	}
	if d.config.LocalDC != "" {
		cc.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(d.config.LocalDC))
	}
	if d.config.Username != "" {
		cc.Authenticator = gocql.PasswordAuthenticator{
			Username: d.config.Username,
			Password: d.config.Password,
		}
	}
	if d.config.NumRetries > 0 {
		cc.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: d.config.NumRetries}
	}
	return cc
}

// Open implements cluster.Driver.
func (d *Driver) Open(ctx context.Context) (cluster.Session, error) {
	if len(d.config.Hosts) == 0 {
		return nil, errors.New("no hosts configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := d.ClusterConfig().CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Session{session: s}, nil
}

// Session executes CQL statements with a per-call consistency level.
type Session struct {
	session *gocql.Session
}

// Compile-time check that Session implements cluster.Session.
var _ cluster.Session = (*Session)(nil)

// Execute implements cluster.Session.
func (s *Session) Execute(ctx context.Context, statement string, consistency cluster.Consistency) (cluster.ResultSet, error) {
	q := s.session.Query(statement).WithContext(ctx).Consistency(Consistency(consistency))

	if !isRead(statement) {
		if err := q.Exec(); err != nil {
			return nil, translateError(err)
		}
		return cluster.ResultSet{}, nil
	}

	iter := q.Iter()
	rows, err := iter.SliceMap()
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, translateError(err)
	}

	rs := make(cluster.ResultSet, 0, len(rows))
	for _, r := range rows {
		rs = append(rs, cluster.Row(r))
	}
	return rs, nil
}

// Close implements cluster.Session.
func (s *Session) Close() error {
	s.session.Close()
	return nil
}

// Consistency maps a probe consistency level to the gocql level.
func Consistency(c cluster.Consistency) gocql.Consistency {
	switch c {
	case cluster.StrictAll:
		return gocql.All
	default:
		return gocql.LocalOne
	}
}

func isRead(statement string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(statement)), "SELECT")
}

// translateError tags gocql request errors with the dcprobe error kinds.
func translateError(err error) error {
	var exists *gocql.RequestErrAlreadyExists
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %w", dcprobe.ErrSchemaConflict, err)
	}

	var reqErr gocql.RequestError
	if !errors.As(err, &reqErr) {
		return err
	}

	switch reqErr.Code() {
	case gocql.ErrCodeAlreadyExists:
		return fmt.Errorf("%w: %w", dcprobe.ErrSchemaConflict, err)
	case gocql.ErrCodeInvalid:
		if cluster.IsObjectNotConfigured(reqErr) {
			return fmt.Errorf("%w: %w", dcprobe.ErrObjectNotConfigured, err)
		}
	}
	return err
}
