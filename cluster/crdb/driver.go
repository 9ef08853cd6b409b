// Package crdb connects the probe to CockroachDB clusters over pgwire with lib/pq.
//
// CockroachDB statements are serializable by default, which serves as the
// strict level. The weak level reads at follower_read_timestamp(), which any
// replica of the local region can serve without contacting the leaseholder.
package crdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/dcprobe"
	"github.com/getpup/dcprobe/cluster"
	"github.com/lib/pq"
)

// SQLSTATE codes the driver classifies.
const (
	codeUndefinedTable     = "42P01"
	codeInvalidCatalogName = "3D000"
	codeDuplicateDatabase  = "42P04"
	codeDuplicateTable     = "42P07"
)

// FollowerReadClause makes a transaction read at the follower read timestamp.
const FollowerReadClause = "SET TRANSACTION AS OF SYSTEM TIME follower_read_timestamp()"

// Config configures the CockroachDB driver.
type Config struct {
	// DSN is a postgres connection string (required),
	// e.g. "postgresql://root@localhost:26257/defaultdb?sslmode=disable".
	DSN string

	// ConnectTimeout bounds the initial ping (default: 10s).
	ConnectTimeout time.Duration

	// MaxOpenConns limits the pool (default: 2). The probe issues one statement at a time.
	MaxOpenConns int
}

// Driver opens database/sql sessions backed by lib/pq.
type Driver struct {
	config Config
}

// Compile-time check that Driver implements cluster.Driver.
var _ cluster.Driver = (*Driver)(nil)

// New creates a new Driver with the given configuration.
// Applies default values for ConnectTimeout and MaxOpenConns if zero.
func New(cfg Config) *Driver {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 2
	}

	return &Driver{config: cfg}
}

// Name implements cluster.Driver.
func (d *Driver) Name() string {
	return "crdb"
}

// Dialect implements cluster.Driver.
func (d *Driver) Dialect() cluster.Dialect {
	return Dialect{}
}

// Open implements cluster.Driver.
func (d *Driver) Open(ctx context.Context) (cluster.Session, error) {
	if d.config.DSN == "" {
		return nil, errors.New("dsn is required")
	}

	connector, err := pq.NewConnector(d.config.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid dsn: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(d.config.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, d.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping cluster: %w", err)
	}

	return NewSession(db), nil
}

// Session executes SQL statements with a per-call consistency level.
type Session struct {
	db *sql.DB
}

// Compile-time check that Session implements cluster.Session.
var _ cluster.Session = (*Session)(nil)

// NewSession wraps an open database handle.
func NewSession(db *sql.DB) *Session {
	return &Session{db: db}
}

// Execute implements cluster.Session.
func (s *Session) Execute(ctx context.Context, statement string, consistency cluster.Consistency) (cluster.ResultSet, error) {
	if !isRead(statement) {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return nil, translateError(err)
		}
		return cluster.ResultSet{}, nil
	}

	if consistency != cluster.LocalWeak {
		rows, err := s.db.QueryContext(ctx, statement)
		if err != nil {
			return nil, translateError(err)
		}
		rs, err := collect(rows)
		if err != nil {
			return nil, translateError(err)
		}
		return rs, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, translateError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, FollowerReadClause); err != nil {
		return nil, translateError(err)
	}

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return nil, translateError(err)
	}
	rs, err := collect(rows)
	if err != nil {
		return nil, translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateError(err)
	}
	return rs, nil
}

// Close implements cluster.Session.
func (s *Session) Close() error {
	return s.db.Close()
}

func collect(rows *sql.Rows) (cluster.ResultSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := cluster.ResultSet{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(cluster.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		rs = append(rs, row)
	}

	return rs, rows.Err()
}

func isRead(statement string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(statement)), "SELECT")
}

// translateError tags pq errors with the dcprobe error kinds.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case codeDuplicateDatabase, codeDuplicateTable:
		return fmt.Errorf("%w: %w", dcprobe.ErrSchemaConflict, err)
	case codeUndefinedTable, codeInvalidCatalogName:
		return fmt.Errorf("%w: %w", dcprobe.ErrObjectNotConfigured, err)
	}
	return err
}
