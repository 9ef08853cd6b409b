package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getpup/dcprobe"
)

// Handle owns the session to a cluster. Every other component borrows it
// through Executor and must not close it.
type Handle struct {
	mu      sync.Mutex
	session Session
	dialect Dialect
	driver  string
	logger  dcprobe.Logger
	closed  bool
}

// Compile-time check that Handle implements Executor.
var _ Executor = (*Handle)(nil)

// Connect opens a session through driver.
// Returns a *dcprobe.PhaseError of kind ErrConnectFailure if no session can be
// established. The failure is not retried here.
func Connect(ctx context.Context, driver Driver, logger dcprobe.Logger) (*Handle, error) {
	start := time.Now()

	session, err := driver.Open(ctx)
	if err != nil {
		return nil, &dcprobe.PhaseError{
			Phase:   dcprobe.PhaseConnect,
			Kind:    dcprobe.ErrConnectFailure,
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("%s driver: %w", driver.Name(), err),
		}
	}

	h := NewHandle(session, driver.Dialect(), logger)
	h.driver = driver.Name()

	if logger != nil {
		logger.Info(ctx, "connected to cluster", "driver", driver.Name(), "elapsed", time.Since(start))
	}

	return h, nil
}

// NewHandle wraps an already open session.
func NewHandle(session Session, dialect Dialect, logger dcprobe.Logger) *Handle {
	return &Handle{
		session: session,
		dialect: dialect,
		logger:  logger,
	}
}

// Execute runs a statement at an explicit consistency level.
// It blocks until the driver answers or ctx is done.
func (h *Handle) Execute(ctx context.Context, statement string, consistency Consistency) (ResultSet, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: session is closed", dcprobe.ErrClusterError)
	}

	if h.logger != nil {
		h.logger.Debug(ctx, "executing statement", "consistency", consistency.String(), "query", statement)
	}

	return h.session.Execute(ctx, statement, consistency)
}

// Dialect returns the statement builder of the connected cluster.
func (h *Handle) Dialect() Dialect {
	return h.dialect
}

// Driver returns the name of the driver the handle was opened with.
func (h *Handle) Driver() string {
	return h.driver
}

// ClusterName queries the name of the connected cluster.
func (h *Handle) ClusterName(ctx context.Context) (string, error) {
	rs, err := h.Execute(ctx, h.dialect.ClusterNameQuery(), LocalWeak)
	if err != nil {
		return "", err
	}
	if len(rs) != 1 {
		return "", fmt.Errorf("%w: expected 1 row, got %d", dcprobe.ErrProtocolViolation, len(rs))
	}
	row := rs[0]
	if len(row) != 1 {
		return "", fmt.Errorf("%w: expected 1 column, got %d", dcprobe.ErrProtocolViolation, len(row))
	}
	for col := range row {
		name, ok := row.String(col)
		if !ok {
			return "", unexpectedColumnError(col, row)
		}
		return name, nil
	}
	return "", nil
}

// Close releases the session. It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.logger != nil {
		h.logger.Info(context.Background(), "closing cluster session", "driver", h.driver)
	}

	return h.session.Close()
}
