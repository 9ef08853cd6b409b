package cluster

import (
	"context"
	"sync"
)

// MockSession is a configurable Session for tests. It tracks calls and lets
// tests script results per call.
type MockSession struct {
	mu sync.RWMutex

	// ExecuteFunc is called by Execute if set. Otherwise Execute returns no rows.
	ExecuteFunc func(ctx context.Context, statement string, consistency Consistency) (ResultSet, error)

	// CloseFunc is called by Close if set.
	CloseFunc func() error

	// Call tracking
	ExecuteCalls []ExecuteCall
	CloseCalls   int
}

// ExecuteCall records one Execute invocation.
type ExecuteCall struct {
	Statement   string
	Consistency Consistency
}

// Compile-time check that MockSession implements Session.
var _ Session = (*MockSession)(nil)

// NewMockSession creates a new mock session.
func NewMockSession() *MockSession {
	return &MockSession{}
}

// Execute implements Session.
func (m *MockSession) Execute(ctx context.Context, statement string, consistency Consistency) (ResultSet, error) {
	m.mu.Lock()
	m.ExecuteCalls = append(m.ExecuteCalls, ExecuteCall{
		Statement:   statement,
		Consistency: consistency,
	})
	fn := m.ExecuteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, statement, consistency)
	}
	return ResultSet{}, nil
}

// Close implements Session.
func (m *MockSession) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Calls returns a copy of the recorded Execute calls.
func (m *MockSession) Calls() []ExecuteCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ExecuteCall, len(m.ExecuteCalls))
	copy(out, m.ExecuteCalls)
	return out
}

// CallsFor returns the recorded calls of one statement.
func (m *MockSession) CallsFor(statement string) []ExecuteCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ExecuteCall
	for _, c := range m.ExecuteCalls {
		if c.Statement == statement {
			out = append(out, c)
		}
	}
	return out
}

// MockDriver is a Driver for tests.
type MockDriver struct {
	// OpenFunc is called by Open if set. Otherwise Open returns Session.
	OpenFunc func(ctx context.Context) (Session, error)

	// Session is returned by Open when OpenFunc is nil.
	Session Session

	// DialectValue is returned by Dialect.
	DialectValue Dialect

	OpenCalls int
}

// Compile-time check that MockDriver implements Driver.
var _ Driver = (*MockDriver)(nil)

// Name implements Driver.
func (d *MockDriver) Name() string {
	return "mock"
}

// Open implements Driver.
func (d *MockDriver) Open(ctx context.Context) (Session, error) {
	d.OpenCalls++
	if d.OpenFunc != nil {
		return d.OpenFunc(ctx)
	}
	return d.Session, nil
}

// Dialect implements Driver.
func (d *MockDriver) Dialect() Dialect {
	return d.DialectValue
}
