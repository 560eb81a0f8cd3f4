package graph

import (
	"context"
	"sync"
)

// MemoryClient is an in-memory Client for unit tests. It records every
// statement, replays canned read results and can be told to fail writes.
type MemoryClient struct {
	mu           sync.Mutex
	writes       [][]Statement
	reads        []Statement
	readResults  []Result
	err          error
	failWrites   int
	writeErr     error
	connectivity error
}

// NewMemoryClient instantiates an empty in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError configures the client to return the provided error for subsequent calls.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// FailNextWrites makes the next n ExecuteWrite calls return err without
// recording them.
func (m *MemoryClient) FailNextWrites(n int, err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.writeErr = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

// PushReadResult appends a result that will be returned on the next ExecuteRead call.
func (m *MemoryClient) PushReadResult(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, res)
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, stmts ...Statement) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}
	if m.failWrites > 0 {
		m.failWrites--
		return Result{}, m.writeErr
	}

	tx := make([]Statement, 0, len(stmts))
	for _, stmt := range stmts {
		tx = append(tx, Statement{Cypher: stmt.Cypher, Params: cloneMap(stmt.Params)})
	}
	m.writes = append(m.writes, tx)
	return Result{}, nil
}

func (m *MemoryClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Result{}, m.err
	}

	m.reads = append(m.reads, Statement{Cypher: cypher, Params: cloneMap(params)})

	if len(m.readResults) == 0 {
		return Result{}, nil
	}
	res := m.readResults[0]
	m.readResults = m.readResults[1:]
	return res, nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

// WriteTransactions returns a snapshot of committed write transactions.
func (m *MemoryClient) WriteTransactions() [][]Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Statement(nil), m.writes...)
}

// WriteStatements returns every committed statement in commit order.
func (m *MemoryClient) WriteStatements() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Statement
	for _, tx := range m.writes {
		all = append(all, tx...)
	}
	return all
}

// ReadCalls returns a snapshot of executed read queries.
func (m *MemoryClient) ReadCalls() []Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Statement(nil), m.reads...)
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
