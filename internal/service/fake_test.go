package service

import (
	"context"
	"fmt"

	"dbseed/internal/core"
	"dbseed/internal/widestr"
)

// fakeDriver records every capability call in order.
type fakeDriver struct {
	calls []string

	allocEnvErr   error
	allocConnErr  error
	connectErr    error
	allocStmtErr  error
	freeStmtErr   error
	disconnectErr error

	// results for successive ExecDirect calls; missing entries succeed
	execResults []core.Return
	diag        *core.Diagnostic

	connStr string
	mode    core.Completion
	texts   []string
}

func (f *fakeDriver) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeDriver) Name() string { return "fake" }

func (f *fakeDriver) AllocEnv(ctx context.Context) (core.Environment, error) {
	f.record("AllocEnv")
	if f.allocEnvErr != nil {
		return nil, f.allocEnvErr
	}
	return &fakeEnv{f}, nil
}

type fakeEnv struct{ f *fakeDriver }

func (e *fakeEnv) SetVersion(version int) error {
	e.f.record("SetVersion(%d)", version)
	return nil
}

func (e *fakeEnv) AllocConnection() (core.Connection, error) {
	e.f.record("AllocConnection")
	if e.f.allocConnErr != nil {
		return nil, e.f.allocConnErr
	}
	return &fakeConn{e.f}, nil
}

func (e *fakeEnv) Free() error {
	e.f.record("FreeEnv")
	return nil
}

type fakeConn struct{ f *fakeDriver }

func (c *fakeConn) DriverConnect(ctx context.Context, connStr widestr.Buffer, mode core.Completion) error {
	c.f.record("DriverConnect")
	c.f.connStr = connStr.String()
	c.f.mode = mode
	return c.f.connectErr
}

func (c *fakeConn) AllocStatement() (core.Statement, error) {
	c.f.record("AllocStatement")
	if c.f.allocStmtErr != nil {
		return nil, c.f.allocStmtErr
	}
	return &fakeStmt{c.f}, nil
}

func (c *fakeConn) Disconnect() error {
	c.f.record("Disconnect")
	return c.f.disconnectErr
}

func (c *fakeConn) Free() error {
	c.f.record("FreeConn")
	return nil
}

type fakeStmt struct{ f *fakeDriver }

func (s *fakeStmt) ExecDirect(ctx context.Context, text widestr.Buffer) core.Return {
	s.f.record("ExecDirect")
	n := len(s.f.texts)
	s.f.texts = append(s.f.texts, text.String())
	if n < len(s.f.execResults) {
		return s.f.execResults[n]
	}
	return core.ReturnSuccess
}

func (s *fakeStmt) DiagRec(rec int) (core.Diagnostic, bool) {
	if rec != 1 || s.f.diag == nil {
		return core.Diagnostic{}, false
	}
	return *s.f.diag, true
}

func (s *fakeStmt) Free() error {
	s.f.record("FreeStmt")
	return s.f.freeStmtErr
}

// fakeRuns collects journal entries.
type fakeRuns struct {
	runs []core.RunLog
	err  error
}

func (r *fakeRuns) Create(run *core.RunLog) error {
	r.runs = append(r.runs, *run)
	return r.err
}

func (r *fakeRuns) GetRecent(limit int) ([]core.RunLog, error) {
	return r.runs, nil
}
