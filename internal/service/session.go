package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dbseed/internal/core"
	"dbseed/internal/logger"
	"dbseed/internal/schema"
	"dbseed/internal/widestr"
)

// Steps recorded in errors and in the run journal.
const (
	StepSetup       = "setup"
	StepConnect     = "connect"
	StepCreateTable = "create table"
	StepSeed        = "insert seed data"
)

// SessionOptions describes one seed run.
type SessionOptions struct {
	// Labels for the journal; never sent to the driver.
	Backend  string
	Server   string
	Database string

	ConnectionString string
	Completion       core.Completion
	Dialect          schema.Dialect
	Seed             []core.SeedUser
}

// Session drives one connect, create, seed, disconnect sequence.
type Session struct {
	driver core.Driver
	conv   *widestr.Converter
	exec   *StatementExecutor
	runs   core.RunRepository
	opts   SessionOptions
}

// NewSession builds a session. runs may be nil to skip journaling; a nil
// conv converts as UTF-8.
func NewSession(driver core.Driver, conv *widestr.Converter, runs core.RunRepository, opts SessionOptions) *Session {
	exec := NewStatementExecutor(conv)
	return &Session{
		driver: driver,
		conv:   exec.conv,
		exec:   exec,
		runs:   runs,
		opts:   opts,
	}
}

// Run executes the session. Every handle acquired is released in reverse
// order (statement, disconnect, connection, environment) before Run returns,
// whichever step fails.
func (s *Session) Run(ctx context.Context) (err error) {
	start := time.Now()
	step := StepSetup
	seeded := 0
	defer func() {
		s.journal(start, step, seeded, err)
	}()

	env, err := s.driver.AllocEnv(ctx)
	if err != nil {
		return fmt.Errorf("allocating environment handle: %w", err)
	}
	defer s.release("environment handle", env.Free, &err)

	if err = env.SetVersion(core.ODBCVersion3); err != nil {
		return fmt.Errorf("setting ODBC version: %w", err)
	}

	conn, err := env.AllocConnection()
	if err != nil {
		return fmt.Errorf("allocating connection handle: %w", err)
	}
	defer s.release("connection handle", conn.Free, &err)

	step = StepConnect
	connStr, err := s.conv.ToWide(s.opts.ConnectionString)
	if err != nil {
		return &core.ConversionError{What: "connection string", Err: err}
	}
	if err = conn.DriverConnect(ctx, connStr, s.opts.Completion); err != nil {
		return err
	}
	logger.Log.Info("Connected successfully.")
	defer s.release("connection", conn.Disconnect, &err)

	stmt, err := conn.AllocStatement()
	if err != nil {
		return fmt.Errorf("allocating statement handle: %w", err)
	}
	defer s.release("statement handle", stmt.Free, &err)

	step = StepCreateTable
	if err = s.exec.Execute(ctx, stmt, s.opts.Dialect.CreateTable); err != nil {
		return stepError(step, err)
	}
	logger.Log.Infof("Table '%s' created successfully.", schema.Table)

	step = StepSeed
	if len(s.opts.Seed) == 0 {
		logger.Log.Info("No seed rows configured, skipping insert.")
		return nil
	}
	insert, err := s.opts.Dialect.InsertSeed(s.opts.Seed)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if err = s.exec.Execute(ctx, stmt, insert); err != nil {
		return stepError(step, err)
	}
	seeded = len(s.opts.Seed)
	logger.Log.Info("Seed data inserted successfully.")
	return nil
}

// Check connects and disconnects without touching the schema. Nothing is
// journaled.
func (s *Session) Check(ctx context.Context) (err error) {
	env, err := s.driver.AllocEnv(ctx)
	if err != nil {
		return fmt.Errorf("allocating environment handle: %w", err)
	}
	defer s.release("environment handle", env.Free, &err)

	if err = env.SetVersion(core.ODBCVersion3); err != nil {
		return fmt.Errorf("setting ODBC version: %w", err)
	}

	conn, err := env.AllocConnection()
	if err != nil {
		return fmt.Errorf("allocating connection handle: %w", err)
	}
	defer s.release("connection handle", conn.Free, &err)

	connStr, err := s.conv.ToWide(s.opts.ConnectionString)
	if err != nil {
		return &core.ConversionError{What: "connection string", Err: err}
	}
	if err = conn.DriverConnect(ctx, connStr, s.opts.Completion); err != nil {
		return err
	}
	logger.Log.Info("Connected successfully.")
	defer s.release("connection", conn.Disconnect, &err)
	return nil
}

// release frees one handle. A release failure is logged; it only becomes
// the result of Run when nothing failed before it.
func (s *Session) release(what string, free func() error, errp *error) {
	if rerr := free(); rerr != nil {
		logger.Log.Warnf("releasing %s: %v", what, rerr)
		if *errp == nil {
			*errp = fmt.Errorf("releasing %s: %w", what, rerr)
		}
	}
}

func stepError(step string, err error) error {
	var execErr *core.ExecError
	if errors.As(err, &execErr) {
		execErr.Step = step
		return execErr
	}
	return fmt.Errorf("%s: %w", step, err)
}

func (s *Session) journal(start time.Time, step string, seeded int, err error) {
	if s.runs == nil {
		return
	}

	run := &core.RunLog{
		StartedAt:  start,
		Backend:    s.opts.Backend,
		Server:     s.opts.Server,
		Database:   s.opts.Database,
		Status:     core.StatusSuccess,
		RowsSeeded: seeded,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		run.Status = core.StatusError
		run.Step = step
		run.ErrorMessage = err.Error()
		if diag, ok := DiagnosticOf(err); ok {
			run.State = diag.State
		}
	}

	if jerr := s.runs.Create(run); jerr != nil {
		logger.Log.Warnf("Failed to write run journal: %v", jerr)
	}
}

// DiagnosticOf returns the driver diagnostic carried by err, if any.
func DiagnosticOf(err error) (core.Diagnostic, bool) {
	var execErr *core.ExecError
	if errors.As(err, &execErr) {
		return execErr.Diagnostic, true
	}
	var connErr *core.ConnectError
	if errors.As(err, &connErr) {
		return connErr.Diagnostic, true
	}
	return core.Diagnostic{}, false
}
