package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"dbseed/internal/core"
	"dbseed/internal/logger"
	"dbseed/internal/widestr"

	// Drivers
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrSequence      = errors.New("function sequence error")
	ErrNotConnected  = errors.New("connection not open")
)

// DefaultConnectTimeout bounds DriverConnect when the caller sets no timeout.
const DefaultConnectTimeout = 30 * time.Second

// SQLDriver implements core.Driver on top of a registered database/sql driver.
// Each connection handle maps to one pinned *sql.Conn.
type SQLDriver struct {
	name           string
	connectTimeout time.Duration
	stats          Stats
}

func NewSQLDriver(name string, connectTimeout time.Duration) *SQLDriver {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &SQLDriver{name: name, connectTimeout: connectTimeout}
}

func (d *SQLDriver) Name() string { return d.name }

// Stats returns the live handle counts of every environment from this driver.
func (d *SQLDriver) Stats() HandleCounts { return d.stats.Counts() }

func (d *SQLDriver) AllocEnv(ctx context.Context) (core.Environment, error) {
	if !slices.Contains(sql.Drivers(), d.name) {
		return nil, fmt.Errorf("sql: unknown driver %q (forgotten import?)", d.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.stats.update(handleEnv, 1)
	return &sqlEnv{drv: d}, nil
}

type sqlEnv struct {
	drv     *SQLDriver
	version int
	conns   int
	freed   bool
}

func (e *sqlEnv) SetVersion(version int) error {
	if e.freed {
		return ErrInvalidHandle
	}
	if version != 2 && version != core.ODBCVersion3 {
		return fmt.Errorf("unsupported ODBC version %d", version)
	}
	e.version = version
	return nil
}

func (e *sqlEnv) AllocConnection() (core.Connection, error) {
	if e.freed {
		return nil, ErrInvalidHandle
	}
	if e.version == 0 {
		return nil, fmt.Errorf("%w: ODBC version not set on environment", ErrSequence)
	}
	e.conns++
	e.drv.stats.update(handleConn, 1)
	return &sqlConn{env: e}, nil
}

func (e *sqlEnv) Free() error {
	if e.freed {
		return ErrInvalidHandle
	}
	if e.conns > 0 {
		return fmt.Errorf("%w: environment still owns %d connection(s)", ErrSequence, e.conns)
	}
	e.freed = true
	e.drv.stats.update(handleEnv, -1)
	return nil
}

type sqlConn struct {
	env   *sqlEnv
	db    *sql.DB
	conn  *sql.Conn
	stmts int
	freed bool
}

func (c *sqlConn) DriverConnect(ctx context.Context, connStr widestr.Buffer, mode core.Completion) error {
	if c.freed {
		return connectError(ErrInvalidHandle)
	}
	if c.conn != nil {
		return connectError(fmt.Errorf("%w: connection already open", ErrSequence))
	}
	if mode != core.CompletionNoPrompt {
		logger.Log.Debugf("driver %s cannot prompt; connecting with %s as noprompt", c.env.drv.name, mode)
	}

	db, err := sql.Open(c.env.drv.name, connStr.String())
	if err != nil {
		return connectError(fmt.Errorf("failed to open database connection (%s): %w", c.env.drv.name, err))
	}
	db.SetMaxOpenConns(1)

	ctxTimeout, cancel := context.WithTimeout(ctx, c.env.drv.connectTimeout)
	defer cancel()

	conn, err := db.Conn(ctxTimeout)
	if err != nil {
		db.Close()
		return connectError(err)
	}
	if err := conn.PingContext(ctxTimeout); err != nil {
		conn.Close()
		db.Close()
		return connectError(fmt.Errorf("failed to ping database: %w", err))
	}

	c.db, c.conn = db, conn
	return nil
}

func connectError(err error) error {
	return &core.ConnectError{Diagnostic: Diagnostics(err)[0], Err: err}
}

func (c *sqlConn) AllocStatement() (core.Statement, error) {
	if c.freed {
		return nil, ErrInvalidHandle
	}
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	c.stmts++
	c.env.drv.stats.update(handleStmt, 1)
	return &sqlStmt{conn: c}, nil
}

func (c *sqlConn) Disconnect() error {
	if c.freed {
		return ErrInvalidHandle
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.stmts > 0 {
		return fmt.Errorf("%w: %d statement(s) still allocated", ErrSequence, c.stmts)
	}
	err := errors.Join(c.conn.Close(), c.db.Close())
	c.conn, c.db = nil, nil
	return err
}

func (c *sqlConn) Free() error {
	if c.freed {
		return ErrInvalidHandle
	}
	if c.conn != nil {
		return fmt.Errorf("%w: connection is still open", ErrSequence)
	}
	c.freed = true
	c.env.conns--
	c.env.drv.stats.update(handleConn, -1)
	return nil
}

type sqlStmt struct {
	conn    *sqlConn
	lastErr error
	freed   bool
}

func (s *sqlStmt) ExecDirect(ctx context.Context, text widestr.Buffer) core.Return {
	if s.freed {
		s.lastErr = ErrInvalidHandle
		return core.ReturnInvalidHandle
	}
	if s.conn.conn == nil {
		s.lastErr = ErrNotConnected
		return core.ReturnError
	}

	s.lastErr = nil
	if _, err := s.conn.conn.ExecContext(ctx, text.String()); err != nil {
		s.lastErr = err
		return core.ReturnError
	}
	return core.ReturnSuccess
}

func (s *sqlStmt) DiagRec(rec int) (core.Diagnostic, bool) {
	recs := Diagnostics(s.lastErr)
	if rec < 1 || rec > len(recs) {
		return core.Diagnostic{}, false
	}
	return recs[rec-1], true
}

func (s *sqlStmt) Free() error {
	if s.freed {
		return ErrInvalidHandle
	}
	s.freed = true
	s.conn.stmts--
	s.conn.env.drv.stats.update(handleStmt, -1)
	return nil
}
