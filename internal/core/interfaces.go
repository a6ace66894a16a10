package core

import (
	"context"

	"dbseed/internal/widestr"
)

// Driver allocates environment handles. It is the entry point of the
// capability the session is written against.
type Driver interface {
	Name() string
	AllocEnv(ctx context.Context) (Environment, error)
}

// Environment owns every connection allocated from it and must be freed last.
type Environment interface {
	SetVersion(version int) error
	AllocConnection() (Connection, error)
	Free() error
}

// Connection is one database session. DriverConnect consumes the
// connection string once; on failure it returns a *ConnectError.
type Connection interface {
	DriverConnect(ctx context.Context, connStr widestr.Buffer, mode Completion) error
	AllocStatement() (Statement, error)
	Disconnect() error
	Free() error
}

// Statement executes SQL text directly, without preparing it.
type Statement interface {
	ExecDirect(ctx context.Context, text widestr.Buffer) Return
	// DiagRec returns diagnostic record rec (1-based) for the last call.
	DiagRec(rec int) (Diagnostic, bool)
	Free() error
}

// RunRepository stores the journal of finished runs.
type RunRepository interface {
	Create(run *RunLog) error
	GetRecent(limit int) ([]RunLog, error)
}
