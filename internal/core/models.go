package core

import (
	"fmt"
	"time"
)

// SeedUser is one row inserted into the Users table.
type SeedUser struct {
	Name string `json:"name" yaml:"name"`
	Age  int    `json:"age" yaml:"age"`
}

// Diagnostic is the first diagnostic record a driver reports for a handle.
type Diagnostic struct {
	State       string `json:"state"`
	NativeError int    `json:"native_error"`
	Message     string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("{%s} %s", d.State, d.Message)
}

// GeneralErrorState is reported when a driver gives no SQLSTATE of its own.
const GeneralErrorState = "HY000"

// Return mirrors the ODBC SQLRETURN codes the session cares about.
type Return int

const (
	ReturnSuccess Return = iota
	ReturnSuccessWithInfo
	ReturnNoData
	ReturnError
	ReturnInvalidHandle
)

func (r Return) String() string {
	switch r {
	case ReturnSuccess:
		return "SQL_SUCCESS"
	case ReturnSuccessWithInfo:
		return "SQL_SUCCESS_WITH_INFO"
	case ReturnNoData:
		return "SQL_NO_DATA"
	case ReturnError:
		return "SQL_ERROR"
	case ReturnInvalidHandle:
		return "SQL_INVALID_HANDLE"
	}
	return fmt.Sprintf("SQLRETURN(%d)", int(r))
}

// Succeeded reports whether r is SQL_SUCCESS or SQL_SUCCESS_WITH_INFO.
func Succeeded(r Return) bool {
	return r == ReturnSuccess || r == ReturnSuccessWithInfo
}

// Completion is the SQLDriverConnect prompting behaviour.
type Completion int

const (
	CompletionNoPrompt Completion = iota
	CompletionComplete
	CompletionPrompt
	CompletionCompleteRequired
)

func (c Completion) String() string {
	switch c {
	case CompletionNoPrompt:
		return "noprompt"
	case CompletionComplete:
		return "complete"
	case CompletionPrompt:
		return "prompt"
	case CompletionCompleteRequired:
		return "complete-required"
	}
	return fmt.Sprintf("completion(%d)", int(c))
}

// ParseCompletion accepts the names returned by Completion.String.
func ParseCompletion(s string) (Completion, error) {
	for c := CompletionNoPrompt; c <= CompletionCompleteRequired; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown driver completion %q", s)
}

// ODBCVersion3 is the value set on the environment before any connection is made.
const ODBCVersion3 = 3

// RunLog is one journal entry describing a finished run.
type RunLog struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	Backend      string    `json:"backend"`
	Server       string    `json:"server"`
	Database     string    `json:"database"`
	Status       string    `json:"status"`
	Step         string    `json:"step"`
	State        string    `json:"state"`
	ErrorMessage string    `json:"error_message"`
	RowsSeeded   int       `json:"rows_seeded"`
	DurationMs   int64     `json:"duration_ms"`
}

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)
