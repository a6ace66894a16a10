package data

import (
	"context"
	"errors"
	"strings"
	"sync"

	"dbseed/internal/core"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Diagnoser extracts diagnostic records from a driver-specific error.
// It returns false for errors it does not recognise.
type Diagnoser func(err error) ([]core.Diagnostic, bool)

var (
	diagMu     sync.RWMutex
	diagnosers []Diagnoser
)

// RegisterDiagnoser adds a mapping for a driver whose package the data
// package does not import itself. Registered mappings are tried first.
func RegisterDiagnoser(d Diagnoser) {
	diagMu.Lock()
	defer diagMu.Unlock()
	diagnosers = append(diagnosers, d)
}

// Diagnostics converts a driver error into diagnostic records, most
// significant first. It never returns an empty slice for a non-nil error.
func Diagnostics(err error) []core.Diagnostic {
	if err == nil {
		return nil
	}

	diagMu.RLock()
	registered := diagnosers
	diagMu.RUnlock()
	for _, d := range registered {
		if recs, ok := d(err); ok && len(recs) > 0 {
			return recs
		}
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return []core.Diagnostic{{
			State:       core.GeneralErrorState,
			NativeError: int(msErr.Number),
			Message:     msErr.Message,
		}}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return []core.Diagnostic{{
			State:   string(pqErr.Code),
			Message: pqErr.Message,
		}}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		state := strings.TrimRight(string(myErr.SQLState[:]), "\x00")
		if state == "" {
			state = core.GeneralErrorState
		}
		return []core.Diagnostic{{
			State:       state,
			NativeError: int(myErr.Number),
			Message:     myErr.Message,
		}}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return []core.Diagnostic{{
			State:       core.GeneralErrorState,
			NativeError: liteErr.Code(),
			Message:     liteErr.Error(),
		}}
	}

	state := core.GeneralErrorState
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		state = "HYT00"
	case errors.Is(err, context.Canceled):
		state = "HY008"
	case errors.Is(err, ErrSequence):
		state = "HY010"
	case errors.Is(err, ErrNotConnected):
		state = "08003"
	}
	return []core.Diagnostic{{State: state, Message: err.Error()}}
}
