// Package odbc registers the ODBC database/sql driver and teaches the data
// package to read its diagnostic records. Importing it links against the
// platform ODBC driver manager.
package odbc

import (
	"errors"

	"dbseed/internal/core"
	"dbseed/internal/data"

	"github.com/alexbrainman/odbc"
)

// DriverName is the database/sql name the driver registers under.
const DriverName = "odbc"

func init() {
	data.RegisterDiagnoser(diagnose)
}

func diagnose(err error) ([]core.Diagnostic, bool) {
	var odbcErr *odbc.Error
	if !errors.As(err, &odbcErr) {
		return nil, false
	}
	recs := make([]core.Diagnostic, 0, len(odbcErr.Diag))
	for _, r := range odbcErr.Diag {
		recs = append(recs, core.Diagnostic{
			State:       r.State,
			NativeError: r.NativeError,
			Message:     r.Message,
		})
	}
	if len(recs) == 0 {
		recs = append(recs, core.Diagnostic{State: core.GeneralErrorState, Message: odbcErr.Error()})
	}
	return recs, true
}
