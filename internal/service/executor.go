package service

import (
	"context"

	"dbseed/internal/core"
	"dbseed/internal/logger"
	"dbseed/internal/widestr"
)

// StatementExecutor runs one SQL statement at a time through a statement handle.
type StatementExecutor struct {
	conv *widestr.Converter
}

// NewStatementExecutor returns an executor converting SQL text with conv;
// nil means UTF-8.
func NewStatementExecutor(conv *widestr.Converter) *StatementExecutor {
	if conv == nil {
		conv, _ = widestr.NewConverter(widestr.LocaleUTF8)
	}
	return &StatementExecutor{conv: conv}
}

// Execute submits sqlText for direct execution. If the text cannot be
// converted the handle is not touched. A driver failure comes back as a
// *core.ExecError carrying the statement's first diagnostic record.
func (e *StatementExecutor) Execute(ctx context.Context, stmt core.Statement, sqlText string) error {
	text, err := e.conv.ToWide(sqlText)
	if err != nil {
		return &core.ConversionError{What: "SQL text", Err: err}
	}

	rc := stmt.ExecDirect(ctx, text)
	switch rc {
	case core.ReturnSuccess:
		return nil
	case core.ReturnSuccessWithInfo:
		if diag, ok := stmt.DiagRec(1); ok {
			logger.Log.Warnf("SQL Info: %s (SQLState: %s)", diag.Message, diag.State)
		}
		return nil
	}

	diag, ok := stmt.DiagRec(1)
	if !ok {
		diag = core.Diagnostic{
			State:   core.GeneralErrorState,
			Message: "no diagnostic record available (" + rc.String() + ")",
		}
	}
	return &core.ExecError{Diagnostic: diag}
}
