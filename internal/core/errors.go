package core

import (
	"fmt"
)

// ConversionError reports SQL or connection text the string bridge rejected.
type ConversionError struct {
	What string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.What, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ConnectError reports a failed SQLDriverConnect.
type ConnectError struct {
	Diagnostic Diagnostic
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("error connecting to the database: %s (SQLState: %s)", e.Diagnostic.Message, e.Diagnostic.State)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExecError reports a statement the driver refused to execute.
type ExecError struct {
	Step       string
	Diagnostic Diagnostic
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("SQL Error: %s (SQLState: %s)", e.Diagnostic.Message, e.Diagnostic.State)
	if e.Step != "" {
		return e.Step + ": " + msg
	}
	return msg
}
