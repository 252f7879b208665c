package mildew

import "fmt"

// CompileError is the typed error produced for any failure between
// the lexer and the bytecode emitter.  It is never recoverable
// in-script.
type CompileError struct {
	// Line and Column locate the failure in the source; they are
	// zero when no position is known.
	Line   int
	Column int

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("compile error: %s", e.Message)
}
