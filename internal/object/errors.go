package object

import (
	"fmt"

	"lox/internal/token"
)

// RuntimeError aborts the current interpret call. Token locates the
// offending operator, name or call.
type RuntimeError struct {
	Token      token.Token
	Message    string
	StackTrace []*StackFrame // innermost call first
}

func NewRuntimeError(tok token.Token, format string, a ...any) *RuntimeError {
	return &RuntimeError{Token: tok, Message: fmt.Sprintf(format, a...)}
}

func (re *RuntimeError) Error() string {
	return re.Message
}

type StackFrame struct {
	Function string
	Line     int
}
