package object

import (
	"bytes"
	"fmt"
)

// RenderStacktrace formats a runtime error with the chain of function
// activations it unwound through.
func RenderStacktrace(rtErr *RuntimeError) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "RuntimeError: %s\n", rtErr.Message)
	fmt.Fprintf(&buf, "  at [line %d] %s", rtErr.Token.Line, rtErr.Token.Lexeme)

	for _, frame := range rtErr.StackTrace {
		fmt.Fprintf(&buf, "\n  in %s() declared at [line %d]", frame.Function, frame.Line)
	}

	return buf.String()
}
