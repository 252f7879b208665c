package vm

import (
	"fmt"
	"strings"

	"github.com/mildew-lang/mildew/object"
)

// TraceEntry is one frame of a script traceback: the source line
// number and its text.
type TraceEntry struct {
	Line int
	Text string
}

// RuntimeError is the typed error raised for every script-level
// failure: it carries a message, the thrown value (which defaults to
// the message as a string when the VM itself raises), and the script
// traceback from innermost to outermost frame.
type RuntimeError struct {
	// Message describes the failure.
	Message string

	// Thrown is the script-visible exception value.
	Thrown object.Object

	// Traceback lists the source lines of the unwound frames.
	Traceback []TraceEntry
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var out strings.Builder
	out.WriteString(e.Message)
	if e.Thrown != nil {
		if _, undef := e.Thrown.(*object.Undefined); !undef {
			if e.Thrown.Inspect() != e.Message {
				fmt.Fprintf(&out, " (thrown: %s)", object.Inspectable(e.Thrown))
			}
		}
	}
	for _, t := range e.Traceback {
		if t.Text != "" {
			fmt.Fprintf(&out, "\n\tat line %d: %s", t.Line, strings.TrimSpace(t.Text))
		} else {
			fmt.Fprintf(&out, "\n\tat line %d", t.Line)
		}
	}
	return out.String()
}
