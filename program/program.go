// Package program holds the output of one compilation: the shared
// constant table, the main function, and an optional debug map used
// to render script stack traces.
//
// The package also implements the versioned binary file format used
// to persist compiled programs.  The format is deliberately tied to
// the compiling machine (native byte order, native pointer width);
// the loader rejects anything else.
package program

import (
	"github.com/mildew-lang/mildew/object"
)

// DebugMap carries the source text of the compilation, split by
// lines.  Together with the per-function offset/line pairs it allows
// the VM to show the source line of every frame in a traceback.
type DebugMap struct {
	// Lines holds the source, one entry per line.
	Lines []string
}

// LineText returns the 1-based source line, or the empty string when
// it is out of range.
func (d *DebugMap) LineText(line int) string {
	if d == nil || line < 1 || line > len(d.Lines) {
		return ""
	}
	return d.Lines[line-1]
}

// Program is a compiled script: the deduplicated constant pool shared
// by every function of the compilation, the main function, and the
// optional debug map.
type Program struct {
	// Constants is the shared constant pool.
	Constants []object.Object

	// Main is the entry point; a script function whose parameters
	// are the fixed ceremonial list.
	Main *object.Function

	// Debug may be nil for programs loaded from bytecode files.
	Debug *DebugMap
}
