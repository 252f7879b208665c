package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/mildew-lang/mildew"
	"github.com/mildew-lang/mildew/object"
)

// Exit statuses, following the sysexits convention for usage and
// input errors.
const (
	exitOK       = subcommands.ExitStatus(0)
	exitError    = subcommands.ExitStatus(1)
	exitUsage    = subcommands.ExitStatus(64)
	exitNoInput  = subcommands.ExitStatus(66)
)

// Structure for our options and state.
type runCmd struct {

	// Print the disassembly before execution.
	disasm bool

	// Print a verbose per-opcode trace.
	trace bool

	// Comma-separated external native modules; the dynamic loader
	// is not part of this build.
	libs string
}

// Name returns the name of this subcommand.
func (r *runCmd) Name() string { return "run" }

// Synopsis returns a one-line description of this subcommand.
func (r *runCmd) Synopsis() string { return "Run one or more script files, or an interactive REPL." }

// Usage returns details of this subcommand.
func (r *runCmd) Usage() string {
	return `run [-d] [-v] file1 file2 .. fileN:

Run the given script (or compiled bytecode) files in order, sharing
one global environment.  With no files an interactive REPL is started;
a trailing \ continues input onto another line, and '#exit' or an
empty line terminates.
`
}

// SetFlags sets up per-command flags.
func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.disasm, "d", false, "Print the disassembly before execution.")
	f.BoolVar(&r.trace, "v", false, "Print a verbose per-opcode execution trace.")
	f.StringVar(&r.libs, "l", "", "Comma-separated native modules to load.")
	f.StringVar(&r.libs, "lib", "", "Comma-separated native modules to load.")
}

// Execute runs each named file, or the REPL.
func (r *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {

	interp := mildew.New(r.disasm, r.trace)
	interp.InitializeStdlib()

	if r.libs != "" {
		fmt.Fprintf(os.Stderr, "dynamic native modules are not supported by this build: %s\n", r.libs)
		return exitUsage
	}

	if f.NArg() == 0 {
		return repl(interp)
	}

	for _, file := range f.Args() {
		if _, err := os.Stat(file); err != nil {
			fmt.Fprintf(os.Stderr, "cannot read %s: %s\n", file, err)
			return exitNoInput
		}
		if _, err := interp.EvaluateFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return exitError
		}
		if err := interp.RunVMFibers(); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return exitError
		}
	}
	return exitOK
}

// repl reads lines until '#exit' or an empty line; a trailing \
// continues the input.
func repl(interp *mildew.Interpreter) subcommands.ExitStatus {
	in := bufio.NewScanner(os.Stdin)
	buffer := ""

	for {
		if buffer == "" {
			fmt.Print("mildew> ")
		} else {
			fmt.Print("......> ")
		}
		if !in.Scan() {
			break
		}
		line := in.Text()

		if strings.HasSuffix(line, "\\") {
			buffer += strings.TrimSuffix(line, "\\") + "\n"
			continue
		}
		source := buffer + line
		buffer = ""

		if source == "" || strings.TrimSpace(source) == "#exit" {
			break
		}

		ret, err := interp.Evaluate(source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		if err := interp.RunVMFibers(); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			continue
		}
		if _, undef := ret.(*object.Undefined); !undef {
			fmt.Println(object.Inspectable(ret))
		}
	}
	return exitOK
}
