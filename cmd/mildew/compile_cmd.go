package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mildew-lang/mildew"
	"github.com/mildew-lang/mildew/program"
)

// Structure for our options and state.
type compileCmd struct {

	// Output path of the bytecode file.
	output string
}

// Name returns the name of this subcommand.
func (c *compileCmd) Name() string { return "compile" }

// Synopsis returns a one-line description of this subcommand.
func (c *compileCmd) Synopsis() string { return "Compile a script file to bytecode." }

// Usage returns details of this subcommand.
func (c *compileCmd) Usage() string {
	return `compile [-o out.mdc] file:

Compile the given script file and write the bytecode.  The output is
tied to this machine's byte order and word size; the loader rejects
anything else.
`
}

// SetFlags sets up per-command flags.
func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "out.mdc", "The bytecode file to write.")
}

// Execute compiles the named file.
func (c *compileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: mildew compile [-o out.mdc] file\n")
		return exitUsage
	}

	file := f.Arg(0)
	dat, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %s\n", file, err)
		return exitNoInput
	}

	prog, err := mildew.Compile(string(dat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitError
	}

	out, err := os.Create(c.output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot write %s: %s\n", c.output, err)
		return exitError
	}
	defer out.Close()

	if err := program.Encode(prog, out); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitError
	}
	return exitOK
}
