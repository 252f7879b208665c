package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mildew-lang/mildew/lexer"
	"github.com/mildew-lang/mildew/parser"
)

// Structure for our options and state.
type parseCmd struct {
}

// Name returns the name of this subcommand.
func (p *parseCmd) Name() string { return "parse" }

// Synopsis returns a one-line description of this subcommand.
func (p *parseCmd) Synopsis() string { return "Show the parser output for a script file." }

// Usage returns details of this subcommand.
func (p *parseCmd) Usage() string {
	return `parse file1 file2 .. fileN:

Show the AST of the given script file(s), as a debugging aid.
`
}

// SetFlags sets up per-command flags; we have none.
func (p *parseCmd) SetFlags(f *flag.FlagSet) {
}

// Parse displays the AST of the given file.
func (p *parseCmd) Parse(file string) subcommands.ExitStatus {
	dat, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %s\n", file, err)
		return exitNoInput
	}

	prog, err := parser.New(lexer.New(string(dat))).Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitError
	}
	fmt.Println(prog.String())
	return exitOK
}

// Execute parses each named file.
func (p *parseCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: mildew parse file ..\n")
		return exitUsage
	}
	for _, file := range f.Args() {
		if status := p.Parse(file); status != exitOK {
			return status
		}
	}
	return exitOK
}
