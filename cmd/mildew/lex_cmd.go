package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mildew-lang/mildew/lexer"
	"github.com/mildew-lang/mildew/token"
)

// Structure for our options and state.
type lexCmd struct {
}

// Name returns the name of this subcommand.
func (l *lexCmd) Name() string { return "lex" }

// Synopsis returns a one-line description of this subcommand.
func (l *lexCmd) Synopsis() string { return "Show the lexer output for a script file." }

// Usage returns details of this subcommand.
func (l *lexCmd) Usage() string {
	return `lex file1 file2 .. fileN:

Show the lexemes of the given script file(s), as a debugging aid.
`
}

// SetFlags sets up per-command flags; we have none.
func (l *lexCmd) SetFlags(f *flag.FlagSet) {
}

// Lex displays the tokens of the given file.
func (l *lexCmd) Lex(file string) subcommands.ExitStatus {
	dat, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %s\n", file, err)
		return exitNoInput
	}

	lex := lexer.New(string(dat))
	for {
		tok := lex.NextToken()
		if tok.Type == token.EOF {
			break
		}
		fmt.Printf("%4d:%-3d %-10s %s\n", tok.Line, tok.Column, tok.Type, tok.Literal)
		if tok.Type == token.ILLEGAL {
			return exitError
		}
	}
	return exitOK
}

// Execute lexes each named file.
func (l *lexCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: mildew lex file ..\n")
		return exitUsage
	}
	for _, file := range f.Args() {
		if status := l.Lex(file); status != exitOK {
			return status
		}
	}
	return exitOK
}
