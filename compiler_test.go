package mildew

import (
	"strings"
	"testing"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
)

func compileOK(t *testing.T, src string) *programHandle {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("compile error for %q: %s", src, err)
	}
	return &programHandle{prog.Constants, prog.Main.Instructions}
}

// programHandle keeps the test bodies terse.
type programHandle struct {
	constants []object.Object
	main      code.Instructions
}

func (p *programHandle) disasm() string {
	return code.Disassemble(p.main)
}

func TestCompileProducesMainAndDebug(t *testing.T) {
	prog, err := Compile("var x = 1;\nx;\n")
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	if prog.Main == nil || len(prog.Main.Instructions) == 0 {
		t.Fatalf("missing main function")
	}
	if len(prog.Main.Parameters) == 0 {
		t.Fatalf("main must carry the ceremonial parameter list")
	}
	if prog.Debug == nil || len(prog.Debug.Lines) != 3 {
		t.Fatalf("unexpected debug map: %#v", prog.Debug)
	}
	if len(prog.Main.Lines) == 0 {
		t.Fatalf("main must carry debug line entries")
	}

	d := code.Disassemble(prog.Main.Instructions)
	if !strings.Contains(d, "HALT") {
		t.Fatalf("main must end in HALT:\n%s", d)
	}
}

func TestConstantDeduplication(t *testing.T) {
	p := compileOK(t, `var a = "x"; var b = "x";`)
	// "x" once, plus the two binding names.
	if len(p.constants) != 3 {
		t.Fatalf("expected 3 constants, got %d: %v", len(p.constants), p.constants)
	}
}

func TestSmallIntegerShortcuts(t *testing.T) {
	p := compileOK(t, `0; 1; -1;`)
	d := p.disasm()
	if !strings.Contains(d, "CONST_0") || !strings.Contains(d, "CONST_1") ||
		!strings.Contains(d, "CONST_N1") {
		t.Fatalf("expected small-integer shortcuts:\n%s", d)
	}
	for _, c := range p.constants {
		if _, ok := c.(*object.Integer); ok {
			t.Fatalf("small integers must not reach the pool")
		}
	}
}

func TestIfCompilesToJumps(t *testing.T) {
	p := compileOK(t, `if (true) { 1; } else { 2; }`)
	d := p.disasm()
	if !strings.Contains(d, "JMPFALSE") || !strings.Contains(d, "JMP") {
		t.Fatalf("expected conditional jumps:\n%s", d)
	}
}

func TestFunctionsCompileToConstants(t *testing.T) {
	p := compileOK(t, `function pick(a, b) { return a; }`)

	var fn *object.Function
	for _, c := range p.constants {
		if f, ok := c.(*object.Function); ok {
			fn = f
		}
	}
	if fn == nil {
		t.Fatalf("expected a function constant")
	}
	if fn.Name != "pick" || len(fn.Parameters) != 2 {
		t.Fatalf("unexpected function %s(%v)", fn.Name, fn.Parameters)
	}
	last := code.Opcode(fn.Instructions[len(fn.Instructions)-1])
	if last != code.OpReturn {
		t.Fatalf("function bodies must end in RETURN, got %s", code.String(last))
	}
}

func TestImplicitReturnIsAppended(t *testing.T) {
	p := compileOK(t, `function noop() { 1; }`)
	for _, c := range p.constants {
		if fn, ok := c.(*object.Function); ok {
			d := code.Disassemble(fn.Instructions)
			if !strings.Contains(d, "STACK_1") || !strings.Contains(d, "RETURN") {
				t.Fatalf("expected implicit undefined return:\n%s", d)
			}
		}
	}
}

func TestTryCompilation(t *testing.T) {
	p := compileOK(t, `try { 1; } catch (e) { 2; } finally { 3; }`)
	d := p.disasm()
	for _, want := range []string{"TRY", "ENDTRY", "LOADEXC", "RETHROW"} {
		if !strings.Contains(d, want) {
			t.Fatalf("expected %s in:\n%s", want, d)
		}
	}
}

func TestSwitchBuildsJumpTable(t *testing.T) {
	p := compileOK(t, `switch (1) { case 1: break; case 2: break; default: 0; }`)
	d := p.disasm()
	if !strings.Contains(d, "SWITCH") {
		t.Fatalf("expected a SWITCH instruction:\n%s", d)
	}

	var table *object.Array
	for _, c := range p.constants {
		if a, ok := c.(*object.Array); ok {
			table = a
		}
	}
	if table == nil || len(table.Elements) != 2 {
		t.Fatalf("expected a two-entry jump table, got %v", table)
	}
	pair := table.Elements[0].(*object.Array)
	if len(pair.Elements) != 2 {
		t.Fatalf("table entries must be [value, target] pairs")
	}
	if _, ok := pair.Elements[1].(*object.Integer); !ok {
		t.Fatalf("table targets must be integer offsets")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`var x = ;`, "no prefix"},
		{`switch (1) { case missing_var: break; }`, "constant"},
		{`break;`, "break outside"},
		{`continue;`, "continue outside"},
		{`super();`, "super"},
		{`const x;`, "initializer"},
		{`1 +`, "end of file"},
	}

	for _, tc := range tests {
		_, err := Compile(tc.src)
		if err == nil {
			t.Fatalf("expected a compile error for %q", tc.src)
		}
		if _, ok := err.(*CompileError); !ok {
			t.Fatalf("expected a CompileError for %q, got %T", tc.src, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("error for %q was %q, wanted %q", tc.src, err, tc.want)
		}
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := Compile("var ok = 1;\nvar bad = ;\n")
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("expected a CompileError, got %T", err)
	}
	if ce.Line != 2 {
		t.Fatalf("expected the error on line 2, got %d", ce.Line)
	}
}
