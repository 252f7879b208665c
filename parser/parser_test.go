package parser

import (
	"strings"
	"testing"

	"github.com/mildew-lang/mildew/ast"
	"github.com/mildew-lang/mildew/lexer"
)

// parseProgram parses the input, failing the test on any error.
func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	prog, err := New(lexer.New(input)).Parse()
	if err != nil {
		t.Fatalf("parse error for %q: %s", input, err)
	}
	return prog
}

// parseError parses the input expecting failure, returning the error
// text.
func parseError(t *testing.T, input string) string {
	t.Helper()
	_, err := New(lexer.New(input)).Parse()
	if err == nil {
		t.Fatalf("expected a parse error for %q", input)
	}
	return err.Error()
}

func TestVarStatements(t *testing.T) {
	prog := parseProgram(t, "var a = 1, b; let c = 2; const d = 3;")
	if len(prog.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(prog.Statements))
	}

	vs, ok := prog.Statements[0].(*ast.VarStatement)
	if !ok {
		t.Fatalf("statement 0 is %T, not VarStatement", prog.Statements[0])
	}
	if vs.Kind != ast.DeclVar || len(vs.Decls) != 2 {
		t.Fatalf("unexpected var statement: %s", vs.String())
	}
	if vs.Decls[0].Name.Value != "a" || vs.Decls[1].Name.Value != "b" {
		t.Fatalf("unexpected declarator names: %s", vs.String())
	}
	if vs.Decls[1].Value != nil {
		t.Fatalf("expected b to have no initializer")
	}

	if prog.Statements[1].(*ast.VarStatement).Kind != ast.DeclLet {
		t.Fatalf("expected let")
	}
	if prog.Statements[2].(*ast.VarStatement).Kind != ast.DeclConst {
		t.Fatalf("expected const")
	}
}

func TestConstRequiresInitializer(t *testing.T) {
	msg := parseError(t, "const x;")
	if !strings.Contains(msg, "initializer") {
		t.Fatalf("unexpected error: %s", msg)
	}
}

func TestSemicolonsAreRequired(t *testing.T) {
	parseError(t, "var x = 1")
	parseError(t, "return 1")
	parseError(t, "a + b")
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3;", "(1 + (2 * 3))"},
		{"(1 + 2) * 3;", "((1 + 2) * 3)"},
		{"a + b - c;", "((a + b) - c)"},
		{"2 ** 3 ** 2;", "(2 ** (3 ** 2))"},
		{"-a * b;", "((-a) * b)"},
		{"!x == y;", "((!x) == y)"},
		{"a < b == c > d;", "((a < b) == (c > d))"},
		{"a & b | c ^ d;", "((a & b) | (c ^ d))"},
		{"a << 1 + 2;", "(a << (1 + 2))"},
		{"a || b && c;", "(a || (b && c))"},
		{"x instanceof F == true;", "((x instanceof F) == true)"},
		{"a ?? b || c;", "(a ?? (b || c))"},
	}

	for _, tc := range tests {
		prog := parseProgram(t, tc.input)
		got := prog.Statements[0].(*ast.ExpressionStatement).Expression.String()
		if got != tc.want {
			t.Fatalf("input %q: got %s, wanted %s", tc.input, got, tc.want)
		}
	}
}

func TestAssignmentTargets(t *testing.T) {
	// Valid targets.
	for _, ok := range []string{
		"x = 1;", "x += 1;", "a.b = 1;", "a[0] = 1;",
		"a.b.c = 1;", "[p, q] = r;", "x ??= 1;",
	} {
		parseProgram(t, ok)
	}

	// Invalid targets.
	for _, bad := range []string{
		"1 = 2;", "(a + b) = 1;", "[p] += q;",
	} {
		parseError(t, bad)
	}
}

func TestIfAndLoops(t *testing.T) {
	prog := parseProgram(t, "if (a) { b; } else if (c) { d; } else { e; }")
	stmt, ok := prog.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected IfStatement, got %T", prog.Statements[0])
	}
	if _, ok := stmt.Alternative.(*ast.IfStatement); !ok {
		t.Fatalf("expected chained else-if, got %T", stmt.Alternative)
	}

	parseProgram(t, "while (a < 10) { a++; }")
	parseProgram(t, "do { a++; } while (a < 10);")
	parseProgram(t, "for (;;) { break; }")
	parseProgram(t, "for (let i = 0; i < 10; i++) { continue; }")

	prog = parseProgram(t, "for (let x of xs) { x; }")
	fi, ok := prog.Statements[0].(*ast.ForInStatement)
	if !ok || !fi.Of || fi.Value != "x" || fi.Key != "" {
		t.Fatalf("unexpected for-of: %#v", prog.Statements[0])
	}

	prog = parseProgram(t, "for (k, v in o) { k; }")
	fi = prog.Statements[0].(*ast.ForInStatement)
	if fi.Of || fi.Key != "k" || fi.Value != "v" {
		t.Fatalf("unexpected for-in: %#v", fi)
	}
}

func TestFunctionsAndCalls(t *testing.T) {
	prog := parseProgram(t, "function add(a, b) { return a + b; }")
	vs, ok := prog.Statements[0].(*ast.VarStatement)
	if !ok {
		t.Fatalf("expected function declaration to lower to a binding, got %T", prog.Statements[0])
	}
	fn, ok := vs.Decls[0].Value.(*ast.FunctionLiteral)
	if !ok || fn.Name != "add" || len(fn.Parameters) != 2 {
		t.Fatalf("unexpected function: %v", vs.Decls[0].Value)
	}

	prog = parseProgram(t, "f(1, 2 * 3, g());")
	call := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Arguments))
	}

	prog = parseProgram(t, "new Point(1, 2).norm();")
	outer := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.CallExpression)
	member := outer.Function.(*ast.MemberExpression)
	if member.Property != "norm" {
		t.Fatalf("unexpected member: %s", member.Property)
	}
	if _, ok := member.Object.(*ast.NewExpression); !ok {
		t.Fatalf("expected new-expression receiver, got %T", member.Object)
	}
}

func TestClassBodies(t *testing.T) {
	prog := parseProgram(t, `
	class Point extends Base {
		constructor(x) { this.x = x; }
		norm() { return this.x; }
		get size() { return 1; }
		set size(v) { this.x = v; }
		static origin() { return new Point(0); }
		static count = 0;
	}`)

	cl := prog.Statements[0].(*ast.VarStatement).Decls[0].Value.(*ast.ClassLiteral)
	if cl.Name != "Point" || cl.Base == nil || cl.Constructor == nil {
		t.Fatalf("unexpected class: %s", cl.String())
	}
	if len(cl.Methods) != 1 || cl.Methods[0].Key != "norm" {
		t.Fatalf("unexpected methods: %v", cl.Methods)
	}
	if len(cl.Getters) != 1 || len(cl.Setters) != 1 {
		t.Fatalf("unexpected accessors")
	}
	if len(cl.Statics) != 2 {
		t.Fatalf("expected 2 statics, got %d", len(cl.Statics))
	}
}

func TestObjectLiterals(t *testing.T) {
	prog := parseProgram(t, `x = {a: 1, "b": 2, 3: "c", m() { return 1; }, get g() { return 2; }, short};`)
	assign := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.AssignExpression)
	obj := assign.Value.(*ast.ObjectLiteral)
	if len(obj.Properties) != 6 {
		t.Fatalf("expected 6 properties, got %d", len(obj.Properties))
	}
	if obj.Properties[4].Kind != ast.PropertyGet {
		t.Fatalf("expected a getter at index 4")
	}
	if id, ok := obj.Properties[5].Value.(*ast.Identifier); !ok || id.Value != "short" {
		t.Fatalf("expected shorthand property")
	}
}

func TestSwitchStatements(t *testing.T) {
	prog := parseProgram(t, `
	switch (x) {
	case 1:
		a;
		break;
	case 2:
	default:
		b;
	}`)
	sw := prog.Statements[0].(*ast.SwitchStatement)
	if len(sw.Choices) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(sw.Choices))
	}
	if !sw.Choices[2].Default {
		t.Fatalf("expected final clause to be the default")
	}

	msg := parseError(t, "switch (x) { default: a; default: b; }")
	if !strings.Contains(msg, "default") {
		t.Fatalf("unexpected error: %s", msg)
	}
}

func TestTryStatements(t *testing.T) {
	prog := parseProgram(t, "try { a; } catch (e) { b; } finally { c; }")
	ts := prog.Statements[0].(*ast.TryStatement)
	if ts.CatchName != "e" || ts.CatchBlock == nil || ts.FinallyBlock == nil {
		t.Fatalf("unexpected try statement")
	}

	parseProgram(t, "try { a; } finally { c; }")
	parseProgram(t, "try { a; } catch { b; }")
	parseError(t, "try { a; }")
}

func TestTemplateLiterals(t *testing.T) {
	prog := parseProgram(t, "x = `one ${a + 1} two ${b}`;")
	assign := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.AssignExpression)
	tl := assign.Value.(*ast.TemplateLiteral)
	if len(tl.Parts) != 4 {
		t.Fatalf("expected 4 parts, got %d: %s", len(tl.Parts), tl.String())
	}
	if _, ok := tl.Parts[1].(*ast.InfixExpression); !ok {
		t.Fatalf("expected interpolated expression, got %T", tl.Parts[1])
	}
}

func TestRegexpLiterals(t *testing.T) {
	prog := parseProgram(t, "x = /ab+c/ig;")
	assign := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.AssignExpression)
	re := assign.Value.(*ast.RegexpLiteral)
	if re.Pattern != "ab+c" || re.Flags != "ig" {
		t.Fatalf("unexpected regexp: %q %q", re.Pattern, re.Flags)
	}
}

func TestErrorPositions(t *testing.T) {
	p := New(lexer.New("var x = ;"))
	_, err := p.Parse()
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	line, _ := p.FirstErrorPosition()
	if line != 1 {
		t.Fatalf("expected error on line 1, got %d", line)
	}
}
