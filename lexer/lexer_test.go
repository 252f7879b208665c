package lexer

import (
	"testing"

	"github.com/mildew-lang/mildew/token"
)

// pair is an expected token type + literal.
type pair struct {
	typ     token.Type
	literal string
}

// lexAll collects every token until EOF.
func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	l := New(input)
	var out []token.Token
	for i := 0; i < 10000; i++ {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			return out
		}
		out = append(out, tok)
	}
	t.Fatalf("lexer did not terminate on input %q", input)
	return nil
}

// expect compares a token stream against the expected pairs.
func expect(t *testing.T, input string, want []pair) {
	t.Helper()
	got := lexAll(t, input)
	if len(got) != len(want) {
		t.Fatalf("input %q: got %d tokens, wanted %d: %v", input, len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Type != w.typ {
			t.Fatalf("input %q token %d: type %v, wanted %v", input, i, got[i].Type, w.typ)
		}
		if got[i].Literal != w.literal {
			t.Fatalf("input %q token %d: literal %q, wanted %q", input, i, got[i].Literal, w.literal)
		}
	}
}

func TestOperators(t *testing.T) {
	expect(t, "a += 1; b **= 2; c >>>= 3; d ??= e;", []pair{
		{token.IDENT, "a"}, {token.PLUSEQUALS, "+="}, {token.INT, "1"}, {token.SEMICOLON, ";"},
		{token.IDENT, "b"}, {token.POWEQUALS, "**="}, {token.INT, "2"}, {token.SEMICOLON, ";"},
		{token.IDENT, "c"}, {token.URSHIFTEQUALS, ">>>="}, {token.INT, "3"}, {token.SEMICOLON, ";"},
		{token.IDENT, "d"}, {token.NULLCEQUALS, "??="}, {token.IDENT, "e"}, {token.SEMICOLON, ";"},
	})

	expect(t, "1 === 2 !== 3 == 4 != 5", []pair{
		{token.INT, "1"}, {token.STRICTEQ, "==="},
		{token.INT, "2"}, {token.NOTSTRICTEQ, "!=="},
		{token.INT, "3"}, {token.EQ, "=="},
		{token.INT, "4"}, {token.NOTEQ, "!="},
		{token.INT, "5"},
	})

	expect(t, "a << b >> c >>> d", []pair{
		{token.IDENT, "a"}, {token.LSHIFT, "<<"},
		{token.IDENT, "b"}, {token.RSHIFT, ">>"},
		{token.IDENT, "c"}, {token.URSHIFT, ">>>"},
		{token.IDENT, "d"},
	})

	expect(t, "x && y || z ?? w", []pair{
		{token.IDENT, "x"}, {token.AND, "&&"},
		{token.IDENT, "y"}, {token.OR, "||"},
		{token.IDENT, "z"}, {token.NULLC, "??"},
		{token.IDENT, "w"},
	})

	expect(t, "i++ + ++j", []pair{
		{token.IDENT, "i"}, {token.PLUSPLUS, "++"}, {token.PLUS, "+"},
		{token.PLUSPLUS, "++"}, {token.IDENT, "j"},
	})
}

func TestNumbers(t *testing.T) {
	expect(t, "0 42 3.14 0x1F 0b1010 0o17 1e3 2.5e-2", []pair{
		{token.INT, "0"},
		{token.INT, "42"},
		{token.FLOAT, "3.14"},
		{token.INT, "0x1F"},
		{token.INT, "0b1010"},
		{token.INT, "0o17"},
		{token.FLOAT, "1e3"},
		{token.FLOAT, "2.5e-2"},
	})
}

func TestStrings(t *testing.T) {
	expect(t, `"hello" 'world' "a\nb" "tab\there"`, []pair{
		{token.STRING, "hello"},
		{token.STRING, "world"},
		{token.STRING, "a\nb"},
		{token.STRING, "tab\there"},
	})

	// Unterminated strings are illegal.
	got := lexAll(t, `"oops`)
	if len(got) == 0 || got[len(got)-1].Type != token.ILLEGAL {
		t.Fatalf("expected an ILLEGAL token, got %v", got)
	}
}

func TestTemplates(t *testing.T) {
	expect(t, "`one ${x} two`", []pair{
		{token.TEMPLATE, "one ${x} two"},
	})
}

func TestRegexpVersusDivision(t *testing.T) {
	// After an ident, slash is division.
	expect(t, "a / b", []pair{
		{token.IDENT, "a"}, {token.SLASH, "/"}, {token.IDENT, "b"},
	})

	// At expression position, slash opens a regexp; the literal is
	// "pattern/flags".
	expect(t, "x = /ab+c/i;", []pair{
		{token.IDENT, "x"}, {token.ASSIGN, "="},
		{token.REGEXP, "ab+c/i"}, {token.SEMICOLON, ";"},
	})

	expect(t, "(a + b) / c", []pair{
		{token.LPAREN, "("}, {token.IDENT, "a"}, {token.PLUS, "+"},
		{token.IDENT, "b"}, {token.RPAREN, ")"},
		{token.SLASH, "/"}, {token.IDENT, "c"},
	})
}

func TestComments(t *testing.T) {
	expect(t, "a; // trailing\nb; /* block\ncomment */ c;", []pair{
		{token.IDENT, "a"}, {token.SEMICOLON, ";"},
		{token.IDENT, "b"}, {token.SEMICOLON, ";"},
		{token.IDENT, "c"}, {token.SEMICOLON, ";"},
	})
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	expect(t, "class Foo extends $bar { _baz9 }", []pair{
		{token.CLASS, "class"},
		{token.IDENT, "Foo"},
		{token.EXTENDS, "extends"},
		{token.IDENT, "$bar"},
		{token.LBRACE, "{"},
		{token.IDENT, "_baz9"},
		{token.RBRACE, "}"},
	})
}

func TestLineCounting(t *testing.T) {
	l := New("a;\nbb;\n  c;")
	var last token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		last = tok
	}
	if last.Line != 3 {
		t.Fatalf("expected final token on line 3, got %d", last.Line)
	}
}
