// Package lexer contains our lexer.
//
// The lexer returns tokens from a (string) input.  These tokens are then
// parsed as a program to generate an AST, which is used to emit bytecode
// instructions ready for evaluation.
package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mildew-lang/mildew/token"
)

// Lexer holds our object-state.
type Lexer struct {
	// The current character position
	position int

	// The next character position
	readPosition int

	// The current character
	ch rune

	// A rune slice of our input string
	characters []rune

	// Previous token, used to disambiguate "/" between division
	// and the start of a regular-expression literal.
	prevToken token.Token

	// line contains our current line-number
	line int

	// column contains the place within the line where we are.
	column int
}

// New creates a Lexer instance from the given string
func New(input string) *Lexer {

	// Line counting starts at one.
	l := &Lexer{characters: []rune(input), line: 1}
	l.readChar()
	return l
}

// read forward one character.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.characters) {
		l.ch = rune(0)
	} else {
		l.ch = l.characters[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	// Line counting
	if l.ch == rune('\n') {
		l.column = 0
		l.line++
	} else {
		l.column++
	}
}

// peek character
func (l *Lexer) peekChar() rune {
	return l.peekAhead(0)
}

// peek N characters beyond the next one.
func (l *Lexer) peekAhead(n int) rune {
	if l.readPosition+n >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition+n]
}

// NextToken reads and returns the next token, skipping any intervening
// white space, and swallowing any comments, in the process.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token
	l.skipWhitespace()

	// skip single-line comments
	if l.ch == rune('/') && l.peekChar() == rune('/') {
		l.skipLineComment()
		return (l.NextToken())
	}

	// skip multi-line comments
	if l.ch == rune('/') && l.peekChar() == rune('*') {
		err := l.skipBlockComment()
		if err != nil {
			return l.illegal(err.Error())
		}
		return (l.NextToken())
	}

	switch l.ch {

	case rune('&'):
		if l.peekChar() == rune('&') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.ANDEQUALS, 3)
		} else if l.peekChar() == rune('&') {
			tok = l.makeToken(token.AND, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.AMPEQUALS, 2)
		} else {
			tok = l.newToken(token.AMP, l.ch)
		}

	case rune('|'):
		if l.peekChar() == rune('|') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.OREQUALS, 3)
		} else if l.peekChar() == rune('|') {
			tok = l.makeToken(token.OR, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.PIPEEQUALS, 2)
		} else {
			tok = l.newToken(token.PIPE, l.ch)
		}

	case rune('^'):
		if l.peekChar() == rune('=') {
			tok = l.makeToken(token.CARETEQUALS, 2)
		} else {
			tok = l.newToken(token.CARET, l.ch)
		}

	case rune('~'):
		tok = l.newToken(token.TILDE, l.ch)

	case rune('='):
		if l.peekChar() == rune('=') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.STRICTEQ, 3)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.EQ, 2)
		} else {
			tok = l.newToken(token.ASSIGN, l.ch)
		}

	case rune('!'):
		if l.peekChar() == rune('=') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.NOTSTRICTEQ, 3)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.NOTEQ, 2)
		} else {
			tok = l.newToken(token.BANG, l.ch)
		}

	case rune('+'):
		if l.peekChar() == rune('+') {
			tok = l.makeToken(token.PLUSPLUS, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.PLUSEQUALS, 2)
		} else {
			tok = l.newToken(token.PLUS, l.ch)
		}

	case rune('-'):
		if l.peekChar() == rune('-') {
			tok = l.makeToken(token.MINUSMINUS, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.MINUSEQUALS, 2)
		} else {
			tok = l.newToken(token.MINUS, l.ch)
		}

	case rune('*'):
		if l.peekChar() == rune('*') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.POWEQUALS, 3)
		} else if l.peekChar() == rune('*') {
			tok = l.makeToken(token.POW, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.ASTERISKEQUALS, 2)
		} else {
			tok = l.newToken(token.ASTERISK, l.ch)
		}

	case rune('%'):
		if l.peekChar() == rune('=') {
			tok = l.makeToken(token.MODEQUALS, 2)
		} else {
			tok = l.newToken(token.MOD, l.ch)
		}

	case rune('/'):

		// slash is mostly division, but could be the start of a
		// regular-expression literal.
		//
		// We exclude:
		//   ( a + b ) / c   -> RPAREN
		//   a / c           -> IDENT
		//   foo[3] / 3      -> INDEX
		//   3.2 / c         -> FLOAT
		//   1 / c           -> INT
		//
		if l.prevToken.Type == token.RPAREN ||
			l.prevToken.Type == token.IDENT ||
			l.prevToken.Type == token.RSQUARE ||
			l.prevToken.Type == token.THIS ||
			l.prevToken.Type == token.FLOAT ||
			l.prevToken.Type == token.INT {

			if l.peekChar() == rune('=') {
				tok = l.makeToken(token.SLASHEQUALS, 2)
			} else {
				tok = l.newToken(token.SLASH, l.ch)
			}
		} else {
			str, err := l.readRegexp()
			if err != nil {
				return l.illegal(err.Error())
			}
			tok.Column = l.column
			tok.Line = l.line
			tok.Literal = str
			tok.Type = token.REGEXP
			l.prevToken = tok
			return tok
		}

	case rune('<'):
		if l.peekChar() == rune('<') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.LSHIFTEQUALS, 3)
		} else if l.peekChar() == rune('<') {
			tok = l.makeToken(token.LSHIFT, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.LTEQUALS, 2)
		} else {
			tok = l.newToken(token.LT, l.ch)
		}

	case rune('>'):
		if l.peekChar() == rune('>') && l.peekAhead(1) == rune('>') && l.peekAhead(2) == rune('=') {
			tok = l.makeToken(token.URSHIFTEQUALS, 4)
		} else if l.peekChar() == rune('>') && l.peekAhead(1) == rune('>') {
			tok = l.makeToken(token.URSHIFT, 3)
		} else if l.peekChar() == rune('>') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.RSHIFTEQUALS, 3)
		} else if l.peekChar() == rune('>') {
			tok = l.makeToken(token.RSHIFT, 2)
		} else if l.peekChar() == rune('=') {
			tok = l.makeToken(token.GTEQUALS, 2)
		} else {
			tok = l.newToken(token.GT, l.ch)
		}

	case rune('?'):
		if l.peekChar() == rune('?') && l.peekAhead(1) == rune('=') {
			tok = l.makeToken(token.NULLCEQUALS, 3)
		} else if l.peekChar() == rune('?') {
			tok = l.makeToken(token.NULLC, 2)
		} else {
			tok = l.newToken(token.QUESTION, l.ch)
		}

	case rune(':'):
		tok = l.newToken(token.COLON, l.ch)
	case rune(';'):
		tok = l.newToken(token.SEMICOLON, l.ch)
	case rune(','):
		tok = l.newToken(token.COMMA, l.ch)
	case rune('.'):
		tok = l.newToken(token.PERIOD, l.ch)
	case rune('('):
		tok = l.newToken(token.LPAREN, l.ch)
	case rune(')'):
		tok = l.newToken(token.RPAREN, l.ch)
	case rune('{'):
		tok = l.newToken(token.LBRACE, l.ch)
	case rune('}'):
		tok = l.newToken(token.RBRACE, l.ch)
	case rune('['):
		tok = l.newToken(token.LSQUARE, l.ch)
	case rune(']'):
		tok = l.newToken(token.RSQUARE, l.ch)

	case rune('"'), rune('\''):
		str, err := l.readString(l.ch)
		if err != nil {
			return l.illegal(err.Error())
		}
		tok.Column = l.column
		tok.Line = l.line
		tok.Literal = str
		tok.Type = token.STRING

	case rune('`'):

		// A template string is returned as a single raw token;
		// the parser splits out the ${..} interpolations.
		str, err := l.readTemplate()
		if err != nil {
			return l.illegal(err.Error())
		}
		tok.Column = l.column
		tok.Line = l.line
		tok.Literal = str
		tok.Type = token.TEMPLATE

	case rune(0):
		tok.Literal = ""
		tok.Type = token.EOF
		tok.Line = l.line
		tok.Column = l.column

	default:
		if isDigit(l.ch) {
			tok = l.readNumber()
			tok.Column = l.column
			tok.Line = l.line
			l.prevToken = tok
			return tok
		}

		tok.Literal = l.readIdentifier()
		if len(tok.Literal) > 0 {
			tok.Type = token.LookupIdentifier(tok.Literal)
			tok.Column = l.column
			tok.Line = l.line
			l.prevToken = tok
			return tok
		}
		return l.illegal(fmt.Sprintf("invalid character '%c'", l.ch))
	}

	l.readChar()
	l.prevToken = tok
	return tok
}

// return a new single-character token
func (l *Lexer) newToken(tokenType token.Type, ch rune) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

// makeToken consumes `width` characters and returns a token of the
// given type whose literal is the characters consumed.
func (l *Lexer) makeToken(tokenType token.Type, width int) token.Token {
	lit := ""
	for i := 0; i < width; i++ {
		lit += string(l.ch)
		if i < width-1 {
			l.readChar()
		}
	}
	return token.Token{Type: tokenType, Literal: lit, Line: l.line, Column: l.column}
}

// illegal builds an ILLEGAL token carrying the given message, and
// consumes the offending character so we can't loop forever.
func (l *Lexer) illegal(msg string) token.Token {
	tok := token.Token{Type: token.ILLEGAL, Literal: msg, Line: l.line, Column: l.column}
	l.readChar()
	l.prevToken = tok
	return tok
}

// readIdentifier reads an identifier: letters, digits, `_` and `$`,
// with the leading character already known to be non-numeric.
func (l *Lexer) readIdentifier() string {
	id := ""
	for isIdentifier(l.ch) {
		id += string(l.ch)
		l.readChar()
	}
	return id
}

// skip over any white space.
func (l *Lexer) skipWhitespace() {
	for isWhitespace(l.ch) {
		l.readChar()
	}
}

// skip a comment (until the end of the line).
func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != rune(0) {
		l.readChar()
	}
	l.skipWhitespace()
}

// skip a block comment, erroring on EOF.
func (l *Lexer) skipBlockComment() error {
	// swallow "/*"
	l.readChar()
	l.readChar()
	for {
		if l.ch == rune(0) {
			return fmt.Errorf("unterminated block comment")
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return nil
		}
		l.readChar()
	}
}

// readNumber reads an integer or float literal, in decimal, hex (0x),
// binary (0b), or octal (0o) notation.
func (l *Lexer) readNumber() token.Token {

	// Hex, binary, octal.
	if l.ch == '0' &&
		(l.peekChar() == 'x' || l.peekChar() == 'X' ||
			l.peekChar() == 'b' || l.peekChar() == 'B' ||
			l.peekChar() == 'o' || l.peekChar() == 'O') {

		prefix := string(l.ch)
		l.readChar()
		prefix += string(l.ch)
		l.readChar()

		digits := ""
		for isHexDigit(l.ch) {
			digits += string(l.ch)
			l.readChar()
		}
		return token.Token{Type: token.INT, Literal: prefix + digits}
	}

	// Integral part.
	integer := ""
	for isDigit(l.ch) {
		integer += string(l.ch)
		l.readChar()
	}

	// If the next char is a `.` followed by a digit we have a float.
	if l.ch == rune('.') && isDigit(l.peekChar()) {

		// Skip the period
		l.readChar()

		fraction := ""
		for isDigit(l.ch) {
			fraction += string(l.ch)
			l.readChar()
		}

		// Optional exponent.
		if l.ch == 'e' || l.ch == 'E' {
			return l.readExponent(integer + "." + fraction)
		}
		return token.Token{Type: token.FLOAT, Literal: integer + "." + fraction}
	}

	if l.ch == 'e' || l.ch == 'E' {
		return l.readExponent(integer)
	}

	return token.Token{Type: token.INT, Literal: integer}
}

// readExponent consumes "e[+-]?digits" and returns a FLOAT token.
func (l *Lexer) readExponent(mantissa string) token.Token {
	exp := string(l.ch)
	l.readChar()
	if l.ch == '+' || l.ch == '-' {
		exp += string(l.ch)
		l.readChar()
	}
	for isDigit(l.ch) {
		exp += string(l.ch)
		l.readChar()
	}
	return token.Token{Type: token.FLOAT, Literal: mantissa + exp}
}

// readString reads a string, delimited by the given character.
func (l *Lexer) readString(delim rune) (string, error) {
	out := ""

	for {
		l.readChar()

		if l.ch == rune(0) {
			return "", fmt.Errorf("unterminated string")
		}
		if l.ch == delim {
			break
		}
		//
		// Handle \n, \r, \t, \", etc.
		//
		if l.ch == '\\' {

			// Line ending with "\" + newline
			if l.peekChar() == '\n' {
				// consume the newline.
				l.readChar()
				continue
			}

			l.readChar()

			if l.ch == rune(0) {
				return "", fmt.Errorf("unterminated string")
			}
			switch l.ch {
			case rune('n'):
				l.ch = '\n'
			case rune('r'):
				l.ch = '\r'
			case rune('t'):
				l.ch = '\t'
			case rune('0'):
				l.ch = 0
			}
		}
		out = out + string(l.ch)

	}

	return out, nil
}

// readTemplate reads a backtick-delimited template string, returning
// the raw body.  Escapes are left in place for `${` so the parser can
// distinguish literal text from interpolations.
func (l *Lexer) readTemplate() (string, error) {
	out := ""

	for {
		l.readChar()

		if l.ch == rune(0) {
			return "", fmt.Errorf("unterminated template string")
		}
		if l.ch == '`' {
			break
		}
		if l.ch == '\\' {
			l.readChar()
			if l.ch == rune(0) {
				return "", fmt.Errorf("unterminated template string")
			}
			switch l.ch {
			case rune('n'):
				l.ch = '\n'
			case rune('r'):
				l.ch = '\r'
			case rune('t'):
				l.ch = '\t'
			case rune('$'):
				// Keep the escape so the parser doesn't
				// treat it as an interpolation-marker.
				out += "\\"
			}
		}
		out = out + string(l.ch)
	}

	return out, nil
}

// readRegexp reads a regexp-literal, including flags.
func (l *Lexer) readRegexp() (string, error) {
	out := ""

	for {
		l.readChar()

		if l.ch == rune(0) || l.ch == '\n' {
			return "", fmt.Errorf("unterminated regular expression")
		}
		if l.ch == '/' {

			// consume the terminating "/".
			l.readChar()

			// collect any flags
			flags := ""
			for unicode.IsLetter(l.ch) {
				if !strings.ContainsRune(flags, l.ch) {
					flags += string(l.ch)
				}
				l.readChar()
			}

			// The pattern and flags are separated by the
			// delimiter, which cannot occur in the flags.
			out = out + "/" + flags
			break
		}
		if l.ch == '\\' {
			// Keep the escape-marker and the escaped
			// character literally.
			out += string(l.ch)
			l.readChar()
			if l.ch == rune(0) {
				return "", fmt.Errorf("unterminated regular expression")
			}
		}
		out = out + string(l.ch)
	}

	return out, nil
}

// determine whether ch may appear in an identifier.
func isIdentifier(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '$' || ch == '_'
}

// is white space
func isWhitespace(ch rune) bool {
	return ch == rune(' ') || ch == rune('\t') || ch == rune('\n') || ch == rune('\r')
}

// is Digit
func isDigit(ch rune) bool {
	return rune('0') <= ch && ch <= rune('9')
}

// is a hex digit (covers binary and octal digits too).
func isHexDigit(ch rune) bool {
	return isDigit(ch) ||
		(rune('a') <= ch && ch <= rune('f')) ||
		(rune('A') <= ch && ch <= rune('F'))
}
