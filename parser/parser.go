// Package parser consumes tokens from the lexer and returns a
// program as a set of AST-nodes.
//
// Later we walk the AST tree and generate a series of bytecode
// instructions.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mildew-lang/mildew/ast"
	"github.com/mildew-lang/mildew/lexer"
	"github.com/mildew-lang/mildew/token"
)

// prefix parse function
// infix parse function
type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Here we define values for precedence, lowest to highest.
const (
	_ int = iota
	LOWEST
	ASSIGN      // = += ... ??=
	TERNARY     // ? :
	NULLC       // ??
	CONDOR      // ||
	CONDAND     // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALS      // == != === !==
	LESSGREATER // < <= > >= instanceof
	SHIFT       // << >> >>>
	SUM         // + -
	PRODUCT     // * / %
	POWER       // **
	PREFIX      // -x !x ~x typeof x ++x
	CALL        // f(x), new F(x)
	INDEX       // a[i], a.b
)

// precedences contains the precedence for each token-type, which
// is part of the magic of a Pratt-Parser.
var precedences = map[token.Type]int{
	token.ASSIGN:         ASSIGN,
	token.PLUSEQUALS:     ASSIGN,
	token.MINUSEQUALS:    ASSIGN,
	token.ASTERISKEQUALS: ASSIGN,
	token.SLASHEQUALS:    ASSIGN,
	token.MODEQUALS:      ASSIGN,
	token.POWEQUALS:      ASSIGN,
	token.AMPEQUALS:      ASSIGN,
	token.PIPEEQUALS:     ASSIGN,
	token.CARETEQUALS:    ASSIGN,
	token.LSHIFTEQUALS:   ASSIGN,
	token.RSHIFTEQUALS:   ASSIGN,
	token.URSHIFTEQUALS:  ASSIGN,
	token.ANDEQUALS:      ASSIGN,
	token.OREQUALS:       ASSIGN,
	token.NULLCEQUALS:    ASSIGN,
	token.QUESTION:       TERNARY,
	token.NULLC:          NULLC,
	token.OR:             CONDOR,
	token.AND:            CONDAND,
	token.PIPE:           BITOR,
	token.CARET:          BITXOR,
	token.AMP:            BITAND,
	token.EQ:             EQUALS,
	token.NOTEQ:          EQUALS,
	token.STRICTEQ:       EQUALS,
	token.NOTSTRICTEQ:    EQUALS,
	token.LT:             LESSGREATER,
	token.LTEQUALS:       LESSGREATER,
	token.GT:             LESSGREATER,
	token.GTEQUALS:       LESSGREATER,
	token.INSTANCEOF:     LESSGREATER,
	token.LSHIFT:         SHIFT,
	token.RSHIFT:         SHIFT,
	token.URSHIFT:        SHIFT,
	token.PLUS:           SUM,
	token.MINUS:          SUM,
	token.ASTERISK:       PRODUCT,
	token.SLASH:          PRODUCT,
	token.MOD:            PRODUCT,
	token.POW:            POWER,
	token.LPAREN:         CALL,
	token.LSQUARE:        INDEX,
	token.PERIOD:         INDEX,
}

// Parser is the object which maintains our parser state.
type Parser struct {
	// l is our lexer
	l *lexer.Lexer

	// curToken holds the current token from our lexer.
	curToken token.Token

	// peekToken holds the next token which will come from the lexer.
	peekToken token.Token

	// errors holds parsing-errors.
	errors []string

	// errorTokens holds the token at which each error was noticed,
	// so callers can report a position.
	errorTokens []token.Token

	// prefixParseFns holds a map of parsing methods for
	// prefix-based syntax.
	prefixParseFns map[token.Type]prefixParseFn

	// infixParseFns holds a map of parsing methods for
	// infix-based syntax.
	infixParseFns map[token.Type]infixParseFn
}

// New returns a new parser.
//
// Once constructed it can be used to parse an input-program
// into an AST.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}
	p.nextToken()
	p.nextToken()

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TEMPLATE, p.parseTemplateLiteral)
	p.registerPrefix(token.REGEXP, p.parseRegexpLiteral)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.NULL, p.parseNullLiteral)
	p.registerPrefix(token.UNDEFINED, p.parseUndefinedLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.PLUS, p.parsePrefixExpression)
	p.registerPrefix(token.TILDE, p.parsePrefixExpression)
	p.registerPrefix(token.TYPEOF, p.parsePrefixExpression)
	p.registerPrefix(token.DELETE, p.parsePrefixExpression)
	p.registerPrefix(token.PLUSPLUS, p.parsePrefixExpression)
	p.registerPrefix(token.MINUSMINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LSQUARE, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseObjectLiteral)
	p.registerPrefix(token.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(token.CLASS, p.parseClassLiteral)
	p.registerPrefix(token.NEW, p.parseNewExpression)
	p.registerPrefix(token.THIS, p.parseThisExpression)
	p.registerPrefix(token.SUPER, p.parseSuperExpression)
	p.registerPrefix(token.YIELD, p.parseYieldExpression)
	p.registerPrefix(token.ILLEGAL, p.parseIllegal)
	p.registerPrefix(token.EOF, p.parseEOF)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH,
		token.MOD, token.POW, token.LT, token.LTEQUALS, token.GT,
		token.GTEQUALS, token.EQ, token.NOTEQ, token.STRICTEQ,
		token.NOTSTRICTEQ, token.AMP, token.PIPE, token.CARET,
		token.LSHIFT, token.RSHIFT, token.URSHIFT, token.AND,
		token.OR, token.NULLC, token.INSTANCEOF,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	for _, t := range []token.Type{
		token.ASSIGN, token.PLUSEQUALS, token.MINUSEQUALS,
		token.ASTERISKEQUALS, token.SLASHEQUALS, token.MODEQUALS,
		token.POWEQUALS, token.AMPEQUALS, token.PIPEEQUALS,
		token.CARETEQUALS, token.LSHIFTEQUALS, token.RSHIFTEQUALS,
		token.URSHIFTEQUALS, token.ANDEQUALS, token.OREQUALS,
		token.NULLCEQUALS,
	} {
		p.registerInfix(t, p.parseAssignExpression)
	}
	p.registerInfix(token.QUESTION, p.parseTernaryExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LSQUARE, p.parseIndexExpression)
	p.registerInfix(token.PERIOD, p.parseMemberExpression)

	return p
}

// registerPrefix registers a function for handling prefix-based syntax.
func (p *Parser) registerPrefix(tokenType token.Type, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix registers a function for handling infix-based syntax.
func (p *Parser) registerInfix(tokenType token.Type, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// Errors returns stored errors.
func (p *Parser) Errors() []string {
	return p.errors
}

// addError appends a positioned parse error.
func (p *Parser) addError(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
	p.errorTokens = append(p.errorTokens, p.curToken)
}

// FirstErrorPosition returns the line and column of the first parse
// error, or zeroes when parsing succeeded.
func (p *Parser) FirstErrorPosition() (int, int) {
	if len(p.errorTokens) == 0 {
		return 0, 0
	}
	return p.errorTokens[0].Line, p.errorTokens[0].Column
}

// peekError raises an error if the next token is not the expected type.
func (p *Parser) peekError(t token.Type) {
	p.addError("expected next token to be %s, got %s instead around %s",
		t, p.peekToken.Type, p.peekToken.Position())
}

// nextToken moves to our next token from the lexer.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Parse is the main public-facing method to parse an input program.
//
// It will return any error encountered in parsing the input, but to
// avoid confusion it will only return the first error.
func (p *Parser) Parse() (*ast.Program, error) {
	a := p.ParseProgram()
	if len(p.errors) == 0 {
		return a, nil
	}
	return a, fmt.Errorf("%s", p.errors[0])
}

// ParseProgram is used to parse the whole program.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Statements = []ast.Statement{}
	for p.curToken.Type != token.EOF && p.curToken.Type != token.ILLEGAL {
		stmt := p.parseStatement()
		if stmt == nil {
			if len(p.errors) == 0 {
				p.addError("unexpected nil statement around %s", p.curToken.Position())
			}
			return program
		}
		program.Statements = append(program.Statements, stmt)
		p.nextToken()
	}

	if p.curToken.Type == token.ILLEGAL {
		p.addError("%s around %s", p.curToken.Literal, p.curToken.Position())
	}
	return program
}

// parseStatement parses a single statement.
func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.VAR, token.LET, token.CONST:
		return p.parseVarStatement()
	case token.FUNCTION:
		// A named function at statement-level is a declaration;
		// an anonymous one is an expression-statement.
		if p.peekTokenIs(token.IDENT) {
			return p.parseFunctionDeclaration()
		}
		return p.parseExpressionStatement()
	case token.CLASS:
		if p.peekTokenIs(token.IDENT) {
			return p.parseClassDeclaration()
		}
		return p.parseExpressionStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.DO:
		return p.parseDoWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		return stmt
	case token.SWITCH:
		return p.parseSwitchStatement()
	case token.TRY:
		return p.parseTryStatement()
	case token.THROW:
		return p.parseThrowStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	case token.SEMICOLON:
		// empty statement
		return &ast.ExpressionStatement{Token: p.curToken}
	default:
		return p.parseExpressionStatement()
	}
}

// parseVarStatement parses `var|let|const a = 1, b;`.
func (p *Parser) parseVarStatement() ast.Statement {
	stmt := &ast.VarStatement{Token: p.curToken}
	switch p.curToken.Type {
	case token.LET:
		stmt.Kind = ast.DeclLet
	case token.CONST:
		stmt.Kind = ast.DeclConst
	default:
		stmt.Kind = ast.DeclVar
	}

	for {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		decl := ast.VarDeclarator{
			Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal},
		}

		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			decl.Value = p.parseExpression(LOWEST)
			if decl.Value == nil {
				return nil
			}
		} else if stmt.Kind == ast.DeclConst {
			p.addError("missing initializer in const declaration around %s", p.curToken.Position())
			return nil
		}
		stmt.Decls = append(stmt.Decls, decl)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseFunctionDeclaration parses `function name(args) { .. }` as a
// statement, which behaves exactly like `let name = function ..`.
func (p *Parser) parseFunctionDeclaration() ast.Statement {
	tok := p.curToken
	fn, ok := p.parseFunctionLiteral().(*ast.FunctionLiteral)
	if !ok || fn == nil {
		return nil
	}
	return &ast.VarStatement{
		Token: tok,
		Kind:  ast.DeclLet,
		Decls: []ast.VarDeclarator{
			{Name: &ast.Identifier{Token: tok, Value: fn.Name}, Value: fn},
		},
	}
}

// parseClassDeclaration parses `class Name .. { .. }` as a statement.
func (p *Parser) parseClassDeclaration() ast.Statement {
	tok := p.curToken
	cl, ok := p.parseClassLiteral().(*ast.ClassLiteral)
	if !ok || cl == nil {
		return nil
	}
	return &ast.VarStatement{
		Token: tok,
		Kind:  ast.DeclLet,
		Decls: []ast.VarDeclarator{
			{Name: &ast.Identifier{Token: tok, Value: cl.Name}, Value: cl},
		},
	}
}

// parseReturnStatement parses a return-statement.
func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.ReturnValue = p.parseExpression(LOWEST)
	if stmt.ReturnValue == nil {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseIfStatement parses if/else, with blocks or single statements.
func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Consequence = p.parseStatement()
	if stmt.Consequence == nil {
		return nil
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseStatement()
		if stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

// parseWhileStatement parses a while-loop.
func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseDoWhileStatement parses `do stmt while (cond);`.
func (p *Parser) parseDoWhileStatement() ast.Statement {
	stmt := &ast.DoWhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	if !p.expectPeek(token.WHILE) {
		return nil
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseForStatement disambiguates the three for-loop flavours:
// `for (init; cond; post)`, `for (x in E)`, `for (x of E)`.
func (p *Parser) parseForStatement() ast.Statement {
	forTok := p.curToken
	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	// A declaration keyword, or a bare identifier, may open either
	// flavour; look ahead for `in`/`of` and rewind if we guessed
	// wrong.
	save := *p
	saveLexer := *p.l

	kind := ast.DeclLet
	if p.peekTokenIs(token.VAR) || p.peekTokenIs(token.LET) || p.peekTokenIs(token.CONST) {
		p.nextToken()
		switch p.curToken.Type {
		case token.VAR:
			kind = ast.DeclVar
		case token.CONST:
			kind = ast.DeclConst
		}
	}

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		identTok := p.curToken

		if p.peekTokenIs(token.IN) || p.peekTokenIs(token.OF) ||
			p.peekTokenIs(token.COMMA) {
			return p.parseForInStatement(forTok, kind, identTok)
		}
	}

	// Not a for-in/of; rewind and parse the classic three clauses.
	*p = save
	*p.l = saveLexer

	stmt := &ast.ForStatement{Token: forTok}

	// Init clause.
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	} else {
		p.nextToken()
		stmt.Init = p.parseStatement()
		if stmt.Init == nil {
			return nil
		}
	}

	// Condition clause.
	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Condition = p.parseExpression(LOWEST)
		if stmt.Condition == nil {
			return nil
		}
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}

	// Post clause.
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Post = p.parseExpression(LOWEST)
		if stmt.Post == nil {
			return nil
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseForInStatement continues a for-in/of parse with the cursor on
// the first bound identifier.
func (p *Parser) parseForInStatement(forTok token.Token, kind ast.DeclarationKind, first token.Token) ast.Statement {
	stmt := &ast.ForInStatement{Token: forTok, Kind: kind, Value: first.Literal}

	// Optional second name: the first becomes the key.
	if p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Key = first.Literal
		stmt.Value = p.curToken.Literal
	}

	if p.peekTokenIs(token.OF) {
		stmt.Of = true
	} else if !p.peekTokenIs(token.IN) {
		p.peekError(token.IN)
		return nil
	}
	p.nextToken()

	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if stmt.Iterable == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Body = p.parseStatement()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseSwitchStatement handles a switch statement.
func (p *Parser) parseSwitchStatement() ast.Statement {
	stmt := &ast.SwitchStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	defaults := 0
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.addError("unterminated switch statement")
			return nil
		}

		clause := &ast.CaseClause{Token: p.curToken}
		switch p.curToken.Type {
		case token.DEFAULT:
			clause.Default = true
			defaults++
		case token.CASE:
			p.nextToken()
			clause.Expr = p.parseExpression(LOWEST)
			if clause.Expr == nil {
				return nil
			}
		default:
			p.addError("expected case|default, got %s around %s",
				p.curToken.Type, p.curToken.Position())
			return nil
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()

		// The arm body runs until the next case/default/closing
		// brace.
		for !p.curTokenIs(token.CASE) && !p.curTokenIs(token.DEFAULT) &&
			!p.curTokenIs(token.RBRACE) {
			if p.curTokenIs(token.EOF) {
				p.addError("unterminated switch statement")
				return nil
			}
			s := p.parseStatement()
			if s == nil {
				return nil
			}
			clause.Body = append(clause.Body, s)
			p.nextToken()
		}

		stmt.Choices = append(stmt.Choices, clause)
	}

	if defaults > 1 {
		p.addError("a switch statement may only have one default block")
		return nil
	}
	return stmt
}

// parseTryStatement parses try/catch/finally.
func (p *Parser) parseTryStatement() ast.Statement {
	stmt := &ast.TryStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Block = p.parseBlockStatement()
	if stmt.Block == nil {
		return nil
	}

	if p.peekTokenIs(token.CATCH) {
		p.nextToken()
		if p.peekTokenIs(token.LPAREN) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.CatchName = p.curToken.Literal
			if !p.expectPeek(token.RPAREN) {
				return nil
			}
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.CatchBlock = p.parseBlockStatement()
		if stmt.CatchBlock == nil {
			return nil
		}
	}

	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.FinallyBlock = p.parseBlockStatement()
		if stmt.FinallyBlock == nil {
			return nil
		}
	}

	if stmt.CatchBlock == nil && stmt.FinallyBlock == nil {
		p.addError("try requires a catch or finally block around %s", stmt.Token.Position())
		return nil
	}
	return stmt
}

// parseThrowStatement parses `throw expr;`.
func (p *Parser) parseThrowStatement() ast.Statement {
	stmt := &ast.ThrowStatement{Token: p.curToken}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseExpressionStatement parses an expression used as a statement.
func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseExpression is the Pratt-parser core.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError("no prefix parse function for %s found around %s",
			p.curToken.Type, p.curToken.Position())
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	// postfix ++ / --
	if p.peekTokenIs(token.PLUSPLUS) || p.peekTokenIs(token.MINUSMINUS) {
		if isAssignable(leftExp) {
			p.nextToken()
			leftExp = &ast.PostfixExpression{
				Token:    p.curToken,
				Left:     leftExp,
				Operator: p.curToken.Literal,
			}
		}
	}
	return leftExp
}

// isAssignable reports whether an expression may be an assignment (or
// increment) target.
func isAssignable(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.MemberExpression, *ast.IndexExpression:
		return true
	}
	return false
}

// parseIllegal reports an error that we found an illegal token.
func (p *Parser) parseIllegal() ast.Expression {
	p.addError("%s around %s", p.curToken.Literal, p.curToken.Position())
	return nil
}

// parseEOF reports an error if we hit an unexpected end of file.
func (p *Parser) parseEOF() ast.Expression {
	p.addError("unexpected end of file reached")
	return nil
}

// parseIdentifier parses an identifier.
func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

// parseIntegerLiteral parses an integer literal, in any of the
// supported bases.
func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	// base-prefix handling (0x/0b/0o) is done by ParseInt itself.
	value, err := strconv.ParseInt(p.curToken.Literal, 0, 64)
	if err != nil {
		p.addError("could not parse %q as integer around %s",
			p.curToken.Literal, p.curToken.Position())
		return nil
	}
	lit.Value = value
	return lit
}

// parseFloatLiteral parses a float-literal.
func (p *Parser) parseFloatLiteral() ast.Expression {
	flo := &ast.FloatLiteral{Token: p.curToken}
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError("could not parse %q as float around %s",
			p.curToken.Literal, p.curToken.Position())
		return nil
	}
	flo.Value = value
	return flo
}

// parseStringLiteral parses a string-literal.
func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

// parseTemplateLiteral splits the raw backtick body into literal
// segments and `${..}` interpolations, each parsed as an expression.
func (p *Parser) parseTemplateLiteral() ast.Expression {
	tl := &ast.TemplateLiteral{Token: p.curToken}
	raw := p.curToken.Literal

	lit := ""
	i := 0
	for i < len(raw) {
		// An escaped dollar stays literal.
		if raw[i] == '\\' && i+1 < len(raw) && raw[i+1] == '$' {
			lit += "$"
			i += 2
			continue
		}
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {

			// Find the matching close-brace.
			depth := 1
			j := i + 2
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth != 0 {
				p.addError("unterminated ${ in template string around %s",
					p.curToken.Position())
				return nil
			}

			if lit != "" {
				tl.Parts = append(tl.Parts, &ast.StringLiteral{Token: p.curToken, Value: lit})
				lit = ""
			}

			// Parse the interpolation with a fresh parser.
			src := raw[i+2 : j-1]
			sub := New(lexer.New(src))
			expr := sub.parseExpression(LOWEST)
			if expr == nil || len(sub.errors) > 0 {
				p.addError("invalid template interpolation %q around %s",
					src, p.curToken.Position())
				return nil
			}
			tl.Parts = append(tl.Parts, expr)
			i = j
			continue
		}
		lit += string(raw[i])
		i++
	}
	if lit != "" || len(tl.Parts) == 0 {
		tl.Parts = append(tl.Parts, &ast.StringLiteral{Token: p.curToken, Value: lit})
	}
	return tl
}

// parseRegexpLiteral parses a regular-expression literal.  The lexer
// hands us "pattern/flags"; the final slash is the separator.
func (p *Parser) parseRegexpLiteral() ast.Expression {
	raw := p.curToken.Literal
	idx := strings.LastIndex(raw, "/")
	if idx < 0 {
		p.addError("malformed regexp literal around %s", p.curToken.Position())
		return nil
	}
	return &ast.RegexpLiteral{
		Token:   p.curToken,
		Pattern: raw[:idx],
		Flags:   raw[idx+1:],
	}
}

// parseBooleanLiteral parses a boolean token.
func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

// parseNullLiteral parses `null`.
func (p *Parser) parseNullLiteral() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

// parseUndefinedLiteral parses `undefined`.
func (p *Parser) parseUndefinedLiteral() ast.Expression {
	return &ast.UndefinedLiteral{Token: p.curToken}
}

// parsePrefixExpression parses a prefix-based expression.
func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}
	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}

	switch expression.Operator {
	case "++", "--":
		if !isAssignable(expression.Right) {
			p.addError("invalid %s target around %s",
				expression.Operator, expression.Token.Position())
			return nil
		}
	case "delete":
		switch expression.Right.(type) {
		case *ast.MemberExpression, *ast.IndexExpression:
		default:
			p.addError("delete requires a member expression around %s",
				expression.Token.Position())
			return nil
		}
	}
	return expression
}

// parseInfixExpression parses an infix-based expression.
func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}

	precedence := p.curPrecedence()
	// ** is right-associative.
	if p.curTokenIs(token.POW) {
		precedence--
	}
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}
	return expression
}

// parseAssignExpression parses simple and compound assignment; the
// value is parsed right-associatively.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	expression := &ast.AssignExpression{
		Token:    p.curToken,
		Target:   left,
		Operator: p.curToken.Literal,
	}

	simple := expression.Operator == "="
	switch left.(type) {
	case *ast.Identifier, *ast.MemberExpression, *ast.IndexExpression:
	case *ast.ArrayLiteral, *ast.ObjectLiteral:
		// Destructuring patterns are only valid for plain `=`.
		if !simple {
			p.addError("invalid destructuring assignment around %s",
				p.curToken.Position())
			return nil
		}
	default:
		p.addError("invalid assignment target around %s", p.curToken.Position())
		return nil
	}

	p.nextToken()
	expression.Value = p.parseExpression(ASSIGN - 1)
	if expression.Value == nil {
		return nil
	}
	return expression
}

// parseTernaryExpression parses `cond ? a : b`.
func (p *Parser) parseTernaryExpression(condition ast.Expression) ast.Expression {
	expression := &ast.TernaryExpression{
		Token:     p.curToken,
		Condition: condition,
	}
	p.nextToken() // skip the '?'
	expression.IfTrue = p.parseExpression(TERNARY - 1)
	if expression.IfTrue == nil {
		return nil
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	p.nextToken()
	expression.IfFalse = p.parseExpression(TERNARY - 1)
	if expression.IfFalse == nil {
		return nil
	}
	return expression
}

// parseGroupedExpression parses a parenthesised expression.
func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

// parseArrayLiteral parses an array literal.
func (p *Parser) parseArrayLiteral() ast.Expression {
	array := &ast.ArrayLiteral{Token: p.curToken}
	array.Elements = p.parseExpressionList(token.RSQUARE)
	if array.Elements == nil && len(p.errors) > 0 {
		return nil
	}
	return array
}

// parseObjectLiteral parses `{k: v, get k() {..}, set k(v) {..},
// m() {..}}`, preserving source order.
func (p *Parser) parseObjectLiteral() ast.Expression {
	obj := &ast.ObjectLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()

		kind := ast.PropertyNormal
		if (p.curTokenIs(token.IDENT)) &&
			(p.curToken.Literal == "get" || p.curToken.Literal == "set") &&
			!p.peekTokenIs(token.COLON) && !p.peekTokenIs(token.COMMA) &&
			!p.peekTokenIs(token.LPAREN) {
			if p.curToken.Literal == "get" {
				kind = ast.PropertyGet
			} else {
				kind = ast.PropertySet
			}
			p.nextToken()
		}

		key, ok := p.parsePropertyKey()
		if !ok {
			return nil
		}

		var value ast.Expression
		switch {
		case kind != ast.PropertyNormal:
			// accessor: parameter list + body
			value = p.parseMethodBody(key)
		case p.peekTokenIs(token.LPAREN):
			// method shorthand
			value = p.parseMethodBody(key)
		case p.peekTokenIs(token.COMMA) || p.peekTokenIs(token.RBRACE):
			// shorthand `{a, b}`
			value = &ast.Identifier{Token: p.curToken, Value: key}
		case p.peekTokenIs(token.ASSIGN):
			// shorthand-with-default, as used in destructuring
			// patterns: `{a = 1} = obj`.
			p.nextToken()
			p.nextToken()
			def := p.parseExpression(ASSIGN)
			if def == nil {
				return nil
			}
			value = &ast.AssignExpression{
				Token:    p.curToken,
				Target:   &ast.Identifier{Token: p.curToken, Value: key},
				Operator: "=",
				Value:    def,
			}
		default:
			if !p.expectPeek(token.COLON) {
				return nil
			}
			p.nextToken()
			value = p.parseExpression(LOWEST)
		}
		if value == nil {
			return nil
		}
		obj.Properties = append(obj.Properties, ast.Property{Key: key, Value: value, Kind: kind})

		if !p.peekTokenIs(token.RBRACE) && !p.expectPeek(token.COMMA) {
			return nil
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return obj
}

// parsePropertyKey accepts identifier, string, and integer keys.
func (p *Parser) parsePropertyKey() (string, bool) {
	switch p.curToken.Type {
	case token.IDENT, token.STRING, token.INT:
		return p.curToken.Literal, true
	default:
		// keywords are fine as property names too.
		if len(p.curToken.Literal) > 0 && token.LookupIdentifier(p.curToken.Literal) == p.curToken.Type {
			return p.curToken.Literal, true
		}
	}
	p.addError("invalid property key %s around %s", p.curToken.Type, p.curToken.Position())
	return "", false
}

// parseMethodBody parses `(params) { body }` following a method or
// accessor name, returning a function literal.
func (p *Parser) parseMethodBody(name string) ast.Expression {
	fn := &ast.FunctionLiteral{Token: p.curToken, Name: name}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	fn.Parameters = p.parseFunctionParameters()
	if fn.Parameters == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	if fn.Body == nil {
		return nil
	}
	return fn
}

// parseFunctionLiteral parses `function [name](params) { body }`.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	fn := &ast.FunctionLiteral{Token: p.curToken}

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		fn.Name = p.curToken.Literal
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	fn.Parameters = p.parseFunctionParameters()
	if fn.Parameters == nil {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	if fn.Body == nil {
		return nil
	}
	return fn
}

// parseFunctionParameters parses the parameters used for a function.
func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	identifiers := make([]*ast.Identifier, 0)

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return identifiers
	}
	p.nextToken()

	for !p.curTokenIs(token.RPAREN) {
		if p.curTokenIs(token.EOF) {
			p.addError("unterminated function parameters")
			return nil
		}
		if !p.curTokenIs(token.IDENT) {
			p.addError("expected parameter name, got %s around %s",
				p.curToken.Type, p.curToken.Position())
			return nil
		}
		identifiers = append(identifiers,
			&ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
		p.nextToken()
		if p.curTokenIs(token.COMMA) {
			p.nextToken()
		}
	}
	return identifiers
}

// parseClassLiteral parses `class [Name] [extends Base] { body }`.
func (p *Parser) parseClassLiteral() ast.Expression {
	cl := &ast.ClassLiteral{Token: p.curToken}

	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		cl.Name = p.curToken.Literal
	}
	if p.peekTokenIs(token.EXTENDS) {
		p.nextToken()
		p.nextToken()
		cl.Base = p.parseExpression(CALL)
		if cl.Base == nil {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		if p.curTokenIs(token.EOF) {
			p.addError("unterminated class body")
			return nil
		}
		if p.curTokenIs(token.SEMICOLON) {
			continue
		}

		static := false
		if p.curTokenIs(token.IDENT) && p.curToken.Literal == "static" &&
			!p.peekTokenIs(token.LPAREN) {
			static = true
			p.nextToken()
		}

		kind := ast.PropertyNormal
		if p.curTokenIs(token.IDENT) &&
			(p.curToken.Literal == "get" || p.curToken.Literal == "set") &&
			!p.peekTokenIs(token.LPAREN) {
			if p.curToken.Literal == "get" {
				kind = ast.PropertyGet
			} else {
				kind = ast.PropertySet
			}
			p.nextToken()
		}

		key, ok := p.parsePropertyKey()
		if !ok {
			return nil
		}

		// Static fields: `static name = expr;`
		if static && kind == ast.PropertyNormal && p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(ASSIGN)
			if value == nil {
				return nil
			}
			if !p.expectPeek(token.SEMICOLON) {
				return nil
			}
			cl.Statics = append(cl.Statics, ast.Property{Key: key, Value: value})
			continue
		}

		fn := p.parseMethodBody(key)
		if fn == nil {
			return nil
		}

		prop := ast.Property{Key: key, Value: fn, Kind: kind}
		switch {
		case static:
			cl.Statics = append(cl.Statics, prop)
		case kind == ast.PropertyGet:
			cl.Getters = append(cl.Getters, prop)
		case kind == ast.PropertySet:
			cl.Setters = append(cl.Setters, prop)
		case key == "constructor":
			cl.Constructor = fn.(*ast.FunctionLiteral)
		default:
			cl.Methods = append(cl.Methods, prop)
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return cl
}

// parseNewExpression parses `new Callee(args)`.
func (p *Parser) parseNewExpression() ast.Expression {
	ne := &ast.NewExpression{Token: p.curToken}
	p.nextToken()

	// Parse the callee at a precedence which binds member access
	// but not the call-parens.
	ne.Callee = p.parseExpression(CALL)
	if ne.Callee == nil {
		return nil
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	ne.Arguments = p.parseExpressionList(token.RPAREN)
	if ne.Arguments == nil && len(p.errors) > 0 {
		return nil
	}
	return ne
}

// parseThisExpression parses `this`.
func (p *Parser) parseThisExpression() ast.Expression {
	return &ast.ThisExpression{Token: p.curToken}
}

// parseSuperExpression parses `super`.
func (p *Parser) parseSuperExpression() ast.Expression {
	return &ast.SuperExpression{Token: p.curToken}
}

// parseYieldExpression parses `yield` and `yield expr`.
func (p *Parser) parseYieldExpression() ast.Expression {
	ye := &ast.YieldExpression{Token: p.curToken}
	if p.peekTokenIs(token.SEMICOLON) || p.peekTokenIs(token.RPAREN) ||
		p.peekTokenIs(token.COMMA) || p.peekTokenIs(token.RBRACE) {
		return ye
	}
	p.nextToken()
	ye.Value = p.parseExpression(ASSIGN)
	if ye.Value == nil {
		return nil
	}
	return ye
}

// parseCallExpression parses a function-call expression.
func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Function: function}
	exp.Arguments = p.parseExpressionList(token.RPAREN)
	if exp.Arguments == nil && len(p.errors) > 0 {
		return nil
	}
	return exp
}

// parseIndexExpression parses `a[i]`.
func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RSQUARE) {
		return nil
	}
	return exp
}

// parseMemberExpression parses `a.b`.
func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	exp := &ast.MemberExpression{Token: p.curToken, Object: left}
	p.nextToken()
	if !p.curTokenIs(token.IDENT) &&
		token.LookupIdentifier(p.curToken.Literal) != p.curToken.Type {
		p.addError("expected property name, got %s around %s",
			p.curToken.Type, p.curToken.Position())
		return nil
	}
	exp.Property = p.curToken.Literal
	return exp
}

// parseExpressionList parses a comma-separated list of expressions,
// as used for call arguments and array literals.
func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	list := make([]ast.Expression, 0)
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()

	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	list = append(list, first)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()

		ent := p.parseExpression(LOWEST)
		if ent == nil {
			return nil
		}
		list = append(list, ent)
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}

// parseBlockStatement parses a `{ .. }` block.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) || p.curTokenIs(token.ILLEGAL) {
			p.addError("incomplete block statement")
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		p.nextToken()
	}
	return block
}

// curTokenIs tests if the current token has the given type.
func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

// peekTokenIs tests if the next token has the given type.
func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// expectPeek validates the next token is of the given type,
// and advances if so.  If it is not, an error is stored.
func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// peekPrecedence looks up the next token precedence.
func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// curPrecedence looks up the current token precedence.
func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}
