// This file contains the code which walks the AST, which was created
// by the parser, and generates our bytecode-program, along with the
// appropriate constants.

package mildew

import (
	"fmt"
	"strings"

	"github.com/mildew-lang/mildew/ast"
	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/lexer"
	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/parser"
	"github.com/mildew-lang/mildew/program"
)

// breakableKind distinguishes the constructs a `break` may target.
type breakableKind int

const (
	breakableLoop breakableKind = iota
	breakableSwitch
)

// breakable tracks one enclosing loop or switch during compilation:
// the jump targets, the scope depth break/continue must unwind to,
// and the height of the try stack at entry (so jumps out of a try
// pop its try-data and run its finally body first).
type breakable struct {
	kind breakableKind

	// breakPatches and continuePatches hold GOTO offsets awaiting
	// their final target.
	breakPatches    []int
	continuePatches []int

	// continueTarget is the absolute continue target when it is
	// already known (while-loops); -1 means patch later.
	continueTarget int

	scopeDepth int
	tryDepth   int
}

// tryContext is one entry of the compiler's try stack: a jump leaving
// the protected region must pop the try-data, and run the finally
// body when there is one.
type tryContext struct {
	finally *ast.BlockStatement
}

// compiler holds the state of one compilation unit.  The constant
// pool is shared by every function compiled; the instruction buffer
// and line list are per-function, swapped out while a nested function
// body is compiled.
type compiler struct {
	constants  []object.Object
	constIndex map[object.HashKey]int

	ins    code.Instructions
	lines  []object.LineEntry
	lastOp code.Opcode

	scopeDepth int
	tries      []tryContext
	breakables []*breakable

	// funcDepth is zero while compiling top-level code, where
	// expression-statement results feed the program result slot.
	funcDepth int

	// superDepth is positive inside class bodies that have a base
	// class, making `super` legal.
	superDepth int

	// tmpCount generates hidden names for compiler temporaries.
	tmpCount int
}

// Compile turns source text into a program: the shared constant
// table, the main function, and the debug map.
func Compile(source string) (*program.Program, error) {
	p := parser.New(lexer.New(source))
	prog, err := p.Parse()
	if err != nil {
		line, col := p.FirstErrorPosition()
		return nil, &CompileError{Line: line, Column: col, Message: err.Error()}
	}

	c := &compiler{constIndex: make(map[object.HashKey]int)}

	// Slot 0 of the main stack collects the value of the last
	// top-level expression statement; HALT leaves it as the result.
	c.emit(code.OpStack1)
	for _, stmt := range prog.Statements {
		if err := c.compile(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(code.OpHalt)

	return &program.Program{
		Constants: c.constants,
		Main: &object.Function{
			Kind:         object.ScriptFunction,
			Name:         "main",
			Parameters:   program.MainParameters,
			Instructions: c.ins,
			Lines:        c.lines,
		},
		Debug: &program.DebugMap{Lines: strings.Split(source, "\n")},
	}, nil
}

// compile walks one AST node.
func (c *compiler) compile(node ast.Node) error {

	switch node := node.(type) {

	case *ast.BlockStatement:
		c.emit(code.OpOpenScope)
		c.scopeDepth++
		for _, s := range node.Statements {
			if err := c.compile(s); err != nil {
				return err
			}
		}
		c.scopeDepth--
		c.emit(code.OpCloseScope)

	case *ast.ExpressionStatement:
		if node.Expression == nil {
			return nil
		}
		c.markLine(node.Token)
		if err := c.compile(node.Expression); err != nil {
			return err
		}
		if c.funcDepth == 0 && c.scopeDepth == 0 {
			// Feed the program result slot.
			c.emitU32(code.OpSet, 0)
		}
		c.emit(code.OpPop)

	case *ast.VarStatement:
		c.markLine(node.Token)
		for _, decl := range node.Decls {
			if decl.Value != nil {
				if err := c.compile(decl.Value); err != nil {
					return err
				}
				c.nameFunction(decl.Value, decl.Name.Value)
			} else {
				c.emit(code.OpStack1)
			}
			idx := c.addConstant(&object.String{Value: decl.Name.Value})
			switch node.Kind {
			case ast.DeclVar:
				c.emitU32(code.OpDeclVar, uint32(idx))
			case ast.DeclLet:
				c.emitU32(code.OpDeclLet, uint32(idx))
			default:
				c.emitU32(code.OpDeclConst, uint32(idx))
			}
		}

	case *ast.ReturnStatement:
		c.markLine(node.Token)
		if node.ReturnValue != nil {
			if err := c.compile(node.ReturnValue); err != nil {
				return err
			}
		} else {
			c.emit(code.OpStack1)
		}
		c.emit(code.OpReturn)

	case *ast.IfStatement:
		return c.compileIf(node)

	case *ast.WhileStatement:
		return c.compileWhile(node)

	case *ast.DoWhileStatement:
		return c.compileDoWhile(node)

	case *ast.ForStatement:
		return c.compileFor(node)

	case *ast.ForInStatement:
		return c.compileForIn(node)

	case *ast.BreakStatement:
		return c.compileBreak(node)

	case *ast.ContinueStatement:
		return c.compileContinue(node)

	case *ast.SwitchStatement:
		return c.compileSwitch(node)

	case *ast.TryStatement:
		return c.compileTry(node)

	case *ast.ThrowStatement:
		c.markLine(node.Token)
		if err := c.compile(node.Value); err != nil {
			return err
		}
		c.emit(code.OpThrow)

	case *ast.Identifier:
		c.emitU32(code.OpGetVar, uint32(c.addConstant(&object.String{Value: node.Value})))

	case *ast.IntegerLiteral:
		switch node.Value {
		case 0:
			c.emit(code.OpConst0)
		case 1:
			c.emit(code.OpConst1)
		case -1:
			c.emit(code.OpConstN1)
		default:
			c.emitU32(code.OpConst, uint32(c.addConstant(&object.Integer{Value: node.Value})))
		}

	case *ast.FloatLiteral:
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.Double{Value: node.Value})))

	case *ast.StringLiteral:
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: node.Value})))

	case *ast.BooleanLiteral:
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.Boolean{Value: node.Value})))

	case *ast.NullLiteral:
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.Null{})))

	case *ast.UndefinedLiteral:
		c.emit(code.OpStack1)

	case *ast.TemplateLiteral:
		if len(node.Parts) == 1 {
			if s, ok := node.Parts[0].(*ast.StringLiteral); ok {
				c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: s.Value})))
				return nil
			}
		}
		for _, part := range node.Parts {
			if err := c.compile(part); err != nil {
				return err
			}
		}
		c.emitU32(code.OpConcat, uint32(len(node.Parts)))

	case *ast.RegexpLiteral:
		idx := len(c.constants)
		c.constants = append(c.constants, &object.Regexp{Pattern: node.Pattern, Flags: node.Flags})
		c.emitU32(code.OpConst, uint32(idx))

	case *ast.ArrayLiteral:
		for _, el := range node.Elements {
			if err := c.compile(el); err != nil {
				return err
			}
		}
		c.emitU32(code.OpArray, uint32(len(node.Elements)))

	case *ast.ObjectLiteral:
		return c.compileObjectLiteral(node)

	case *ast.FunctionLiteral:
		idx, err := c.compileFunction(node)
		if err != nil {
			return err
		}
		c.emitU32(code.OpConst, uint32(idx))

	case *ast.ClassLiteral:
		return c.compileClass(node)

	case *ast.ThisExpression:
		c.emit(code.OpThis)

	case *ast.SuperExpression:
		if c.superDepth == 0 {
			return c.errorAt(node.Token, "super is only valid in a derived class")
		}
		c.emitU32(code.OpGetVar, uint32(c.addConstant(&object.String{Value: superName})))

	case *ast.PrefixExpression:
		return c.compilePrefix(node)

	case *ast.PostfixExpression:
		return c.compileIncDec(node.Left, node.Operator, false, node.Token)

	case *ast.InfixExpression:
		return c.compileInfix(node)

	case *ast.TernaryExpression:
		return c.compileTernary(node)

	case *ast.AssignExpression:
		return c.compileAssign(node)

	case *ast.CallExpression:
		return c.compileCall(node)

	case *ast.NewExpression:
		if err := c.compile(node.Callee); err != nil {
			return err
		}
		for _, a := range node.Arguments {
			if err := c.compile(a); err != nil {
				return err
			}
		}
		c.emitU32(code.OpNew, uint32(len(node.Arguments)))

	case *ast.MemberExpression:
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: node.Property})))
		if err := c.compile(node.Object); err != nil {
			return err
		}
		c.emit(code.OpObjGet)

	case *ast.IndexExpression:
		if err := c.compile(node.Index); err != nil {
			return err
		}
		if err := c.compile(node.Left); err != nil {
			return err
		}
		c.emit(code.OpObjGet)

	case *ast.YieldExpression:
		// yield is the host-provided suspension primitive; lower
		// it to an ordinary call.
		c.emit(code.OpStack1)
		c.emitU32(code.OpGetVar, uint32(c.addConstant(&object.String{Value: "yield"})))
		if node.Value != nil {
			if err := c.compile(node.Value); err != nil {
				return err
			}
			c.emitU32(code.OpCall, 1)
		} else {
			c.emitU32(code.OpCall, 0)
		}

	default:
		return &CompileError{Message: fmt.Sprintf("unknown node type %T", node)}
	}
	return nil
}

// superName is the hidden binding through which class bodies reach
// their base constructor.
const superName = "#super"

// hidden generates a fresh name for a compiler temporary; the `#`
// prefix cannot appear in a source identifier.
func (c *compiler) hidden(tag string) string {
	c.tmpCount++
	return fmt.Sprintf("#%s%d", tag, c.tmpCount)
}

// errorAt builds a positioned compile error.
func (c *compiler) errorAt(tok interface{ Position() string }, format string, args ...interface{}) error {
	return &CompileError{Message: fmt.Sprintf(format, args...) + " (" + tok.Position() + ")"}
}

// nameFunction back-fills the name of an anonymous function constant
// bound by a declaration, purely for diagnostics.
func (c *compiler) nameFunction(value ast.Expression, name string) {
	if _, ok := value.(*ast.FunctionLiteral); !ok {
		if _, ok := value.(*ast.ClassLiteral); !ok {
			return
		}
	}
	if len(c.constants) == 0 {
		return
	}
	if fn, ok := c.constants[len(c.constants)-1].(*object.Function); ok && fn.Name == "" {
		fn.Name = name
	}
}
