// Statement compilation: control flow, loops, switch dispatch
// tables, try/catch/finally lowering, and function bodies.

package mildew

import (
	"github.com/mildew-lang/mildew/ast"
	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
)

// compileIf lowers if/else with a conditional forward jump, and a
// second jump over the else-branch when one is present.
func (c *compiler) compileIf(node *ast.IfStatement) error {
	c.markLine(node.Token)
	if err := c.compile(node.Condition); err != nil {
		return err
	}

	jumpNotTruthy := c.emitI32(code.OpJmpFalse, 0)
	if err := c.compile(node.Consequence); err != nil {
		return err
	}

	if node.Alternative == nil {
		c.patchJump(jumpNotTruthy)
		return nil
	}

	jumpOverElse := c.emitI32(code.OpJmp, 0)
	c.patchJump(jumpNotTruthy)
	if err := c.compile(node.Alternative); err != nil {
		return err
	}
	c.patchJump(jumpOverElse)
	return nil
}

// pushBreakable opens a break/continue target.
func (c *compiler) pushBreakable(kind breakableKind, continueTarget int) *breakable {
	b := &breakable{
		kind:           kind,
		continueTarget: continueTarget,
		scopeDepth:     c.scopeDepth,
		tryDepth:       len(c.tries),
	}
	c.breakables = append(c.breakables, b)
	return b
}

// unwindTries compiles the exit path out of every try entered since
// the given depth, innermost first: pop the try-data, then run the
// finally body, so a break or continue observes the same finally
// semantics as any other completion.  The try stack is restored
// afterwards, as this is only one exit path out of the region.
func (c *compiler) unwindTries(depth int) error {
	saved := append([]tryContext(nil), c.tries...)
	defer func() { c.tries = saved }()

	for len(c.tries) > depth {
		fin := c.tries[len(c.tries)-1].finally
		c.tries = c.tries[:len(c.tries)-1]
		c.emit(code.OpEndTry)
		if fin != nil {
			if err := c.compile(fin); err != nil {
				return err
			}
		}
	}
	return nil
}

// popBreakable closes the innermost break/continue target, patching
// its break jumps to the current position.
func (c *compiler) popBreakable() {
	b := c.breakables[len(c.breakables)-1]
	c.breakables = c.breakables[:len(c.breakables)-1]
	for _, pos := range b.breakPatches {
		c.patchU32(pos, uint32(len(c.ins)))
	}
}

// compileBreak emits a GOTO out of the innermost loop or switch,
// running the finally bodies of, and closing, any try blocks opened
// since its entry, then unwinding the scopes.
func (c *compiler) compileBreak(node *ast.BreakStatement) error {
	if len(c.breakables) == 0 {
		return c.errorAt(node.Token, "break outside of a loop or switch")
	}
	b := c.breakables[len(c.breakables)-1]
	if err := c.unwindTries(b.tryDepth); err != nil {
		return err
	}
	pos := c.emitGoto(0, byte(c.scopeDepth-b.scopeDepth))
	b.breakPatches = append(b.breakPatches, pos)
	return nil
}

// compileContinue emits a GOTO to the innermost loop's continue
// target.
func (c *compiler) compileContinue(node *ast.ContinueStatement) error {
	var b *breakable
	for i := len(c.breakables) - 1; i >= 0; i-- {
		if c.breakables[i].kind == breakableLoop {
			b = c.breakables[i]
			break
		}
	}
	if b == nil {
		return c.errorAt(node.Token, "continue outside of a loop")
	}
	if err := c.unwindTries(b.tryDepth); err != nil {
		return err
	}
	if b.continueTarget >= 0 {
		c.emitGoto(uint32(b.continueTarget), byte(c.scopeDepth-b.scopeDepth))
		return nil
	}
	pos := c.emitGoto(0, byte(c.scopeDepth-b.scopeDepth))
	b.continuePatches = append(b.continuePatches, pos)
	return nil
}

// compileWhile lowers a while-loop; continue re-tests the condition.
func (c *compiler) compileWhile(node *ast.WhileStatement) error {
	c.markLine(node.Token)
	condStart := len(c.ins)
	c.pushBreakable(breakableLoop, condStart)

	if err := c.compile(node.Condition); err != nil {
		return err
	}
	exit := c.emitI32(code.OpJmpFalse, 0)

	if err := c.compile(node.Body); err != nil {
		return err
	}
	c.emitJumpTo(code.OpJmp, condStart)

	c.patchJump(exit)
	c.popBreakable()
	return nil
}

// compileDoWhile lowers do/while; the body runs before the first
// test, and continue jumps to the test.
func (c *compiler) compileDoWhile(node *ast.DoWhileStatement) error {
	c.markLine(node.Token)
	bodyStart := len(c.ins)
	b := c.pushBreakable(breakableLoop, -1)

	if err := c.compile(node.Body); err != nil {
		return err
	}

	condStart := len(c.ins)
	for _, pos := range b.continuePatches {
		c.patchU32(pos, uint32(condStart))
	}
	b.continuePatches = nil

	if err := c.compile(node.Condition); err != nil {
		return err
	}
	exit := c.emitI32(code.OpJmpFalse, 0)
	c.emitJumpTo(code.OpJmp, bodyStart)
	c.patchJump(exit)

	c.popBreakable()
	return nil
}

// compileFor lowers the classic three-clause for-loop.  The init
// clause gets its own scope; continue targets the post clause.
func (c *compiler) compileFor(node *ast.ForStatement) error {
	c.markLine(node.Token)
	c.emit(code.OpOpenScope)
	c.scopeDepth++

	if node.Init != nil {
		if err := c.compile(node.Init); err != nil {
			return err
		}
	}

	condStart := len(c.ins)
	exit := -1
	if node.Condition != nil {
		if err := c.compile(node.Condition); err != nil {
			return err
		}
		exit = c.emitI32(code.OpJmpFalse, 0)
	}

	b := c.pushBreakable(breakableLoop, -1)
	if err := c.compile(node.Body); err != nil {
		return err
	}

	postStart := len(c.ins)
	for _, pos := range b.continuePatches {
		c.patchU32(pos, uint32(postStart))
	}
	b.continuePatches = nil

	if node.Post != nil {
		if err := c.compile(node.Post); err != nil {
			return err
		}
		c.emit(code.OpPop)
	}
	c.emitJumpTo(code.OpJmp, condStart)

	if exit >= 0 {
		c.patchJump(exit)
	}
	c.popBreakable()

	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// compileForIn lowers for-in and for-of to an ITER next-function
// driven loop.  Loop variables bind afresh each iteration.
func (c *compiler) compileForIn(node *ast.ForInStatement) error {
	c.markLine(node.Token)
	c.emit(code.OpOpenScope)
	c.scopeDepth++

	iterName := c.hidden("iter")
	if err := c.compile(node.Iterable); err != nil {
		return err
	}
	c.emit(code.OpIter)
	c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: iterName})))

	loopStart := len(c.ins)
	c.pushBreakable(breakableLoop, loopStart)

	// Call the next-function and test the record for completion.
	c.emit(code.OpStack1)
	c.emitU32(code.OpGetVar, uint32(c.addConstant(&object.String{Value: iterName})))
	c.emitU32(code.OpCall, 0)
	c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: "done"})))
	c.emitI32(code.OpPush, -2)
	c.emit(code.OpObjGet)
	body := c.emitI32(code.OpJmpFalse, 0)

	// done: discard the record and leave.
	c.emit(code.OpPop)
	exit := c.emitI32(code.OpJmp, 0)

	// Bind the key/value loop variables in a per-iteration scope.
	c.patchJump(body)
	c.emit(code.OpOpenScope)
	c.scopeDepth++
	if node.Key != "" {
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: "key"})))
		c.emitI32(code.OpPush, -2)
		c.emit(code.OpObjGet)
		c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: node.Key})))
	}
	// A lone for-in name binds the key; for-of and two-name forms
	// bind the value to the last name.
	valueField := "value"
	if !node.Of && node.Key == "" {
		valueField = "key"
	}
	c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: valueField})))
	c.emitI32(code.OpPush, -2)
	c.emit(code.OpObjGet)
	c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: node.Value})))
	c.emit(code.OpPop)

	if err := c.compile(node.Body); err != nil {
		return err
	}
	c.scopeDepth--
	c.emit(code.OpCloseScope)
	c.emitJumpTo(code.OpJmp, loopStart)

	c.patchJump(exit)
	c.popBreakable()

	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// compileSwitch lowers a switch to a jump table: the case values must
// be compile-time constants, and the arms fall through unless broken
// out of.
func (c *compiler) compileSwitch(node *ast.SwitchStatement) error {
	c.markLine(node.Token)
	if err := c.compile(node.Value); err != nil {
		return err
	}

	// The table is filled in as the arm offsets become known; it is
	// a reference type so mutating it after registration is fine.
	table := &object.Array{}
	tableIdx := len(c.constants)
	c.constants = append(c.constants, table)

	// The scope opens before the dispatch, since SWITCH jumps straight
	// to an arm.
	c.emit(code.OpOpenScope)
	c.emitU32(code.OpConst, uint32(tableIdx))

	switchPos := c.emitU32(code.OpSwitch, 0)

	c.scopeDepth++
	c.pushBreakable(breakableSwitch, -1)

	defaultOffset := -1
	for _, clause := range node.Choices {
		offset := len(c.ins)
		if clause.Default {
			defaultOffset = offset
		} else {
			val, err := c.constantCaseValue(clause.Expr)
			if err != nil {
				return err
			}
			table.Elements = append(table.Elements, &object.Array{
				Elements: []object.Object{val, &object.Integer{Value: int64(offset)}},
			})
		}
		for _, s := range clause.Body {
			if err := c.compile(s); err != nil {
				return err
			}
		}
	}

	if defaultOffset < 0 {
		defaultOffset = len(c.ins)
	}
	c.patchU32(switchPos, uint32(defaultOffset))

	c.popBreakable()
	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// constantCaseValue evaluates a case expression at compile time;
// anything but a literal (optionally negated) is rejected.
func (c *compiler) constantCaseValue(expr ast.Expression) (object.Object, error) {
	switch v := expr.(type) {
	case *ast.IntegerLiteral:
		return &object.Integer{Value: v.Value}, nil
	case *ast.FloatLiteral:
		return &object.Double{Value: v.Value}, nil
	case *ast.StringLiteral:
		return &object.String{Value: v.Value}, nil
	case *ast.BooleanLiteral:
		return &object.Boolean{Value: v.Value}, nil
	case *ast.NullLiteral:
		return &object.Null{}, nil
	case *ast.UndefinedLiteral:
		return &object.Undefined{}, nil
	case *ast.PrefixExpression:
		if v.Operator == "-" {
			switch r := v.Right.(type) {
			case *ast.IntegerLiteral:
				return &object.Integer{Value: -r.Value}, nil
			case *ast.FloatLiteral:
				return &object.Double{Value: -r.Value}, nil
			}
		}
	}
	return nil, &CompileError{Message: "switch case values must be constant"}
}

// compileTry lowers try/catch/finally.
//
// The finally body is emitted twice, once on the normal path and once
// on the exceptional path where a RETHROW re-enters the unwinder
// afterwards.  The unwinder parks the in-flight exception in the
// machine's exception flag, which is exactly what LOADEXC and RETHROW
// consume.
func (c *compiler) compileTry(node *ast.TryStatement) error {
	c.markLine(node.Token)

	tryPos := c.emitU32(code.OpTry, 0)
	c.tries = append(c.tries, tryContext{finally: node.FinallyBlock})
	if err := c.compile(node.Block); err != nil {
		return err
	}
	c.tries = c.tries[:len(c.tries)-1]
	c.emit(code.OpEndTry)

	if node.CatchBlock == nil {
		// try/finally: the normal path falls into the finally;
		// the exceptional path runs it and re-raises.
		if err := c.compile(node.FinallyBlock); err != nil {
			return err
		}
		end := c.emitI32(code.OpJmp, 0)

		c.patchU32(tryPos, uint32(len(c.ins)))
		if err := c.compile(node.FinallyBlock); err != nil {
			return err
		}
		c.emit(code.OpRethrow)
		c.patchJump(end)
		return nil
	}

	normal := c.emitI32(code.OpJmp, 0)

	// Catch entry: the unwinder has restored scopes and the operand
	// stack, and parked the exception for LOADEXC.
	c.patchU32(tryPos, uint32(len(c.ins)))

	guard := -1
	if node.FinallyBlock != nil {
		// Protect the catch body so the finally still runs when
		// the handler itself throws.
		guard = c.emitU32(code.OpTry, 0)
		c.tries = append(c.tries, tryContext{finally: node.FinallyBlock})
	}

	c.emit(code.OpOpenScope)
	c.scopeDepth++
	c.emit(code.OpLoadExc)
	if node.CatchName != "" {
		c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: node.CatchName})))
	} else {
		c.emit(code.OpPop)
	}
	for _, s := range node.CatchBlock.Statements {
		if err := c.compile(s); err != nil {
			return err
		}
	}
	c.scopeDepth--
	c.emit(code.OpCloseScope)

	if node.FinallyBlock != nil {
		c.tries = c.tries[:len(c.tries)-1]
		c.emit(code.OpEndTry)
	}

	c.patchJump(normal)
	if node.FinallyBlock == nil {
		return nil
	}

	// Normal-path finally.
	if err := c.compile(node.FinallyBlock); err != nil {
		return err
	}
	end := c.emitI32(code.OpJmp, 0)

	// Exceptional-path finally (an exception escaped the catch
	// handler): run the body, then re-raise.
	c.patchU32(guard, uint32(len(c.ins)))
	if err := c.compile(node.FinallyBlock); err != nil {
		return err
	}
	c.emit(code.OpRethrow)

	c.patchJump(end)
	return nil
}

// compileFunction compiles a function literal into a fresh
// instruction buffer, in the manner of a nested compilation: the
// outer buffer is swapped out and restored afterwards.  The constant
// pool stays shared.  The returned index refers to the function
// constant.
func (c *compiler) compileFunction(fn *ast.FunctionLiteral) (int, error) {

	savedIns := c.ins
	savedLines := c.lines
	savedLast := c.lastOp
	savedScope := c.scopeDepth
	savedTries := c.tries
	savedBreakables := c.breakables

	c.ins = code.Instructions{}
	c.lines = nil
	c.scopeDepth = 0
	c.tries = nil
	c.breakables = nil
	c.funcDepth++

	// The body's scope is owned by the call opcode, so the block's
	// statements are compiled without an OPENSCOPE of their own.
	var cerr error
	for _, s := range fn.Body.Statements {
		if cerr = c.compile(s); cerr != nil {
			break
		}
	}

	// Every function returns, even when the body doesn't say so.
	if cerr == nil && !c.lastOpIs(code.OpReturn) {
		c.emit(code.OpStack1)
		c.emit(code.OpReturn)
	}

	compiled := &object.Function{
		Kind:         object.ScriptFunction,
		Name:         fn.Name,
		Instructions: c.ins,
		Lines:        c.lines,
	}
	for _, p := range fn.Parameters {
		compiled.Parameters = append(compiled.Parameters, p.Value)
	}

	c.ins = savedIns
	c.lines = savedLines
	c.lastOp = savedLast
	c.scopeDepth = savedScope
	c.tries = savedTries
	c.breakables = savedBreakables
	c.funcDepth--

	if cerr != nil {
		return 0, cerr
	}

	idx := len(c.constants)
	c.constants = append(c.constants, compiled)
	return idx, nil
}
