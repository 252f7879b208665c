// Expression compilation: operators, short-circuit jumps, the
// assignment family (simple, compound, logical, destructuring),
// member calls, object literals and class assembly.

package mildew

import (
	"github.com/mildew-lang/mildew/ast"
	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/token"
)

// binaryOps maps infix operators to their opcodes.
var binaryOps = map[string]code.Opcode{
	"+":          code.OpAdd,
	"-":          code.OpSub,
	"*":          code.OpMul,
	"/":          code.OpDiv,
	"%":          code.OpMod,
	"**":         code.OpPow,
	"<":          code.OpLess,
	"<=":         code.OpLessEqual,
	">":          code.OpGreater,
	">=":         code.OpGreaterEqual,
	"==":         code.OpEqual,
	"!=":         code.OpNotEqual,
	"===":        code.OpStrictEqual,
	"&":          code.OpBitAnd,
	"|":          code.OpBitOr,
	"^":          code.OpBitXor,
	"<<":         code.OpBitLsh,
	">>":         code.OpBitRsh,
	">>>":        code.OpBitURsh,
	"instanceof": code.OpInstanceOf,
}

// compileInfix handles binary operators; the short-circuiting family
// compiles to conditional jumps so unevaluated operands have no
// effect.
func (c *compiler) compileInfix(node *ast.InfixExpression) error {
	switch node.Operator {
	case "&&", "||", "??":
		return c.compileShortCircuit(node)
	}

	if err := c.compile(node.Left); err != nil {
		return err
	}
	if err := c.compile(node.Right); err != nil {
		return err
	}

	if op, ok := binaryOps[node.Operator]; ok {
		c.emit(op)
		return nil
	}
	if node.Operator == "!==" {
		c.emit(code.OpStrictEqual)
		c.emit(code.OpNot)
		return nil
	}
	return c.errorAt(node.Token, "unknown operator %s", node.Operator)
}

// compileShortCircuit lowers &&, || and ??; the left operand is the
// result unless the right one must be evaluated.
func (c *compiler) compileShortCircuit(node *ast.InfixExpression) error {
	if err := c.compile(node.Left); err != nil {
		return err
	}
	c.emitI32(code.OpPush, -1)

	switch node.Operator {
	case "&&":
		// keep the left value when it is falsy
	case "||":
		// keep the left value when it is truthy
		c.emit(code.OpNot)
	case "??":
		// keep the left value when it is not nullish; loose
		// equality with null matches undefined too.
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.Null{})))
		c.emit(code.OpEqual)
	}

	end := c.emitI32(code.OpJmpFalse, 0)
	c.emit(code.OpPop)
	if err := c.compile(node.Right); err != nil {
		return err
	}
	c.patchJump(end)
	return nil
}

// compileTernary lowers `cond ? a : b` with a pair of jumps.
func (c *compiler) compileTernary(node *ast.TernaryExpression) error {
	if err := c.compile(node.Condition); err != nil {
		return err
	}
	jumpNotTruthy := c.emitI32(code.OpJmpFalse, 0)
	if err := c.compile(node.IfTrue); err != nil {
		return err
	}
	jumpEnd := c.emitI32(code.OpJmp, 0)
	c.patchJump(jumpNotTruthy)
	if err := c.compile(node.IfFalse); err != nil {
		return err
	}
	c.patchJump(jumpEnd)
	return nil
}

// compilePrefix handles the unary operators.
func (c *compiler) compilePrefix(node *ast.PrefixExpression) error {
	switch node.Operator {
	case "++", "--":
		return c.compileIncDec(node.Right, node.Operator, true, node.Token)

	case "delete":
		switch target := node.Right.(type) {
		case *ast.MemberExpression:
			if err := c.compile(target.Object); err != nil {
				return err
			}
			c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: target.Property})))
		case *ast.IndexExpression:
			if err := c.compile(target.Left); err != nil {
				return err
			}
			if err := c.compile(target.Index); err != nil {
				return err
			}
		default:
			return c.errorAt(node.Token, "delete requires a member expression")
		}
		c.emit(code.OpDel)
		return nil
	}

	// Negated numeric literals fold into constants.
	if node.Operator == "-" {
		switch lit := node.Right.(type) {
		case *ast.IntegerLiteral:
			return c.compile(&ast.IntegerLiteral{Token: lit.Token, Value: -lit.Value})
		case *ast.FloatLiteral:
			return c.compile(&ast.FloatLiteral{Token: lit.Token, Value: -lit.Value})
		}
	}

	if err := c.compile(node.Right); err != nil {
		return err
	}
	switch node.Operator {
	case "!":
		c.emit(code.OpNot)
	case "-":
		c.emit(code.OpNegate)
	case "+":
		// numeric identity
	case "~":
		c.emit(code.OpBitNot)
	case "typeof":
		c.emit(code.OpTypeof)
	default:
		return c.errorAt(node.Token, "unknown operator %s", node.Operator)
	}
	return nil
}

// compileIncDec lowers ++ and -- on identifiers, members and
// indexes.  The postfix forms leave the old value as the result.
func (c *compiler) compileIncDec(target ast.Expression, operator string, prefix bool, tok token.Token) error {
	op := code.OpAdd
	if operator == "--" {
		op = code.OpSub
	}

	if ident, ok := target.(*ast.Identifier); ok {
		nameIdx := uint32(c.addConstant(&object.String{Value: ident.Value}))
		c.emitU32(code.OpGetVar, nameIdx)
		if !prefix {
			c.emitI32(code.OpPush, -1)
		}
		c.emit(code.OpConst1)
		c.emit(op)
		c.emitU32(code.OpSetVar, nameIdx)
		if !prefix {
			c.emit(code.OpPop)
		}
		return nil
	}

	// Members and indexes go through hidden temporaries so the
	// target is evaluated exactly once.
	keyGen, objGen, err := c.bindTarget(target, tok)
	if err != nil {
		return err
	}
	defer c.closeTargetScope()

	keyGen()
	objGen()
	c.emit(code.OpObjGet)
	if !prefix {
		c.emitI32(code.OpPush, -1)
	}
	c.emit(code.OpConst1)
	c.emit(op)
	keyGen()
	objGen()
	c.emit(code.OpObjSet)
	if !prefix {
		c.emit(code.OpPop)
	}
	return nil
}

// bindTarget evaluates a member/index target into hidden scope-local
// temporaries and returns generators which push the key and object.
// The caller must closeTargetScope afterwards.
func (c *compiler) bindTarget(target ast.Expression, tok token.Token) (func(), func(), error) {
	c.emit(code.OpOpenScope)
	c.scopeDepth++

	objName := c.hidden("obj")
	switch t := target.(type) {

	case *ast.MemberExpression:
		if err := c.compile(t.Object); err != nil {
			return nil, nil, err
		}
		c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: objName})))
		keyIdx := uint32(c.addConstant(&object.String{Value: t.Property}))
		objIdx := uint32(c.addConstant(&object.String{Value: objName}))
		return func() { c.emitU32(code.OpConst, keyIdx) },
			func() { c.emitU32(code.OpGetVar, objIdx) }, nil

	case *ast.IndexExpression:
		keyName := c.hidden("key")
		if err := c.compile(t.Left); err != nil {
			return nil, nil, err
		}
		c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: objName})))
		if err := c.compile(t.Index); err != nil {
			return nil, nil, err
		}
		c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: keyName})))
		keyIdx := uint32(c.addConstant(&object.String{Value: keyName}))
		objIdx := uint32(c.addConstant(&object.String{Value: objName}))
		return func() { c.emitU32(code.OpGetVar, keyIdx) },
			func() { c.emitU32(code.OpGetVar, objIdx) }, nil
	}

	return nil, nil, c.errorAt(tok, "invalid assignment target")
}

// closeTargetScope closes the scope opened by bindTarget; the
// expression result survives on the operand stack.
func (c *compiler) closeTargetScope() {
	c.scopeDepth--
	c.emit(code.OpCloseScope)
}

// compileAssign handles simple, compound, logical and destructuring
// assignment.
func (c *compiler) compileAssign(node *ast.AssignExpression) error {

	// Destructuring patterns.
	switch node.Target.(type) {
	case *ast.ArrayLiteral, *ast.ObjectLiteral:
		return c.compileDestructuring(node)
	}

	if node.Operator == "=" {
		switch target := node.Target.(type) {

		case *ast.Identifier:
			if err := c.compile(node.Value); err != nil {
				return err
			}
			c.nameFunction(node.Value, target.Value)
			c.emitU32(code.OpSetVar, uint32(c.addConstant(&object.String{Value: target.Value})))
			return nil

		case *ast.MemberExpression:
			if err := c.compile(node.Value); err != nil {
				return err
			}
			c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: target.Property})))
			if err := c.compile(target.Object); err != nil {
				return err
			}
			c.emit(code.OpObjSet)
			return nil

		case *ast.IndexExpression:
			if err := c.compile(node.Value); err != nil {
				return err
			}
			if err := c.compile(target.Index); err != nil {
				return err
			}
			if err := c.compile(target.Left); err != nil {
				return err
			}
			c.emit(code.OpObjSet)
			return nil
		}
		return c.errorAt(node.Token, "invalid assignment target")
	}

	logical := node.Operator == "&&=" || node.Operator == "||=" || node.Operator == "??="
	var arith code.Opcode
	if !logical {
		op, ok := binaryOps[node.Operator[:len(node.Operator)-1]]
		if !ok {
			return c.errorAt(node.Token, "unknown operator %s", node.Operator)
		}
		arith = op
	}

	if ident, ok := node.Target.(*ast.Identifier); ok {
		nameIdx := uint32(c.addConstant(&object.String{Value: ident.Value}))
		c.emitU32(code.OpGetVar, nameIdx)

		if logical {
			end, err := c.logicalAssignTest(node.Operator)
			if err != nil {
				return err
			}
			c.emit(code.OpPop)
			if err := c.compile(node.Value); err != nil {
				return err
			}
			c.emitU32(code.OpSetVar, nameIdx)
			c.patchJump(end)
			return nil
		}

		if err := c.compile(node.Value); err != nil {
			return err
		}
		c.emit(arith)
		c.emitU32(code.OpSetVar, nameIdx)
		return nil
	}

	// Compound assignment to a member/index: the target is
	// evaluated once, through hidden temporaries.
	keyGen, objGen, err := c.bindTarget(node.Target, node.Token)
	if err != nil {
		return err
	}
	defer c.closeTargetScope()

	keyGen()
	objGen()
	c.emit(code.OpObjGet)

	if logical {
		end, err := c.logicalAssignTest(node.Operator)
		if err != nil {
			return err
		}
		c.emit(code.OpPop)
		if err := c.compile(node.Value); err != nil {
			return err
		}
		keyGen()
		objGen()
		c.emit(code.OpObjSet)
		c.patchJump(end)
		return nil
	}

	if err := c.compile(node.Value); err != nil {
		return err
	}
	c.emit(arith)
	keyGen()
	objGen()
	c.emit(code.OpObjSet)
	return nil
}

// logicalAssignTest emits the dup-and-test for &&=, ||= and ??=,
// returning the jump to patch at the keep-old-value exit.
func (c *compiler) logicalAssignTest(operator string) (int, error) {
	c.emitI32(code.OpPush, -1)
	switch operator {
	case "&&=":
		// assign only when the current value is truthy
	case "||=":
		c.emit(code.OpNot)
	case "??=":
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.Null{})))
		c.emit(code.OpEqual)
	}
	return c.emitI32(code.OpJmpFalse, 0), nil
}

// compileDestructuring lowers `[a, b = 1] = e` and `{a, b: c} = e` to
// a sequence of member reads and ordinary assignments against a
// hidden temporary; the expression's value is the right-hand side.
func (c *compiler) compileDestructuring(node *ast.AssignExpression) error {
	c.emit(code.OpOpenScope)
	c.scopeDepth++

	tmp := c.hidden("val")
	if err := c.compile(node.Value); err != nil {
		return err
	}
	c.emitU32(code.OpDeclLet, uint32(c.addConstant(&object.String{Value: tmp})))
	source := &ast.Identifier{Token: node.Token, Value: tmp}

	assign := func(target ast.Expression, from ast.Expression) error {
		// A nested default: `a = 1` inside the pattern.
		if def, ok := target.(*ast.AssignExpression); ok && def.Operator == "=" {
			from = &ast.TernaryExpression{
				Token: node.Token,
				Condition: &ast.InfixExpression{
					Token:    node.Token,
					Left:     from,
					Operator: "===",
					Right:    &ast.UndefinedLiteral{Token: node.Token},
				},
				IfTrue:  def.Value,
				IfFalse: from,
			}
			target = def.Target
		}
		err := c.compileAssign(&ast.AssignExpression{
			Token:    node.Token,
			Target:   target,
			Operator: "=",
			Value:    from,
		})
		if err != nil {
			return err
		}
		c.emit(code.OpPop)
		return nil
	}

	switch pattern := node.Target.(type) {

	case *ast.ArrayLiteral:
		for i, elem := range pattern.Elements {
			// Guard the read so a short right-hand side yields
			// undefined instead of an out-of-bounds error.
			read := &ast.TernaryExpression{
				Token: node.Token,
				Condition: &ast.InfixExpression{
					Token:    node.Token,
					Left:     &ast.IntegerLiteral{Token: node.Token, Value: int64(i)},
					Operator: "<",
					Right:    &ast.MemberExpression{Token: node.Token, Object: source, Property: "length"},
				},
				IfTrue: &ast.IndexExpression{
					Token: node.Token,
					Left:  source,
					Index: &ast.IntegerLiteral{Token: node.Token, Value: int64(i)},
				},
				IfFalse: &ast.UndefinedLiteral{Token: node.Token},
			}
			if err := assign(elem, read); err != nil {
				return err
			}
		}

	case *ast.ObjectLiteral:
		for _, prop := range pattern.Properties {
			if prop.Kind != ast.PropertyNormal {
				return c.errorAt(node.Token, "invalid destructuring pattern")
			}
			read := &ast.MemberExpression{Token: node.Token, Object: source, Property: prop.Key}
			if err := assign(prop.Value, read); err != nil {
				return err
			}
		}
	}

	c.emitU32(code.OpGetVar, uint32(c.addConstant(&object.String{Value: tmp})))
	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// compileCall lowers calls.  Member calls pass the receiver as
// `this`; `super` calls are rewritten onto the hidden base binding.
func (c *compiler) compileCall(node *ast.CallExpression) error {

	// super(args) -> #super.call(this, args)
	if _, ok := node.Function.(*ast.SuperExpression); ok {
		if c.superDepth == 0 {
			return c.errorAt(node.Token, "super is only valid in a derived class")
		}
		return c.compileCall(&ast.CallExpression{
			Token: node.Token,
			Function: &ast.MemberExpression{
				Token:    node.Token,
				Object:   &ast.Identifier{Token: node.Token, Value: superName},
				Property: "call",
			},
			Arguments: append([]ast.Expression{&ast.ThisExpression{Token: node.Token}}, node.Arguments...),
		})
	}

	// super.m(args) -> #super.prototype.m.call(this, args)
	if member, ok := node.Function.(*ast.MemberExpression); ok {
		if _, ok := member.Object.(*ast.SuperExpression); ok {
			if c.superDepth == 0 {
				return c.errorAt(node.Token, "super is only valid in a derived class")
			}
			return c.compileCall(&ast.CallExpression{
				Token: node.Token,
				Function: &ast.MemberExpression{
					Token: node.Token,
					Object: &ast.MemberExpression{
						Token: node.Token,
						Object: &ast.MemberExpression{
							Token:    node.Token,
							Object:   &ast.Identifier{Token: node.Token, Value: superName},
							Property: "prototype",
						},
						Property: member.Property,
					},
					Property: "call",
				},
				Arguments: append([]ast.Expression{&ast.ThisExpression{Token: node.Token}}, node.Arguments...),
			})
		}
	}

	switch callee := node.Function.(type) {

	case *ast.MemberExpression:
		if err := c.compile(callee.Object); err != nil {
			return err
		}
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: callee.Property})))
		c.emitI32(code.OpPush, -2)
		c.emit(code.OpObjGet)

	case *ast.IndexExpression:
		if err := c.compile(callee.Left); err != nil {
			return err
		}
		if err := c.compile(callee.Index); err != nil {
			return err
		}
		c.emitI32(code.OpPush, -2)
		c.emit(code.OpObjGet)

	default:
		c.emit(code.OpStack1)
		if err := c.compile(node.Function); err != nil {
			return err
		}
	}

	for _, a := range node.Arguments {
		if err := c.compile(a); err != nil {
			return err
		}
	}
	c.emitU32(code.OpCall, uint32(len(node.Arguments)))
	return nil
}

// compileObjectLiteral lowers `{..}`.  Plain pairs go through the
// OBJECT opcode; accessors are attached afterwards through the
// __defineGetter__/__defineSetter__ builtins.
func (c *compiler) compileObjectLiteral(node *ast.ObjectLiteral) error {
	var normals, accessors []ast.Property
	for _, p := range node.Properties {
		if p.Kind == ast.PropertyNormal {
			normals = append(normals, p)
		} else {
			accessors = append(accessors, p)
		}
	}

	emitPairs := func() error {
		for _, p := range normals {
			c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: p.Key})))
			if err := c.compile(p.Value); err != nil {
				return err
			}
		}
		c.emitU32(code.OpObject, uint32(len(normals)))
		return nil
	}

	if len(accessors) == 0 {
		return emitPairs()
	}

	c.emit(code.OpOpenScope)
	c.scopeDepth++

	tmp := c.hidden("obj")
	if err := emitPairs(); err != nil {
		return err
	}
	tmpIdx := uint32(c.addConstant(&object.String{Value: tmp}))
	c.emitU32(code.OpDeclLet, tmpIdx)

	for _, p := range accessors {
		define := "__defineGetter__"
		if p.Kind == ast.PropertySet {
			define = "__defineSetter__"
		}
		c.emitU32(code.OpGetVar, tmpIdx)
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: define})))
		c.emitI32(code.OpPush, -2)
		c.emit(code.OpObjGet)
		c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: p.Key})))
		if err := c.compile(p.Value); err != nil {
			return err
		}
		c.emitU32(code.OpCall, 2)
		c.emit(code.OpPop)
	}

	c.emitU32(code.OpGetVar, tmpIdx)
	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// compileClass assembles a class: the base and constructor are
// evaluated, the member name/value pairs are pushed, and the CLASS
// opcode builds the prototype and links the chain.  Method closures
// capture a hidden constant binding to the base constructor, which is
// what `super` compiles against.
func (c *compiler) compileClass(node *ast.ClassLiteral) error {
	if len(node.Methods) > 255 || len(node.Getters) > 255 ||
		len(node.Setters) > 255 || len(node.Statics) > 255 {
		return c.errorAt(node.Token, "class %s has too many members", node.Name)
	}

	c.emit(code.OpOpenScope)
	c.scopeDepth++

	if node.Base != nil {
		if err := c.compile(node.Base); err != nil {
			return err
		}
		c.superDepth++
		defer func() { c.superDepth-- }()
	} else {
		c.emit(code.OpStack1)
	}
	c.emitI32(code.OpPush, -1)
	c.emitU32(code.OpDeclConst, uint32(c.addConstant(&object.String{Value: superName})))

	ctor := node.Constructor
	if ctor == nil {
		ctor = c.defaultConstructor(node)
	}
	ctorIdx, err := c.compileFunction(ctor)
	if err != nil {
		return err
	}
	if fn, ok := c.constants[ctorIdx].(*object.Function); ok && fn.Name == "" {
		fn.Name = node.Name
	}
	c.emitU32(code.OpConst, uint32(ctorIdx))

	emitMembers := func(props []ast.Property) error {
		for _, p := range props {
			c.emitU32(code.OpConst, uint32(c.addConstant(&object.String{Value: p.Key})))
			if err := c.compile(p.Value); err != nil {
				return err
			}
		}
		return nil
	}
	if err := emitMembers(node.Methods); err != nil {
		return err
	}
	if err := emitMembers(node.Getters); err != nil {
		return err
	}
	if err := emitMembers(node.Setters); err != nil {
		return err
	}
	if err := emitMembers(node.Statics); err != nil {
		return err
	}

	c.emitClass(byte(len(node.Methods)), byte(len(node.Getters)),
		byte(len(node.Setters)), byte(len(node.Statics)))

	c.scopeDepth--
	c.emit(code.OpCloseScope)
	return nil
}

// defaultConstructor synthesises the implicit constructor: empty for
// a base class, super-forwarding for a derived one.
func (c *compiler) defaultConstructor(node *ast.ClassLiteral) *ast.FunctionLiteral {
	body := &ast.BlockStatement{Token: node.Token}
	if node.Base != nil {
		body.Statements = []ast.Statement{
			&ast.ExpressionStatement{
				Token: node.Token,
				Expression: &ast.CallExpression{
					Token:    node.Token,
					Function: &ast.SuperExpression{Token: node.Token},
				},
			},
		}
	}
	return &ast.FunctionLiteral{Token: node.Token, Name: node.Name, Body: body}
}
