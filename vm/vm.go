// Package vm implements our stack-based virtual machine.
//
// We're handed a compiled program, and we process its instructions
// until we hit a `HALT`, a top-level return, or an uncaught
// exception.
//
// The machine keeps an operand stack, a call stack, and a try-data
// stack.  Exceptions never use host-language panics: a raise walks
// the try-data stack, restoring scopes and the operand stack to the
// recorded heights, and jumps to the catch target; frames without a
// handler are popped into the traceback.
package vm

import (
	"fmt"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/program"
)

// True is our global "true" value.
var True = &object.Boolean{Value: true}

// False is our global "false" value.
var False = &object.Boolean{Value: false}

// Null is our global "null" value.
var Null = &object.Null{}

// Undef is our global "undefined" value.
var Undef = &object.Undefined{}

// maxCallDepth bounds script recursion.
const maxCallDepth = 2048

// TryData is the record pushed by a TRY instruction: enough state to
// restore the machine when an exception transfers control to the
// catch target.
type TryData struct {
	envDepth    int
	stackSize   int
	catchTarget int
}

// Frame is a suspended caller: everything the machine must restore
// when the callee returns.
type Frame struct {
	ins     code.Instructions
	ip      int
	env     *object.Environment
	tryData []TryData
	this    object.Object
	isNew   bool
	newThis object.Object
	lines   []object.LineEntry
	fnName  string
	consts  []object.Object
}

// Prototypes holds the per-interpreter built-in prototype objects
// consulted when a member is not found on a value itself.  Keeping
// them here, rather than in package-level variables, keeps multiple
// interpreters in one process isolated.
type Prototypes struct {
	Object   *object.Instance
	Array    *object.Instance
	String   *object.Instance
	Function *object.Instance
}

// VM is the structure which holds our state.
type VM struct {

	// constants holds the shared constant pool of the running
	// program; it is read-only at runtime.
	constants []object.Object

	// The operand stack.
	stack []object.Object

	// The call stack.
	frames []Frame

	// The currently-executing function's state.
	ins     code.Instructions
	ip      int
	env     *object.Environment
	tryData []TryData
	this    object.Object
	isNew   bool
	newThis object.Object
	lines   []object.LineEntry
	fnName  string

	// The current exception flag, read by LOADEXC and RETHROW.
	exc    object.Object
	excSet bool

	// stopped is set by HALT.
	stopped bool

	// globals is the shared global environment.
	globals *object.Environment

	// debug renders source lines for tracebacks; may be nil.
	debug *program.DebugMap

	// Protos holds the built-in prototypes; may be nil for a bare
	// machine.
	Protos *Prototypes

	// NewRegexp instantiates regex-literal constants; installed by
	// the interpreter's standard library.
	NewRegexp func(pattern, flags string) (object.Object, error)

	// Trace enables a per-opcode execution trace on stdout.
	Trace bool

	// scheduler owns pending fibers.
	scheduler *Scheduler

	// curFiber is the fiber currently executing, if any.
	curFiber *Fiber
}

// New constructs a new virtual machine using the given global
// environment.
func New(globals *object.Environment) *VM {
	vm := &VM{globals: globals, env: globals}
	vm.scheduler = newScheduler(vm)
	return vm
}

// Globals returns the machine's global environment.
func (vm *VM) Globals() *object.Environment { return vm.globals }

// Scheduler returns the machine's fiber scheduler.
func (vm *VM) Scheduler() *Scheduler { return vm.scheduler }

// SetProgram points the machine at a compiled program's constant pool
// and debug map; it must be called before executing any of the
// program's functions.
func (vm *VM) SetProgram(p *program.Program) {
	vm.constants = p.Constants
	vm.debug = p.Debug
}

// machineState is a full snapshot used by reentrant calls and fiber
// context-switches.
type machineState struct {
	stack   []object.Object
	frames  []Frame
	ins     code.Instructions
	ip      int
	env     *object.Environment
	tryData []TryData
	this    object.Object
	isNew   bool
	newThis object.Object
	lines   []object.LineEntry
	fnName  string
	consts  []object.Object
	exc     object.Object
	excSet  bool
	stopped bool
}

func (vm *VM) save() machineState {
	return machineState{
		stack: vm.stack, frames: vm.frames, ins: vm.ins, ip: vm.ip,
		env: vm.env, tryData: vm.tryData, this: vm.this,
		isNew: vm.isNew, newThis: vm.newThis, lines: vm.lines,
		fnName: vm.fnName, consts: vm.constants, exc: vm.exc,
		excSet: vm.excSet, stopped: vm.stopped,
	}
}

func (vm *VM) restore(s machineState) {
	vm.stack, vm.frames, vm.ins, vm.ip = s.stack, s.frames, s.ins, s.ip
	vm.env, vm.tryData, vm.this = s.env, s.tryData, s.this
	vm.isNew, vm.newThis, vm.lines = s.isNew, s.newThis, s.lines
	vm.fnName, vm.exc, vm.excSet = s.fnName, s.exc, s.excSet
	vm.stopped = s.stopped
	if s.consts != nil {
		vm.constants = s.consts
	}
}

// RunProgram executes a compiled program's main function and returns
// its result.
func (vm *VM) RunProgram(p *program.Program) (object.Object, error) {
	vm.SetProgram(p)
	return vm.RunFunction(p.Main, Undef, nil)
}

// RunFunction invokes a callable reentrantly: native functions,
// getters and setters, `call`/`apply`, and the fiber scheduler all
// come through here.  The current machine state is swapped out, the
// function runs to completion on this thread, and the state is
// restored.
func (vm *VM) RunFunction(fn *object.Function, this object.Object, args []object.Object) (object.Object, error) {
	if fn.Kind != object.ScriptFunction {
		return vm.callNative(fn, this, args)
	}

	saved := vm.save()
	defer vm.restore(saved)

	vm.stack = nil
	vm.frames = nil
	vm.tryData = nil
	vm.exc, vm.excSet = nil, false
	vm.stopped = false

	if err := vm.enterScript(fn, this, false, nil); err != nil {
		return Undef, err
	}
	for i, name := range fn.Parameters {
		if i < len(args) {
			vm.env.ForceSet(name, args[i], false)
		}
	}
	return vm.loop()
}

// callNative invokes a host function, mapping its error side-channel
// onto a runtime exception.
func (vm *VM) callNative(fn *object.Function, this object.Object, args []object.Object) (object.Object, error) {
	if fn.BoundThis != nil {
		this = fn.BoundThis
	}
	ret, nerr := fn.Native(vm.env, this, args)
	if ret == nil {
		ret = Undef
	}
	switch nerr {
	case object.NoError:
		return ret, nil
	case object.WrongNumberOfArgs:
		return nil, &RuntimeError{
			Message: fmt.Sprintf("wrong number of arguments to %s", fn.Name),
			Thrown:  &object.String{Value: fmt.Sprintf("wrong number of arguments to %s", fn.Name)},
		}
	case object.WrongTypeOfArg:
		return nil, &RuntimeError{
			Message: fmt.Sprintf("wrong type of argument to %s", fn.Name),
			Thrown:  &object.String{Value: fmt.Sprintf("wrong type of argument to %s", fn.Name)},
		}
	default:
		return nil, &RuntimeError{Message: ret.Inspect(), Thrown: ret}
	}
}

// enterScript switches the machine into the given script function,
// binding parameters to undefined; the caller fills in arguments.
func (vm *VM) enterScript(fn *object.Function, this object.Object, isNew bool, newThis object.Object) error {
	if len(fn.Instructions) == 0 {
		return &RuntimeError{
			Message: fmt.Sprintf("attempt to call empty function %s", fn.Name),
			Thrown:  &object.String{Value: fmt.Sprintf("attempt to call empty function %s", fn.Name)},
		}
	}
	outer := fn.Env
	if outer == nil {
		outer = vm.globals
	}
	vm.ins = fn.Instructions
	vm.ip = 0
	if fn.Consts != nil {
		vm.constants = fn.Consts
	}
	vm.env = object.NewEnclosedEnvironment(outer)
	vm.tryData = nil
	vm.lines = fn.Lines
	vm.fnName = fn.Name
	vm.isNew = isNew
	vm.newThis = newThis
	if fn.BoundThis != nil {
		this = fn.BoundThis
	}
	vm.this = this
	for _, name := range fn.Parameters {
		vm.env.ForceSet(name, Undef, false)
	}
	return nil
}

// push adds a value to the operand stack.
func (vm *VM) push(o object.Object) {
	vm.stack = append(vm.stack, o)
}

// pop removes and returns the top of the operand stack.
func (vm *VM) pop() (object.Object, error) {
	if len(vm.stack) == 0 {
		return nil, fmt.Errorf("pop from an empty stack")
	}
	o := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return o, nil
}

// pop2 pops the top two stack entries, returning them top-first.
func (vm *VM) pop2() (object.Object, object.Object, error) {
	a, err := vm.pop()
	if err != nil {
		return nil, nil, err
	}
	b, err := vm.pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// curLine returns the source line of the given offset in the current
// function, or zero when no debug information is present.
func (vm *VM) curLine(offset int) int {
	line := 0
	for _, e := range vm.lines {
		if e.Offset > offset {
			break
		}
		line = e.Line
	}
	return line
}

// raise transfers control to the innermost handler for the given
// exception value, restoring scopes and the operand stack as it
// goes.  When no handler exists anywhere on the call stack the
// accumulated RuntimeError is returned.
func (vm *VM) raise(val object.Object, msg string, opStart int) *RuntimeError {
	var traceback []TraceEntry

	for {
		if n := len(vm.tryData); n > 0 {
			td := vm.tryData[n-1]
			vm.tryData = vm.tryData[:n-1]

			for vm.env.Depth() > td.envDepth {
				vm.env = vm.env.Outer()
			}
			if td.stackSize < len(vm.stack) {
				vm.stack = vm.stack[:td.stackSize]
			}
			vm.ip = td.catchTarget
			vm.exc = val
			vm.excSet = true
			return nil
		}

		line := vm.curLine(opStart)
		traceback = append(traceback, TraceEntry{Line: line, Text: vm.debug.LineText(line)})

		if len(vm.frames) == 0 {
			return &RuntimeError{Message: msg, Thrown: val, Traceback: traceback}
		}
		f := vm.frames[len(vm.frames)-1]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.ins, vm.ip, vm.env = f.ins, f.ip, f.env
		vm.tryData, vm.this = f.tryData, f.this
		vm.isNew, vm.newThis = f.isNew, f.newThis
		vm.lines, vm.fnName = f.lines, f.fnName
		if f.consts != nil {
			vm.constants = f.consts
		}
		opStart = vm.ip
	}
}

// raiseString raises a VM-generated error, whose thrown value is the
// message itself as a string.
func (vm *VM) raiseString(opStart int, format string, args ...interface{}) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	return vm.raise(&object.String{Value: msg}, msg, opStart)
}

// raiseRuntime re-raises an error produced by a nested invocation,
// preserving the thrown value.
func (vm *VM) raiseRuntime(opStart int, err error) *RuntimeError {
	if re, ok := err.(*RuntimeError); ok {
		thrown := re.Thrown
		if thrown == nil {
			thrown = &object.String{Value: re.Message}
		}
		return vm.raise(thrown, re.Message, opStart)
	}
	return vm.raiseString(opStart, "%s", err.Error())
}

// loop is the dispatch loop: it consumes instructions until a
// top-level return, a HALT, or an uncaught exception.
func (vm *VM) loop() (object.Object, error) {

	if len(vm.ins) < 1 {
		return nil, fmt.Errorf("the bytecode program is empty")
	}

	for !vm.stopped {

		if vm.ip >= len(vm.ins) {
			return nil, fmt.Errorf("instruction pointer ran off the end of the bytecode")
		}

		opStart := vm.ip
		op := code.Opcode(vm.ins[vm.ip])
		opLen := code.Length(op)
		if vm.ip+opLen > len(vm.ins) {
			return nil, fmt.Errorf("truncated instruction %s at offset %d", code.String(op), vm.ip)
		}

		if vm.Trace {
			fmt.Printf("  %04d\t%s\tstack=%d\n", opStart, code.String(op), len(vm.stack))
		}

		// Immediates.
		var u32 uint32
		var i32 int32
		switch op {
		case code.OpPush, code.OpJmp, code.OpJmpFalse:
			i32 = code.ReadInt32(vm.ins[vm.ip+1:])
		default:
			if opLen >= 5 {
				u32 = code.ReadUint32(vm.ins[vm.ip+1:])
			}
		}

		// Advance past the instruction; jumps overwrite vm.ip.
		vm.ip = opStart + opLen

		var rerr *RuntimeError
		done := false
		var result object.Object

		switch op {

		case code.OpNop:

		case code.OpConst:
			rerr = vm.opConst(opStart, int(u32))

		case code.OpConst0:
			vm.push(&object.Integer{Value: 0})
		case code.OpConst1:
			vm.push(&object.Integer{Value: 1})
		case code.OpConstN1:
			vm.push(&object.Integer{Value: -1})

		case code.OpPush:
			idx := int(i32)
			if idx < 0 {
				idx += len(vm.stack)
			}
			if idx < 0 || idx >= len(vm.stack) {
				return nil, fmt.Errorf("PUSH index %d out of range", i32)
			}
			vm.push(vm.stack[idx])

		case code.OpPop:
			if _, err := vm.pop(); err != nil {
				return nil, err
			}

		case code.OpPopN:
			n := int(u32)
			if n > len(vm.stack) {
				return nil, fmt.Errorf("POPN %d exceeds stack size %d", n, len(vm.stack))
			}
			vm.stack = vm.stack[:len(vm.stack)-n]

		case code.OpSet:
			idx := int(u32)
			if idx >= len(vm.stack) {
				return nil, fmt.Errorf("SET index %d out of range", idx)
			}
			vm.stack[idx] = vm.stack[len(vm.stack)-1]

		case code.OpStack:
			for i := 0; i < int(u32); i++ {
				vm.push(Undef)
			}
		case code.OpStack1:
			vm.push(Undef)

		case code.OpArray:
			n := int(u32)
			if n > len(vm.stack) {
				return nil, fmt.Errorf("ARRAY %d exceeds stack size %d", n, len(vm.stack))
			}
			elems := make([]object.Object, n)
			copy(elems, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(&object.Array{Elements: elems})

		case code.OpObject:
			n := int(u32)
			if 2*n > len(vm.stack) {
				return nil, fmt.Errorf("OBJECT %d exceeds stack size %d", n, len(vm.stack))
			}
			base := len(vm.stack) - 2*n
			in := object.NewInstance(nil)
			for i := 0; i < n; i++ {
				key := vm.stack[base+2*i]
				val := vm.stack[base+2*i+1]
				in.SetField(object.ToString(key), val)
			}
			vm.stack = vm.stack[:base]
			vm.push(in)

		case code.OpClass:
			rerr = vm.opClass(opStart,
				int(vm.ins[opStart+1]), int(vm.ins[opStart+2]),
				int(vm.ins[opStart+3]), int(vm.ins[opStart+4]))

		case code.OpIter:
			rerr = vm.opIter(opStart)

		case code.OpDel:
			key, target, err := vm.pop2()
			if err != nil {
				return nil, err
			}
			in, ok := target.(*object.Instance)
			if !ok {
				rerr = vm.raiseString(opStart, "cannot delete members of a %s", object.TypeOf(target))
				break
			}
			vm.push(vm.boolean(in.Delete(object.ToString(key))))

		case code.OpTypeof:
			v, err := vm.pop()
			if err != nil {
				return nil, err
			}
			vm.push(&object.String{Value: object.TypeOf(v)})

		case code.OpInstanceOf:
			rerr = vm.opInstanceOf(opStart)

		case code.OpCall:
			rerr = vm.opCall(opStart, int(u32))

		case code.OpNew:
			rerr = vm.opNew(opStart, int(u32))

		case code.OpReturn:
			val, err := vm.pop()
			if err != nil {
				return nil, err
			}
			if vm.isNew {
				val = vm.newThis
			}
			if len(vm.frames) == 0 {
				return val, nil
			}
			f := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.ins, vm.ip, vm.env = f.ins, f.ip, f.env
			vm.tryData, vm.this = f.tryData, f.this
			vm.isNew, vm.newThis = f.isNew, f.newThis
			vm.lines, vm.fnName = f.lines, f.fnName
			if f.consts != nil {
				vm.constants = f.consts
			}
			vm.push(val)

		case code.OpThis:
			if vm.this == nil {
				vm.push(Undef)
			} else {
				vm.push(vm.this)
			}

		case code.OpOpenScope:
			vm.env = object.NewEnclosedEnvironment(vm.env)

		case code.OpCloseScope:
			if vm.env.Outer() == nil {
				return nil, fmt.Errorf("CLOSESCOPE at global scope")
			}
			vm.env = vm.env.Outer()

		case code.OpDeclVar, code.OpDeclLet, code.OpDeclConst:
			name, ok := vm.constantName(int(u32))
			if !ok {
				return nil, fmt.Errorf("bad constant index %d for declaration", u32)
			}
			val, err := vm.pop()
			if err != nil {
				return nil, err
			}
			var derr error
			switch op {
			case code.OpDeclVar:
				derr = vm.env.DeclareVar(name, val)
			case code.OpDeclLet:
				derr = vm.env.DeclareLet(name, val)
			default:
				derr = vm.env.DeclareConst(name, val)
			}
			if derr != nil {
				rerr = vm.raiseString(opStart, "%s", derr.Error())
			}

		case code.OpGetVar:
			name, ok := vm.constantName(int(u32))
			if !ok {
				return nil, fmt.Errorf("bad constant index %d for variable", u32)
			}
			val, found := vm.env.Get(name)
			if !found {
				rerr = vm.raiseString(opStart, "undeclared variable %s", name)
				break
			}
			vm.push(val)

		case code.OpSetVar:
			name, ok := vm.constantName(int(u32))
			if !ok {
				return nil, fmt.Errorf("bad constant index %d for variable", u32)
			}
			val, err := vm.pop()
			if err != nil {
				return nil, err
			}
			if serr := vm.env.Set(name, val); serr != nil {
				rerr = vm.raiseString(opStart, "%s", serr.Error())
				break
			}
			vm.push(val)

		case code.OpObjGet:
			rerr = vm.opObjGet(opStart)

		case code.OpObjSet:
			rerr = vm.opObjSet(opStart)

		case code.OpJmp:
			vm.ip = opStart + int(i32)

		case code.OpJmpFalse:
			cond, err := vm.pop()
			if err != nil {
				return nil, err
			}
			if !cond.True() {
				vm.ip = opStart + int(i32)
			}

		case code.OpSwitch:
			rerr = vm.opSwitch(opStart, int(u32))

		case code.OpGoto:
			depth := int(vm.ins[opStart+5])
			for i := 0; i < depth; i++ {
				if vm.env.Outer() == nil {
					return nil, fmt.Errorf("GOTO scope-pop at global scope")
				}
				vm.env = vm.env.Outer()
			}
			vm.ip = int(u32)

		case code.OpTry:
			vm.tryData = append(vm.tryData, TryData{
				envDepth:    vm.env.Depth(),
				stackSize:   len(vm.stack),
				catchTarget: int(u32),
			})

		case code.OpEndTry:
			if len(vm.tryData) == 0 {
				return nil, fmt.Errorf("ENDTRY without TRY")
			}
			vm.tryData = vm.tryData[:len(vm.tryData)-1]

		case code.OpThrow:
			val, err := vm.pop()
			if err != nil {
				return nil, err
			}
			rerr = vm.raise(val, object.ToString(val), opStart)

		case code.OpRethrow:
			if !vm.excSet {
				// Nothing in flight: the finally completed a
				// normal path.
				break
			}
			val := vm.exc
			vm.exc, vm.excSet = nil, false
			rerr = vm.raise(val, object.ToString(val), opStart)

		case code.OpLoadExc:
			if !vm.excSet {
				vm.push(Undef)
				break
			}
			vm.push(vm.exc)
			vm.exc, vm.excSet = nil, false

		case code.OpConcat:
			n := int(u32)
			if n > len(vm.stack) {
				return nil, fmt.Errorf("CONCAT %d exceeds stack size %d", n, len(vm.stack))
			}
			out := ""
			for _, o := range vm.stack[len(vm.stack)-n:] {
				out += object.ToString(o)
			}
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(&object.String{Value: out})

		case code.OpBitNot, code.OpNot, code.OpNegate:
			rerr = vm.executeUnaryOperation(op, opStart)

		case code.OpPow, code.OpMul, code.OpDiv, code.OpMod, code.OpAdd,
			code.OpSub, code.OpBitLsh, code.OpBitRsh, code.OpBitURsh,
			code.OpLess, code.OpLessEqual, code.OpGreater,
			code.OpGreaterEqual, code.OpEqual, code.OpNotEqual,
			code.OpStrictEqual, code.OpBitAnd, code.OpBitOr,
			code.OpBitXor:
			rerr = vm.executeBinaryOperation(op, opStart)

		case code.OpTern:
			c, err := vm.pop()
			if err != nil {
				return nil, err
			}
			a, b, err := vm.pop2()
			if err != nil {
				return nil, err
			}
			if c.True() {
				vm.push(a)
			} else {
				vm.push(b)
			}

		case code.OpHalt:
			done = true
			if len(vm.stack) > 0 {
				result = vm.stack[len(vm.stack)-1]
			} else {
				result = Undef
			}

		default:
			return nil, fmt.Errorf("unhandled opcode: %v", op)
		}

		if rerr != nil {
			return nil, rerr
		}
		if done {
			return result, nil
		}
	}

	return Undef, nil
}

// constantName resolves a constant-pool index to its string value.
func (vm *VM) constantName(idx int) (string, bool) {
	if idx < 0 || idx >= len(vm.constants) {
		return "", false
	}
	s, ok := vm.constants[idx].(*object.String)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// opConst loads a constant, rebinding function constants to the
// current environment and instantiating regexp constants.
func (vm *VM) opConst(opStart, idx int) *RuntimeError {
	if idx < 0 || idx >= len(vm.constants) {
		return vm.raiseString(opStart, "bad constant index %d", idx)
	}
	c := vm.constants[idx]

	switch v := c.(type) {
	case *object.Function:
		vm.push(v.Rebind(vm.env))
	case *object.Regexp:
		if vm.NewRegexp == nil {
			return vm.raiseString(opStart, "regular expressions are not available")
		}
		re, err := vm.NewRegexp(v.Pattern, v.Flags)
		if err != nil {
			return vm.raiseRuntime(opStart, err)
		}
		vm.push(re)
	default:
		vm.push(c)
	}
	return nil
}

// opCall implements CALL: the stack carries `this, fn, args...`.
func (vm *VM) opCall(opStart, argc int) *RuntimeError {
	if len(vm.stack) < argc+2 {
		return vm.raiseString(opStart, "CALL underflow")
	}
	base := len(vm.stack) - argc
	args := make([]object.Object, argc)
	copy(args, vm.stack[base:])
	fnObj := vm.stack[base-1]
	this := vm.stack[base-2]
	vm.stack = vm.stack[:base-2]

	fn, ok := fnObj.(*object.Function)
	if !ok {
		return vm.raiseString(opStart, "attempt to call a non-function (%s)", object.TypeOf(fnObj))
	}

	if fn.Kind != object.ScriptFunction {
		ret, err := vm.callNative(fn, this, args)
		if err != nil {
			return vm.raiseRuntime(opStart, err)
		}
		vm.push(ret)
		return nil
	}

	if len(vm.frames) >= maxCallDepth {
		return vm.raiseString(opStart, "call stack exhausted")
	}

	vm.frames = append(vm.frames, Frame{
		ins: vm.ins, ip: vm.ip, env: vm.env, tryData: vm.tryData,
		this: vm.this, isNew: vm.isNew, newThis: vm.newThis,
		lines: vm.lines, fnName: vm.fnName, consts: vm.constants,
	})
	if err := vm.enterScript(fn, this, false, nil); err != nil {
		vm.frames = vm.frames[:len(vm.frames)-1]
		return vm.raiseRuntime(opStart, err)
	}
	for i, name := range fn.Parameters {
		if i < len(args) {
			vm.env.ForceSet(name, args[i], false)
		}
	}
	return nil
}

// opNew implements NEW: the stack carries `fn, args...`; a fresh
// object whose prototype is fn.prototype becomes `this`, and the
// constructed object is the result.
func (vm *VM) opNew(opStart, argc int) *RuntimeError {
	if len(vm.stack) < argc+1 {
		return vm.raiseString(opStart, "NEW underflow")
	}
	base := len(vm.stack) - argc
	args := make([]object.Object, argc)
	copy(args, vm.stack[base:])
	fnObj := vm.stack[base-1]
	vm.stack = vm.stack[:base-1]

	fn, ok := fnObj.(*object.Function)
	if !ok {
		return vm.raiseString(opStart, "attempt to construct a non-function (%s)", object.TypeOf(fnObj))
	}

	if fn.Kind != object.ScriptFunction {
		// Host constructors build and return the object
		// themselves; `this` is a fresh instance they may use.
		this := object.NewInstance(fn.Prototype())
		ret, err := vm.callNative(fn, this, args)
		if err != nil {
			return vm.raiseRuntime(opStart, err)
		}
		if _, undef := ret.(*object.Undefined); undef {
			vm.push(this)
		} else {
			vm.push(ret)
		}
		return nil
	}

	if len(vm.frames) >= maxCallDepth {
		return vm.raiseString(opStart, "call stack exhausted")
	}

	this := object.NewInstance(fn.Prototype())
	vm.frames = append(vm.frames, Frame{
		ins: vm.ins, ip: vm.ip, env: vm.env, tryData: vm.tryData,
		this: vm.this, isNew: vm.isNew, newThis: vm.newThis,
		lines: vm.lines, fnName: vm.fnName, consts: vm.constants,
	})
	if err := vm.enterScript(fn, this, true, this); err != nil {
		vm.frames = vm.frames[:len(vm.frames)-1]
		return vm.raiseRuntime(opStart, err)
	}
	for i, name := range fn.Parameters {
		if i < len(args) {
			vm.env.ForceSet(name, args[i], false)
		}
	}
	return nil
}

// opInstanceOf walks the left operand's prototype chain comparing
// each node's `constructor` field, by reference, with the right
// operand.
func (vm *VM) opInstanceOf(opStart int) *RuntimeError {
	right, left, err := vm.pop2()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}
	fn, ok := right.(*object.Function)
	if !ok {
		return vm.raiseString(opStart, "right-hand side of instanceof is not a function")
	}
	in, ok := left.(*object.Instance)
	if !ok {
		vm.push(False)
		return nil
	}
	for cur := in; cur != nil; cur = cur.Proto {
		if ctor, ok := cur.GetOwn("constructor"); ok {
			if cf, ok := ctor.(*object.Function); ok && sameFunction(cf, fn) {
				vm.push(True)
				return nil
			}
		}
	}
	vm.push(False)
	return nil
}

// sameFunction compares callables by identity, treating closure
// rebinds of one function as the same function.
func sameFunction(a, b *object.Function) bool {
	if a == b {
		return true
	}
	if a.Kind == object.ScriptFunction && b.Kind == object.ScriptFunction {
		return len(a.Instructions) > 0 && len(b.Instructions) > 0 &&
			&a.Instructions[0] == &b.Instructions[0]
	}
	return false
}

// opSwitch consumes a jump table (an array of [value, target] pairs)
// and the scrutinee, transferring control to the matching target or
// to the default.
func (vm *VM) opSwitch(opStart, defaultTarget int) *RuntimeError {
	table, scrutinee, err := vm.pop2()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}
	arr, ok := table.(*object.Array)
	if !ok {
		return vm.raiseString(opStart, "invalid switch table")
	}
	for _, pair := range arr.Elements {
		p, ok := pair.(*object.Array)
		if !ok || len(p.Elements) != 2 {
			return vm.raiseString(opStart, "invalid switch table")
		}
		target, ok := p.Elements[1].(*object.Integer)
		if !ok {
			return vm.raiseString(opStart, "invalid switch table")
		}
		if object.StrictEquals(scrutinee, p.Elements[0]) {
			vm.ip = int(target.Value)
			return nil
		}
	}
	vm.ip = defaultTarget
	return nil
}

// boolean converts a native bool to our boolean singletons.
func (vm *VM) boolean(b bool) *object.Boolean {
	if b {
		return True
	}
	return False
}
