// Package code contains definitions of the bytecode instructions.
//
// The instructions are used in two different ways, first of all the
// compiler will generate them as it walks the AST which resulted from
// parsing the users' program.  Secondly the virtual machine itself
// will interpret those instructions.
//
// Each opcode is a single byte, optionally followed by immediates of
// fixed width.  Immediates are stored in the host's native byte order,
// which is also why serialized programs are tied to the machine that
// compiled them.
package code

import "encoding/binary"

// Instructions is a type alias.
type Instructions []byte

// Opcode is a type-alias.
type Opcode byte

// Opcodes we support.
const (

	// OpNop does nothing.
	OpNop Opcode = iota

	// OpConst pushes a constant-pool entry; u32 immediate is the
	// pool index.  Script-function constants are rebound to the
	// current environment as they are loaded, which is how lexical
	// capture works.
	OpConst

	// Small-integer shortcuts, immediate-free.
	OpConst0
	OpConst1
	OpConstN1

	// OpPush duplicates a stack slot; i32 immediate is an absolute
	// index, or negative to address from the top (-1 is the top).
	OpPush

	// OpPop discards the top of the stack; OpPopN discards u32 slots.
	OpPop
	OpPopN

	// OpSet overwrites the stack slot named by the u32 immediate
	// with the current top, without popping.
	OpSet

	// OpStack pushes u32 undefineds; OpStack1 pushes exactly one.
	OpStack
	OpStack1

	// OpArray pops u32 items and pushes an array of them.
	OpArray

	// OpObject pops u32 key/value pairs (2*u32 items) and pushes an
	// object preserving insertion order.
	OpObject

	// OpClass assembles a class.  Four u8 immediates: the number of
	// methods, getters, setters and statics popped (alongside their
	// names), below a constructor and an optional base class.
	OpClass

	// OpIter pops an iterable and pushes a next-function.
	OpIter

	// OpDel pops a key then an object and removes the field.
	OpDel

	// OpTypeof replaces the top with its type-name string.
	OpTypeof

	// OpInstanceOf pops a constructor then an object, pushes bool.
	OpInstanceOf

	// OpCall invokes a callable with stack `this, fn, args...`; the
	// u32 immediate is the argument count.
	OpCall

	// OpNew constructs with stack `fn, args...`; u32 is the argument
	// count.  The constructed `this` is the result.
	OpNew

	// OpReturn pops one value and unwinds one frame.
	OpReturn

	// OpThis pushes the current `this`.
	OpThis

	// Scope control.
	OpOpenScope
	OpCloseScope

	// Declarations; u32 names a constant-pool string, and the
	// initializer is popped.  OpDeclVar targets the global
	// environment, let/const the current one.
	OpDeclVar
	OpDeclLet
	OpDeclConst

	// OpGetVar / OpSetVar read and write a binding named by the u32
	// constant-pool index.  Assigning undefined unbinds.
	OpGetVar
	OpSetVar

	// OpObjGet pops an object then a key and pushes the value,
	// walking the prototype chain and invoking getters.  OpObjSet
	// pops object, key, value and pushes the observable result.
	OpObjGet
	OpObjSet

	// OpJmp / OpJmpFalse are relative jumps with an i32 immediate.
	OpJmp
	OpJmpFalse

	// OpSwitch jumps through the table on the stack top; the u32
	// immediate is the absolute default target.
	OpSwitch

	// OpGoto is an absolute jump (u32) which first closes the u8
	// immediate count of scopes; it implements break/continue out of
	// nested blocks.
	OpGoto

	// Exception handling.
	OpTry
	OpEndTry
	OpThrow
	OpRethrow
	OpLoadExc

	// OpConcat pops u32 values and pushes their string concatenation.
	OpConcat

	// Unary operators.
	OpBitNot
	OpNot
	OpNegate

	// Binary operators, popping two and pushing one.
	OpPow
	OpMul
	OpDiv
	OpMod
	OpAdd
	OpSub
	OpBitLsh
	OpBitRsh
	OpBitURsh
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpEqual
	OpNotEqual
	OpStrictEqual
	OpBitAnd
	OpBitOr
	OpBitXor

	// OpTern pops c, a, b and pushes a if c is truthy, else b.
	OpTern

	// OpHalt stops the machine; the stack top is the result.
	OpHalt

	// OpFinal is a fake opcode marking the end of the set; it is
	// never generated and never executed.
	OpFinal
)

// lengths holds the full instruction width (opcode byte plus
// immediates) for every opcode.  Opcodes not listed are one byte.
var lengths = map[Opcode]int{
	OpConst:     5,
	OpPush:      5,
	OpPopN:      5,
	OpSet:       5,
	OpStack:     5,
	OpArray:     5,
	OpObject:    5,
	OpClass:     5,
	OpCall:      5,
	OpNew:       5,
	OpDeclVar:   5,
	OpDeclLet:   5,
	OpDeclConst: 5,
	OpGetVar:    5,
	OpSetVar:    5,
	OpJmp:       5,
	OpJmpFalse:  5,
	OpSwitch:    5,
	OpGoto:      6,
	OpTry:       5,
	OpConcat:    5,
}

// Length returns the width of the given instruction in bytes,
// including the opcode byte itself.
func Length(op Opcode) int {
	if n, ok := lengths[op]; ok {
		return n
	}
	return 1
}

// ReadUint32 returns a 32-bit unsigned immediate from the stream.
func ReadUint32(ins Instructions) uint32 {
	return binary.NativeEndian.Uint32(ins)
}

// ReadInt32 returns a 32-bit signed immediate from the stream.
func ReadInt32(ins Instructions) int32 {
	return int32(binary.NativeEndian.Uint32(ins))
}

// PutUint32 writes a 32-bit unsigned immediate into the stream.
func PutUint32(ins Instructions, v uint32) {
	binary.NativeEndian.PutUint32(ins, v)
}

// names maps opcodes to mnemonics for diagnostics.
var names = map[Opcode]string{
	OpNop:          "NOP",
	OpConst:        "CONST",
	OpConst0:       "CONST_0",
	OpConst1:       "CONST_1",
	OpConstN1:      "CONST_N1",
	OpPush:         "PUSH",
	OpPop:          "POP",
	OpPopN:         "POPN",
	OpSet:          "SET",
	OpStack:        "STACK",
	OpStack1:       "STACK_1",
	OpArray:        "ARRAY",
	OpObject:       "OBJECT",
	OpClass:        "CLASS",
	OpIter:         "ITER",
	OpDel:          "DEL",
	OpTypeof:       "TYPEOF",
	OpInstanceOf:   "INSTANCEOF",
	OpCall:         "CALL",
	OpNew:          "NEW",
	OpReturn:       "RETURN",
	OpThis:         "THIS",
	OpOpenScope:    "OPENSCOPE",
	OpCloseScope:   "CLOSESCOPE",
	OpDeclVar:      "DECLVAR",
	OpDeclLet:      "DECLLET",
	OpDeclConst:    "DECLCONST",
	OpGetVar:       "GETVAR",
	OpSetVar:       "SETVAR",
	OpObjGet:       "OBJGET",
	OpObjSet:       "OBJSET",
	OpJmp:          "JMP",
	OpJmpFalse:     "JMPFALSE",
	OpSwitch:       "SWITCH",
	OpGoto:         "GOTO",
	OpTry:          "TRY",
	OpEndTry:       "ENDTRY",
	OpThrow:        "THROW",
	OpRethrow:      "RETHROW",
	OpLoadExc:      "LOADEXC",
	OpConcat:       "CONCAT",
	OpBitNot:       "BITNOT",
	OpNot:          "NOT",
	OpNegate:       "NEGATE",
	OpPow:          "POW",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpBitLsh:       "BITLSH",
	OpBitRsh:       "BITRSH",
	OpBitURsh:      "BITURSH",
	OpLess:         "LT",
	OpLessEqual:    "LE",
	OpGreater:      "GT",
	OpGreaterEqual: "GE",
	OpEqual:        "EQUALS",
	OpNotEqual:     "NEQUALS",
	OpStrictEqual:  "STREQUALS",
	OpBitAnd:       "BITAND",
	OpBitOr:        "BITOR",
	OpBitXor:       "BITXOR",
	OpTern:         "TERN",
	OpHalt:         "HALT",
}

// String converts the given opcode to a string.
// This is useful for diagnostics.
func String(op Opcode) string {
	if s, ok := names[op]; ok {
		return s
	}
	return "UNKNOWN"
}
