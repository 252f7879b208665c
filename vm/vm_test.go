// Tests exercising the dispatch loop against hand-assembled
// bytecode, without the compiler in the way.

package vm

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
)

// asm stitches opcode bytes and immediates together.
func asm(parts ...interface{}) code.Instructions {
	var out code.Instructions
	for _, p := range parts {
		switch v := p.(type) {
		case code.Opcode:
			out = append(out, byte(v))
		case int:
			out = binary.NativeEndian.AppendUint32(out, uint32(int32(v)))
		case byte:
			out = append(out, v)
		default:
			panic("bad asm part")
		}
	}
	return out
}

// runBytecode executes a hand-assembled function body.
func runBytecode(t *testing.T, consts []object.Object, ins code.Instructions) (object.Object, error) {
	t.Helper()
	machine := New(object.NewEnvironment())
	fn := &object.Function{
		Kind:         object.ScriptFunction,
		Name:         "test",
		Instructions: ins,
		Consts:       consts,
	}
	return machine.RunFunction(fn, Undef, nil)
}

func TestConstAndReturn(t *testing.T) {
	out, err := runBytecode(t,
		[]object.Object{&object.String{Value: "hi"}},
		asm(code.OpConst, 0, code.OpReturn))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "hi" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestIntegerArithmetic(t *testing.T) {
	tests := []struct {
		op   code.Opcode
		l, r int64
		want string
	}{
		{code.OpAdd, 2, 3, "5"},
		{code.OpSub, 2, 3, "-1"},
		{code.OpMul, 4, 5, "20"},
		{code.OpDiv, 10, 2, "5"},
		{code.OpMod, 7, 3, "1"},
		{code.OpPow, 2, 8, "256"},
	}
	for _, tc := range tests {
		out, err := runBytecode(t,
			[]object.Object{&object.Integer{Value: tc.l}, &object.Integer{Value: tc.r}},
			asm(code.OpConst, 0, code.OpConst, 1, tc.op, code.OpReturn))
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if out.Inspect() != tc.want {
			t.Fatalf("%s(%d, %d) gave %s, wanted %s",
				code.String(tc.op), tc.l, tc.r, out.Inspect(), tc.want)
		}
		if out.Type() != object.INTEGER {
			t.Fatalf("%s must stay integer", code.String(tc.op))
		}
	}
}

func TestDivisionPromotes(t *testing.T) {
	// Inexact division promotes to double.
	out, err := runBytecode(t,
		[]object.Object{&object.Integer{Value: 1}, &object.Integer{Value: 2}},
		asm(code.OpConst, 0, code.OpConst, 1, code.OpDiv, code.OpReturn))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Type() != object.DOUBLE || out.Inspect() != "0.5" {
		t.Fatalf("1/2 gave %s %s", out.Type(), out.Inspect())
	}

	// Division by zero promotes instead of raising.
	out, err = runBytecode(t,
		[]object.Object{&object.Integer{Value: 1}, &object.Integer{Value: 0}},
		asm(code.OpConst, 0, code.OpConst, 1, code.OpDiv, code.OpReturn))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "Infinity" {
		t.Fatalf("1/0 gave %s", out.Inspect())
	}
}

func TestMixedPromotion(t *testing.T) {
	out, err := runBytecode(t,
		[]object.Object{&object.Integer{Value: 2}, &object.Double{Value: 0.5}},
		asm(code.OpConst, 0, code.OpConst, 1, code.OpAdd, code.OpReturn))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Type() != object.DOUBLE || out.Inspect() != "2.5" {
		t.Fatalf("2 + 0.5 gave %s %s", out.Type(), out.Inspect())
	}
}

func TestJumps(t *testing.T) {
	// A false condition takes the else-branch.
	consts := []object.Object{
		&object.Boolean{Value: false},
		&object.String{Value: "then"},
		&object.String{Value: "else"},
	}
	ins := asm(
		code.OpConst, 0, // @0
		code.OpJmpFalse, 15, // @5 -> @20
		code.OpConst, 1, // @10
		code.OpJmp, 10, // @15 -> @25
		code.OpConst, 2, // @20
		code.OpReturn, // @25
	)
	out, err := runBytecode(t, consts, ins)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "else" {
		t.Fatalf("unexpected branch: %s", out.Inspect())
	}

	// A true condition falls through.
	consts[0] = &object.Boolean{Value: true}
	out, err = runBytecode(t, consts, ins)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "then" {
		t.Fatalf("unexpected branch: %s", out.Inspect())
	}
}

func TestStackOps(t *testing.T) {
	// PUSH duplicates by negative index.
	out, err := runBytecode(t,
		[]object.Object{&object.Integer{Value: 1}, &object.Integer{Value: 2}},
		asm(
			code.OpConst, 0, // [1]
			code.OpConst, 1, // [1 2]
			code.OpPush, -2, // [1 2 1]
			code.OpAdd, // [1 3]
			code.OpReturn,
		))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "3" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestThrowCaught(t *testing.T) {
	// TRY installs a handler; the thrown value is delivered via
	// LOADEXC at the catch target.
	consts := []object.Object{&object.String{Value: "boom"}}
	ins := asm(
		code.OpTry, 11, // @0, catch target @11
		code.OpConst, 0, // @5
		code.OpThrow,   // @10
		code.OpLoadExc, // @11
		code.OpReturn,  // @12
	)
	out, err := runBytecode(t, consts, ins)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "boom" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestThrowUncaught(t *testing.T) {
	consts := []object.Object{&object.String{Value: "kaput"}}
	_, err := runBytecode(t, consts, asm(code.OpConst, 0, code.OpThrow))
	if err == nil {
		t.Fatalf("expected an error")
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected a RuntimeError, got %T", err)
	}
	if re.Thrown.Inspect() != "kaput" {
		t.Fatalf("unexpected thrown value %s", re.Thrown.Inspect())
	}
}

func TestUnwindRestoresStackAndScopes(t *testing.T) {
	// Junk accumulated inside the try, and a scope opened there,
	// are both rolled back when the handler is entered.
	consts := []object.Object{
		&object.String{Value: "x"},
		&object.String{Value: "caught"},
	}
	ins := asm(
		code.OpTry, 24, // @0, catch @24
		code.OpOpenScope,    // @5
		code.OpConst, 0,     // @6   junk
		code.OpConst, 0,     // @11  junk
		code.OpConst, 1,     // @16
		code.OpThrow,        // @21
		code.OpCloseScope,   // @22 (never reached)
		code.OpNop,          // @23
		code.OpLoadExc,      // @24
		code.OpReturn,       // @25
	)
	machine := New(object.NewEnvironment())
	fn := &object.Function{Kind: object.ScriptFunction, Instructions: ins, Consts: consts}
	out, err := machine.RunFunction(fn, Undef, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "caught" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestGotoClosesScopes(t *testing.T) {
	consts := []object.Object{&object.Integer{Value: 9}}
	ins := asm(
		code.OpOpenScope, // @0
		code.OpOpenScope, // @1
		code.OpGoto, 8, byte(2), // @2 -> @8, closing 2 scopes
		code.OpConst, 0, // @8
		code.OpReturn, // @13
	)
	out, err := runBytecode(t, consts, ins)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "9" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestCallNonFunction(t *testing.T) {
	consts := []object.Object{&object.Integer{Value: 3}}
	ins := asm(
		code.OpStack1,   // this
		code.OpConst, 0, // 3, not callable
		code.OpCall, 0,
	)
	_, err := runBytecode(t, consts, ins)
	if err == nil || !strings.Contains(err.Error(), "non-function") {
		t.Fatalf("expected a non-function error, got %v", err)
	}
}

func TestNativeErrorChannel(t *testing.T) {
	machine := New(object.NewEnvironment())

	bad := object.NewNative("fussy",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			if len(args) != 1 {
				return nil, object.WrongNumberOfArgs
			}
			return &object.String{Value: "nope"}, object.ReturnValueIsException
		})

	_, err := machine.RunFunction(bad, Undef, nil)
	if err == nil || !strings.Contains(err.Error(), "wrong number of arguments") {
		t.Fatalf("unexpected error %v", err)
	}

	_, err = machine.RunFunction(bad, Undef, []object.Object{Undef})
	re, ok := err.(*RuntimeError)
	if !ok || re.Thrown.Inspect() != "nope" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTypeofOpcode(t *testing.T) {
	out, err := runBytecode(t,
		[]object.Object{&object.Double{Value: 1.5}},
		asm(code.OpConst, 0, code.OpTypeof, code.OpReturn))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "double" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}

func TestHaltLeavesResult(t *testing.T) {
	out, err := runBytecode(t,
		[]object.Object{&object.Integer{Value: 7}},
		asm(code.OpConst, 0, code.OpHalt))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.Inspect() != "7" {
		t.Fatalf("unexpected result %s", out.Inspect())
	}
}
