package code

import (
	"encoding/binary"
	"strings"
	"testing"
)

func TestLengths(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpNop, 1},
		{OpConst, 5},
		{OpConst0, 1},
		{OpPush, 5},
		{OpPop, 1},
		{OpClass, 5},
		{OpGoto, 6},
		{OpTry, 5},
		{OpReturn, 1},
		{OpHalt, 1},
		{OpObjGet, 1},
		{OpCall, 5},
	}
	for _, tc := range tests {
		if got := Length(tc.op); got != tc.want {
			t.Fatalf("Length(%s) gave %d, wanted %d", String(tc.op), got, tc.want)
		}
	}
}

func TestStringNames(t *testing.T) {
	if String(OpConst) != "CONST" {
		t.Fatalf("unexpected name %s", String(OpConst))
	}
	if String(OpJmpFalse) != "JMPFALSE" {
		t.Fatalf("unexpected name %s", String(OpJmpFalse))
	}
	if String(Opcode(250)) != "UNKNOWN" {
		t.Fatalf("unknown opcodes must stringify as UNKNOWN")
	}
}

// assemble builds a tiny instruction stream by hand.
func assemble(parts ...[]byte) Instructions {
	var out Instructions
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}

func TestWalk(t *testing.T) {
	ins := assemble(
		[]byte{byte(OpConst)}, u32(7),
		[]byte{byte(OpConst0)},
		[]byte{byte(OpAdd)},
		[]byte{byte(OpGoto)}, u32(3), []byte{2},
		[]byte{byte(OpHalt)},
	)

	var ops []Opcode
	var args [][]int
	err := Walk(ins, func(offset int, op Opcode, a []int) bool {
		ops = append(ops, op)
		args = append(args, a)
		return true
	})
	if err != nil {
		t.Fatalf("walk failed: %s", err)
	}

	want := []Opcode{OpConst, OpConst0, OpAdd, OpGoto, OpHalt}
	if len(ops) != len(want) {
		t.Fatalf("walked %d instructions, wanted %d", len(ops), len(want))
	}
	for i, op := range want {
		if ops[i] != op {
			t.Fatalf("instruction %d is %s, wanted %s", i, String(ops[i]), String(op))
		}
	}
	if args[0][0] != 7 {
		t.Fatalf("CONST immediate decoded as %d", args[0][0])
	}
	if args[3][0] != 3 || args[3][1] != 2 {
		t.Fatalf("GOTO immediates decoded as %v", args[3])
	}
}

func TestWalkTruncated(t *testing.T) {
	ins := Instructions{byte(OpConst), 0, 0}
	if err := Walk(ins, func(int, Opcode, []int) bool { return true }); err == nil {
		t.Fatalf("expected a truncation error")
	}
}

func TestDisassemble(t *testing.T) {
	ins := assemble([]byte{byte(OpConst)}, u32(1), []byte{byte(OpHalt)})
	out := Disassemble(ins)
	if !strings.Contains(out, "CONST") || !strings.Contains(out, "HALT") {
		t.Fatalf("unexpected disassembly:\n%s", out)
	}
}

func TestNegativeImmediates(t *testing.T) {
	ins := assemble([]byte{byte(OpPush)}, u32(0xFFFFFFFF))
	if got := ReadInt32(ins[1:]); got != -1 {
		t.Fatalf("ReadInt32 gave %d, wanted -1", got)
	}
}
