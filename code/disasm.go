package code

import (
	"fmt"
	"strings"
)

// WalkFunc is the callback invoked for every instruction by Walk.
// The args slice holds the decoded immediates in order.  Returning
// false stops the walk.
type WalkFunc func(offset int, op Opcode, args []int) bool

// Walk decodes the instruction stream, invoking fn for every
// instruction.  An error is returned if the stream is truncated.
func Walk(ins Instructions, fn WalkFunc) error {
	ip := 0
	for ip < len(ins) {
		op := Opcode(ins[ip])
		ln := Length(op)
		if ip+ln > len(ins) {
			return fmt.Errorf("truncated instruction %s at offset %d", String(op), ip)
		}

		var args []int
		switch op {
		case OpClass:
			args = []int{int(ins[ip+1]), int(ins[ip+2]), int(ins[ip+3]), int(ins[ip+4])}
		case OpGoto:
			args = []int{int(ReadUint32(ins[ip+1:])), int(ins[ip+5])}
		case OpPush, OpJmp, OpJmpFalse:
			args = []int{int(ReadInt32(ins[ip+1:]))}
		default:
			if ln == 5 {
				args = []int{int(ReadUint32(ins[ip+1:]))}
			}
		}

		if !fn(ip, op, args) {
			return nil
		}
		ip += ln
	}
	return nil
}

// Disassemble renders the instruction stream as text, one line per
// instruction, in the form "  0004  CONST  2".
func Disassemble(ins Instructions) string {
	var out strings.Builder
	err := Walk(ins, func(offset int, op Opcode, args []int) bool {
		fmt.Fprintf(&out, "  %04d\t%-12s", offset, String(op))
		for _, a := range args {
			fmt.Fprintf(&out, "\t%d", a)
		}
		out.WriteString("\n")
		return true
	})
	if err != nil {
		fmt.Fprintf(&out, "  %s\n", err)
	}
	return out.String()
}
