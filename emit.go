// Bytecode emission helpers: append instructions, back-patch jump
// targets, and maintain the deduplicated constant pool and the
// per-function debug-line list.

package mildew

import (
	"encoding/binary"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/token"
)

// emit appends an immediate-free instruction and returns its offset.
func (c *compiler) emit(op code.Opcode) int {
	pos := len(c.ins)
	c.ins = append(c.ins, byte(op))
	c.lastOp = op
	return pos
}

// emitU32 appends an instruction with one u32 immediate.
func (c *compiler) emitU32(op code.Opcode, v uint32) int {
	pos := len(c.ins)
	c.ins = append(c.ins, byte(op))
	c.ins = binary.NativeEndian.AppendUint32(c.ins, v)
	c.lastOp = op
	return pos
}

// emitI32 appends an instruction with one i32 immediate (PUSH and
// the relative jumps).
func (c *compiler) emitI32(op code.Opcode, v int32) int {
	pos := len(c.ins)
	c.ins = append(c.ins, byte(op))
	c.ins = binary.NativeEndian.AppendUint32(c.ins, uint32(v))
	c.lastOp = op
	return pos
}

// emitJumpTo appends a relative jump to a known earlier target.
func (c *compiler) emitJumpTo(op code.Opcode, target int) int {
	pos := len(c.ins)
	return c.emitI32(op, int32(target-pos))
}

// emitGoto appends an absolute GOTO with a scope-pop count; the
// target is usually patched later.
func (c *compiler) emitGoto(target uint32, depth byte) int {
	pos := len(c.ins)
	c.ins = append(c.ins, byte(code.OpGoto))
	c.ins = binary.NativeEndian.AppendUint32(c.ins, target)
	c.ins = append(c.ins, depth)
	c.lastOp = code.OpGoto
	return pos
}

// emitClass appends a CLASS instruction with its four u8 counts.
func (c *compiler) emitClass(methods, getters, setters, statics byte) int {
	pos := len(c.ins)
	c.ins = append(c.ins, byte(code.OpClass), methods, getters, setters, statics)
	c.lastOp = code.OpClass
	return pos
}

// patchU32 rewrites the u32 immediate of an earlier instruction.
func (c *compiler) patchU32(pos int, v uint32) {
	binary.NativeEndian.PutUint32(c.ins[pos+1:], v)
}

// patchJump points a relative jump at the current end of the
// instruction stream.
func (c *compiler) patchJump(pos int) {
	binary.NativeEndian.PutUint32(c.ins[pos+1:], uint32(int32(len(c.ins)-pos)))
}

// addConstant adds a constant to the pool, deduplicating primitives
// through their hash-key.
func (c *compiler) addConstant(obj object.Object) int {
	if h, ok := obj.(object.Hashable); ok {
		if idx, ok := c.constIndex[h.HashKey()]; ok {
			return idx
		}
		c.constants = append(c.constants, obj)
		c.constIndex[h.HashKey()] = len(c.constants) - 1
		return len(c.constants) - 1
	}
	c.constants = append(c.constants, obj)
	return len(c.constants) - 1
}

// markLine records that the following instructions come from the
// given source line.
func (c *compiler) markLine(tok token.Token) {
	if tok.Line <= 0 {
		return
	}
	if n := len(c.lines); n > 0 && c.lines[n-1].Line == tok.Line {
		return
	}
	c.lines = append(c.lines, object.LineEntry{Offset: len(c.ins), Line: tok.Line})
}

// lastOpIs reports whether the last instruction emitted was the given
// opcode.
func (c *compiler) lastOpIs(op code.Opcode) bool {
	return len(c.ins) > 0 && c.lastOp == op
}
