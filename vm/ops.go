package vm

import (
	"math"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
)

// executeUnaryOperation implements BITNOT, NOT and NEGATE.
func (vm *VM) executeUnaryOperation(op code.Opcode, opStart int) *RuntimeError {
	operand, err := vm.pop()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}

	switch op {
	case code.OpNot:
		vm.push(vm.boolean(!operand.True()))

	case code.OpBitNot:
		vm.push(&object.Integer{Value: ^toInt64(operand)})

	case code.OpNegate:
		switch v := operand.(type) {
		case *object.Integer:
			vm.push(&object.Integer{Value: -v.Value})
		case *object.Double:
			vm.push(&object.Double{Value: -v.Value})
		default:
			vm.push(&object.Double{Value: -object.ToNumber(operand)})
		}
	}
	return nil
}

// executeBinaryOperation pops two operands and dispatches on the
// operator and the operand kinds.
func (vm *VM) executeBinaryOperation(op code.Opcode, opStart int) *RuntimeError {
	right, left, err := vm.pop2()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}

	switch op {

	case code.OpEqual:
		vm.push(vm.boolean(object.Equals(left, right)))
		return nil
	case code.OpNotEqual:
		vm.push(vm.boolean(!object.Equals(left, right)))
		return nil
	case code.OpStrictEqual:
		vm.push(vm.boolean(object.StrictEquals(left, right)))
		return nil

	case code.OpBitAnd:
		vm.push(&object.Integer{Value: toInt64(left) & toInt64(right)})
		return nil
	case code.OpBitOr:
		vm.push(&object.Integer{Value: toInt64(left) | toInt64(right)})
		return nil
	case code.OpBitXor:
		vm.push(&object.Integer{Value: toInt64(left) ^ toInt64(right)})
		return nil
	case code.OpBitLsh:
		vm.push(&object.Integer{Value: toInt64(left) << (uint64(toInt64(right)) & 63)})
		return nil
	case code.OpBitRsh:
		vm.push(&object.Integer{Value: toInt64(left) >> (uint64(toInt64(right)) & 63)})
		return nil
	case code.OpBitURsh:
		// The unsigned right-shift alone goes through 32-bit
		// semantics.
		vm.push(&object.Integer{Value: int64(uint32(toInt64(left)) >> (uint64(toInt64(right)) & 31))})
		return nil

	case code.OpAdd:
		// Any string operand concatenates.
		if left.Type() == object.STRING || right.Type() == object.STRING {
			vm.push(&object.String{Value: object.ToString(left) + object.ToString(right)})
			return nil
		}
	}

	// Arithmetic and comparison.
	li, lInt := left.(*object.Integer)
	ri, rInt := right.(*object.Integer)
	if lInt && rInt {
		return vm.evalIntegerInfixExpression(op, li.Value, ri.Value, opStart)
	}

	if op == code.OpLess || op == code.OpLessEqual ||
		op == code.OpGreater || op == code.OpGreaterEqual {
		// String-string comparison is lexicographic; everything
		// else coerces to number.
		if ls, ok := left.(*object.String); ok {
			if rs, ok := right.(*object.String); ok {
				return vm.evalStringCompare(op, ls.Value, rs.Value)
			}
		}
	}

	return vm.evalDoubleInfixExpression(op, object.ToNumber(left), object.ToNumber(right), opStart)
}

// integer OP integer: results stay integer, except division which
// promotes to double when not exact (or when dividing by zero).
func (vm *VM) evalIntegerInfixExpression(op code.Opcode, l, r int64, opStart int) *RuntimeError {
	switch op {
	case code.OpAdd:
		vm.push(&object.Integer{Value: l + r})
	case code.OpSub:
		vm.push(&object.Integer{Value: l - r})
	case code.OpMul:
		vm.push(&object.Integer{Value: l * r})
	case code.OpDiv:
		if r == 0 || l%r != 0 {
			vm.push(&object.Double{Value: float64(l) / float64(r)})
		} else {
			vm.push(&object.Integer{Value: l / r})
		}
	case code.OpMod:
		if r == 0 {
			vm.push(&object.Double{Value: math.NaN()})
		} else {
			vm.push(&object.Integer{Value: l % r})
		}
	case code.OpPow:
		if r < 0 {
			vm.push(&object.Double{Value: math.Pow(float64(l), float64(r))})
		} else {
			vm.push(&object.Integer{Value: ipow(l, r)})
		}
	case code.OpLess:
		vm.push(vm.boolean(l < r))
	case code.OpLessEqual:
		vm.push(vm.boolean(l <= r))
	case code.OpGreater:
		vm.push(vm.boolean(l > r))
	case code.OpGreaterEqual:
		vm.push(vm.boolean(l >= r))
	default:
		return vm.raiseString(opStart, "unknown integer operator %s", code.String(op))
	}
	return nil
}

// double OP double.
func (vm *VM) evalDoubleInfixExpression(op code.Opcode, l, r float64, opStart int) *RuntimeError {
	switch op {
	case code.OpAdd:
		vm.push(&object.Double{Value: l + r})
	case code.OpSub:
		vm.push(&object.Double{Value: l - r})
	case code.OpMul:
		vm.push(&object.Double{Value: l * r})
	case code.OpDiv:
		vm.push(&object.Double{Value: l / r})
	case code.OpMod:
		vm.push(&object.Double{Value: math.Mod(l, r)})
	case code.OpPow:
		vm.push(&object.Double{Value: math.Pow(l, r)})
	case code.OpLess:
		vm.push(vm.boolean(l < r))
	case code.OpLessEqual:
		vm.push(vm.boolean(l <= r))
	case code.OpGreater:
		vm.push(vm.boolean(l > r))
	case code.OpGreaterEqual:
		vm.push(vm.boolean(l >= r))
	default:
		return vm.raiseString(opStart, "unknown numeric operator %s", code.String(op))
	}
	return nil
}

// string OP string, for the ordering comparisons only.
func (vm *VM) evalStringCompare(op code.Opcode, l, r string) *RuntimeError {
	switch op {
	case code.OpLess:
		vm.push(vm.boolean(l < r))
	case code.OpLessEqual:
		vm.push(vm.boolean(l <= r))
	case code.OpGreater:
		vm.push(vm.boolean(l > r))
	case code.OpGreaterEqual:
		vm.push(vm.boolean(l >= r))
	}
	return nil
}

// toInt64 is the bit-operator coercion: integers pass through,
// doubles truncate, everything else goes through ToNumber.
func toInt64(o object.Object) int64 {
	switch v := o.(type) {
	case *object.Integer:
		return v.Value
	case *object.Double:
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return 0
		}
		return int64(v.Value)
	}
	f := object.ToNumber(o)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

// ipow is integer exponentiation with the same wrap-around behaviour
// as the other integer operators.
func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}
