// Member access: the OBJGET / OBJSET handlers, including prototype
// walks, getter/setter invocation, and the per-kind behaviour of
// arrays, strings and functions.

package vm

import (
	"github.com/mildew-lang/mildew/object"
)

// opObjGet pops an object then a key and pushes the member value.
func (vm *VM) opObjGet(opStart int) *RuntimeError {
	target, key, err := vm.pop2()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}

	switch recv := target.(type) {

	case *object.Instance:
		name := object.ToString(key)
		if getter, ok := recv.FindGetter(name); ok {
			val, err := vm.RunFunction(getter, recv, nil)
			if err != nil {
				return vm.raiseRuntime(opStart, err)
			}
			vm.push(val)
			return nil
		}
		if val, ok := recv.FindField(name); ok {
			vm.push(val)
			return nil
		}
		if vm.Protos != nil && vm.Protos.Object != nil {
			if val, ok := vm.Protos.Object.FindField(name); ok {
				vm.push(val)
				return nil
			}
		}
		vm.push(Undef)
		return nil

	case *object.Array:
		if idx, ok := integerKey(key); ok {
			val, ok := recv.At(idx)
			if !ok {
				return vm.raiseString(opStart, "array index %d out of bounds (length %d)", idx, len(recv.Elements))
			}
			vm.push(val)
			return nil
		}
		name := object.ToString(key)
		if name == "length" {
			vm.push(&object.Integer{Value: int64(len(recv.Elements))})
			return nil
		}
		if vm.Protos != nil && vm.Protos.Array != nil {
			if val, ok := vm.Protos.Array.FindField(name); ok {
				vm.push(val)
				return nil
			}
		}
		vm.push(Undef)
		return nil

	case *object.String:
		if idx, ok := integerKey(key); ok {
			ch, ok := recv.At(idx)
			if !ok {
				return vm.raiseString(opStart, "string index %d out of bounds", idx)
			}
			vm.push(&object.String{Value: ch})
			return nil
		}
		name := object.ToString(key)
		if name == "length" {
			// Length reports the byte length.
			vm.push(&object.Integer{Value: int64(len(recv.Value))})
			return nil
		}
		if vm.Protos != nil && vm.Protos.String != nil {
			if val, ok := vm.Protos.String.FindField(name); ok {
				vm.push(val)
				return nil
			}
		}
		vm.push(Undef)
		return nil

	case *object.Function:
		name := object.ToString(key)
		if name == "prototype" {
			vm.push(recv.Prototype())
			return nil
		}
		if val, ok := recv.GetProp(name); ok {
			vm.push(val)
			return nil
		}
		if vm.Protos != nil && vm.Protos.Function != nil {
			if val, ok := vm.Protos.Function.FindField(name); ok {
				vm.push(val)
				return nil
			}
		}
		vm.push(Undef)
		return nil

	default:
		return vm.raiseString(opStart, "cannot read members of a %s", object.TypeOf(target))
	}
}

// opObjSet pops object, key and value, performs the write, and pushes
// the observable resulting value.
func (vm *VM) opObjSet(opStart int) *RuntimeError {
	target, key, err := vm.pop2()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}
	val, err := vm.pop()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}

	switch recv := target.(type) {

	case *object.Instance:
		name := object.ToString(key)

		// A setter anywhere on the chain intercepts the write;
		// the visible result is then whatever the getter yields.
		if setter, ok := recv.FindSetter(name); ok {
			if _, err := vm.RunFunction(setter, recv, []object.Object{val}); err != nil {
				return vm.raiseRuntime(opStart, err)
			}
			if getter, ok := recv.FindGetter(name); ok {
				out, err := vm.RunFunction(getter, recv, nil)
				if err != nil {
					return vm.raiseRuntime(opStart, err)
				}
				vm.push(out)
				return nil
			}
			vm.push(Undef)
			return nil
		}

		// A getter with no setter makes the field read-only.
		if _, ok := recv.FindGetter(name); ok {
			return vm.raiseString(opStart, "cannot assign to read-only property %s", name)
		}

		recv.SetField(name, val)
		vm.push(val)
		return nil

	case *object.Array:
		if idx, ok := integerKey(key); ok {
			if !recv.SetAt(idx, val) {
				return vm.raiseString(opStart, "array index %d out of bounds (length %d)", idx, len(recv.Elements))
			}
			vm.push(val)
			return nil
		}
		return vm.raiseString(opStart, "cannot set member %s of an array", object.ToString(key))

	case *object.Function:
		recv.Props().SetField(object.ToString(key), val)
		vm.push(val)
		return nil

	case *object.String:
		return vm.raiseString(opStart, "strings are immutable")

	default:
		return vm.raiseString(opStart, "cannot set members of a %s", object.TypeOf(target))
	}
}

// integerKey reports whether the key is usable as a numeric index.
func integerKey(key object.Object) (int64, bool) {
	switch v := key.(type) {
	case *object.Integer:
		return v.Value, true
	case *object.Double:
		if v.Value == float64(int64(v.Value)) {
			return int64(v.Value), true
		}
	}
	return 0, false
}
