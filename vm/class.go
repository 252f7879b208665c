// The CLASS handler: assemble a prototype object, attach accessors,
// install statics on the constructor, and link the chain to the base
// class's prototype.

package vm

import (
	"github.com/mildew-lang/mildew/object"
)

// opClass builds a class from the stack.  Below the named pair-lists
// sit the constructor and the base (or undefined):
//
//	base, ctor,
//	methods... getters... setters... statics...  (name/value pairs)
func (vm *VM) opClass(opStart, numMethods, numGetters, numSetters, numStatics int) *RuntimeError {
	pairs := numMethods + numGetters + numSetters + numStatics
	if len(vm.stack) < 2*pairs+2 {
		return vm.raiseString(opStart, "malformed class instruction")
	}

	base := len(vm.stack) - 2*pairs
	names := make([]string, pairs)
	values := make([]object.Object, pairs)
	for i := 0; i < pairs; i++ {
		name, ok := vm.stack[base+2*i].(*object.String)
		if !ok {
			return vm.raiseString(opStart, "malformed class instruction")
		}
		names[i] = name.Value
		values[i] = vm.stack[base+2*i+1]
	}

	ctorObj := vm.stack[base-1]
	baseObj := vm.stack[base-2]
	vm.stack = vm.stack[:base-2]

	ctor, ok := ctorObj.(*object.Function)
	if !ok {
		return vm.raiseString(opStart, "malformed class instruction")
	}

	proto := object.NewInstance(nil)
	if _, undef := baseObj.(*object.Undefined); !undef {
		baseFn, ok := baseObj.(*object.Function)
		if !ok {
			return vm.raiseString(opStart, "class can only extend a constructor, not a %s", object.TypeOf(baseObj))
		}
		proto.Proto = baseFn.Prototype()
	}
	proto.SetField("constructor", ctor)

	idx := 0
	for i := 0; i < numMethods; i++ {
		fn, ok := values[idx].(*object.Function)
		if !ok {
			return vm.raiseString(opStart, "malformed class instruction")
		}
		fn.Name = names[idx]
		proto.SetField(names[idx], fn)
		idx++
	}
	for i := 0; i < numGetters; i++ {
		fn, ok := values[idx].(*object.Function)
		if !ok {
			return vm.raiseString(opStart, "malformed class instruction")
		}
		fn.IsGetter = true
		proto.SetGetter(names[idx], fn)
		idx++
	}
	for i := 0; i < numSetters; i++ {
		fn, ok := values[idx].(*object.Function)
		if !ok {
			return vm.raiseString(opStart, "malformed class instruction")
		}
		fn.IsSetter = true
		proto.SetSetter(names[idx], fn)
		idx++
	}
	for i := 0; i < numStatics; i++ {
		ctor.Props().SetField(names[idx], values[idx])
		idx++
	}

	ctor.SetPrototype(proto)
	vm.push(ctor)
	return nil
}
