// The ITER handler: adapt strings, arrays and objects to a uniform
// next-function which yields {done, key, value} records.

package vm

import (
	"github.com/mildew-lang/mildew/object"
)

// iterState is the host state carried by a next-function.
type iterState struct {
	idx    int
	runes  []rune
	array  *object.Array
	keys   []string
	fields *object.Instance
}

// opIter pops an iterable and pushes its next-function.
func (vm *VM) opIter(opStart int) *RuntimeError {
	target, err := vm.pop()
	if err != nil {
		return vm.raiseString(opStart, "%s", err.Error())
	}

	switch v := target.(type) {

	case *object.String:
		st := &iterState{runes: []rune(v.Value)}
		vm.push(object.NewDelegate("next", st, func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			if st.idx >= len(st.runes) {
				return iterDone(), object.NoError
			}
			rec := iterRecord(
				&object.Integer{Value: int64(st.idx)},
				&object.String{Value: string(st.runes[st.idx])})
			st.idx++
			return rec, object.NoError
		}))
		return nil

	case *object.Array:
		st := &iterState{array: v}
		vm.push(object.NewDelegate("next", st, func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			if st.idx >= len(st.array.Elements) {
				return iterDone(), object.NoError
			}
			rec := iterRecord(
				&object.Integer{Value: int64(st.idx)},
				st.array.Elements[st.idx])
			st.idx++
			return rec, object.NoError
		}))
		return nil

	case *object.Instance:
		// Own enumerable fields, snapshot at iteration start, in
		// insertion order.
		st := &iterState{keys: v.Keys(), fields: v}
		vm.push(object.NewDelegate("next", st, func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			for st.idx < len(st.keys) {
				key := st.keys[st.idx]
				st.idx++
				if val, ok := st.fields.GetOwn(key); ok {
					return iterRecord(&object.String{Value: key}, val), object.NoError
				}
			}
			return iterDone(), object.NoError
		}))
		return nil

	default:
		return vm.raiseString(opStart, "%s is not iterable", object.TypeOf(target))
	}
}

// iterRecord builds a {done: false, key, value} record.
func iterRecord(key, value object.Object) *object.Instance {
	rec := object.NewInstance(nil)
	rec.SetField("done", False)
	rec.SetField("key", key)
	rec.SetField("value", value)
	return rec
}

// iterDone builds the {done: true} completion record.
func iterDone() *object.Instance {
	rec := object.NewInstance(nil)
	rec.SetField("done", True)
	return rec
}
