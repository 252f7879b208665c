// The built-in prototypes the VM consults for member access on plain
// objects, arrays, strings and functions.  They belong to the
// Interpreter instance, never to the package.

package mildew

import (
	"strings"

	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/vm"
)

func (i *Interpreter) buildObjectProto() *object.Instance {
	return namespace(map[string]object.NativeFn{
		"hasOwnProperty": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := this.(*object.Instance)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return boolObj(in.HasOwn(object.ToString(arg(args, 0)))), object.NoError
		},
		"toString": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			return &object.String{Value: "[object Object]"}, object.NoError
		},
		"__defineGetter__": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := this.(*object.Instance)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			fn, ok := arg(args, 1).(*object.Function)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			fn.IsGetter = true
			in.SetGetter(object.ToString(arg(args, 0)), fn)
			return vm.Undef, object.NoError
		},
		"__defineSetter__": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := this.(*object.Instance)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			fn, ok := arg(args, 1).(*object.Function)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			fn.IsSetter = true
			in.SetSetter(object.ToString(arg(args, 0)), fn)
			return vm.Undef, object.NoError
		},
	}, []string{"hasOwnProperty", "toString", "__defineGetter__", "__defineSetter__"})
}

func (i *Interpreter) buildArrayProto() *object.Instance {
	asArray := func(this object.Object) (*object.Array, bool) {
		a, ok := this.(*object.Array)
		return a, ok
	}

	return namespace(map[string]object.NativeFn{
		"push": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			a.Elements = append(a.Elements, args...)
			return &object.Integer{Value: int64(len(a.Elements))}, object.NoError
		},
		"pop": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			if len(a.Elements) == 0 {
				return vm.Undef, object.NoError
			}
			last := a.Elements[len(a.Elements)-1]
			a.Elements = a.Elements[:len(a.Elements)-1]
			return last, object.NoError
		},
		"join": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			sep := ","
			if len(args) > 0 {
				sep = object.ToString(args[0])
			}
			parts := make([]string, 0, len(a.Elements))
			for _, e := range a.Elements {
				parts = append(parts, object.ToString(e))
			}
			return &object.String{Value: strings.Join(parts, sep)}, object.NoError
		},
		"indexOf": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			needle := arg(args, 0)
			for idx, e := range a.Elements {
				if object.StrictEquals(e, needle) {
					return &object.Integer{Value: int64(idx)}, object.NoError
				}
			}
			return &object.Integer{Value: -1}, object.NoError
		},
		"slice": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			n := int64(len(a.Elements))
			start := clampIndex(object.ToNumber(arg(args, 0)), n, 0)
			end := n
			if len(args) > 1 {
				end = clampIndex(object.ToNumber(args[1]), n, n)
			}
			if start > end {
				start = end
			}
			out := &object.Array{Elements: make([]object.Object, end-start)}
			copy(out.Elements, a.Elements[start:end])
			return out, object.NoError
		},
		"concat": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			a, ok := asArray(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			out := &object.Array{Elements: append([]object.Object{}, a.Elements...)}
			for _, extra := range args {
				if more, ok := extra.(*object.Array); ok {
					out.Elements = append(out.Elements, more.Elements...)
				} else {
					out.Elements = append(out.Elements, extra)
				}
			}
			return out, object.NoError
		},
	}, []string{"push", "pop", "join", "indexOf", "slice", "concat"})
}

// clampIndex resolves a possibly-negative, possibly-absent index
// against a length.
func clampIndex(f float64, length, dflt int64) int64 {
	if f != f {
		return dflt
	}
	idx := int64(f)
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

func (i *Interpreter) buildStringProto() *object.Instance {
	asString := func(this object.Object) (string, bool) {
		s, ok := this.(*object.String)
		if !ok {
			return "", false
		}
		return s.Value, true
	}

	return namespace(map[string]object.NativeFn{
		"charAt": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := this.(*object.String)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			ch, found := s.At(int64(object.ToNumber(arg(args, 0))))
			if !found {
				return &object.String{Value: ""}, object.NoError
			}
			return &object.String{Value: ch}, object.NoError
		},
		"indexOf": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return &object.Integer{Value: int64(strings.Index(s, object.ToString(arg(args, 0))))}, object.NoError
		},
		"split": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			out := &object.Array{}
			for _, part := range strings.Split(s, object.ToString(arg(args, 0))) {
				out.Elements = append(out.Elements, &object.String{Value: part})
			}
			return out, object.NoError
		},
		"substring": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			n := int64(len(s))
			start := clampIndex(object.ToNumber(arg(args, 0)), n, 0)
			end := n
			if len(args) > 1 {
				end = clampIndex(object.ToNumber(args[1]), n, n)
			}
			if start > end {
				start, end = end, start
			}
			return &object.String{Value: s[start:end]}, object.NoError
		},
		"toUpperCase": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return &object.String{Value: strings.ToUpper(s)}, object.NoError
		},
		"toLowerCase": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return &object.String{Value: strings.ToLower(s)}, object.NoError
		},
		"trim": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			s, ok := asString(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return &object.String{Value: strings.TrimSpace(s)}, object.NoError
		},
	}, []string{"charAt", "indexOf", "split", "substring", "toUpperCase", "toLowerCase", "trim"})
}

func (i *Interpreter) buildFunctionProto() *object.Instance {
	asFunction := func(this object.Object) (*object.Function, bool) {
		f, ok := this.(*object.Function)
		return f, ok
	}

	return namespace(map[string]object.NativeFn{
		"call": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fn, ok := asFunction(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			ret, err := i.machine.RunFunction(fn, arg(args, 0), args[min(1, len(args)):])
			if err != nil {
				return exceptionValue(err), object.ReturnValueIsException
			}
			return ret, object.NoError
		},
		"apply": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fn, ok := asFunction(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			var callArgs []object.Object
			if arr, ok := arg(args, 1).(*object.Array); ok {
				callArgs = arr.Elements
			}
			ret, err := i.machine.RunFunction(fn, arg(args, 0), callArgs)
			if err != nil {
				return exceptionValue(err), object.ReturnValueIsException
			}
			return ret, object.NoError
		},
		"bind": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fn, ok := asFunction(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return fn.BindThis(arg(args, 0)), object.NoError
		},
	}, []string{"call", "apply", "bind"})
}
