// Host-native classes: RegExp, Error and Generator.  Each keeps its
// host state behind the opaque nativeObject handle, and its methods
// live on the constructor's prototype exactly like a script class's
// would.

package mildew

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/vm"
)

func printLine(s string) {
	fmt.Println(s)
}

func printErrLine(s string) {
	fmt.Fprintln(os.Stderr, s)
}

// ---- RegExp ----

// compileRegexp translates the script-level flags onto Go's inline
// flag syntax.  The `g` flag has no Go equivalent and is recorded
// only.
func compileRegexp(pattern, flags string) (*regexp.Regexp, error) {
	inline := ""
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline += string(f)
		case 'g':
			// recorded on the instance, no effect on matching
		default:
			return nil, fmt.Errorf("invalid regular expression flag '%c'", f)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// newRegexpInstance builds a live RegExp object; it is also the hook
// the VM calls when a regex-literal constant is loaded.
func newRegexpInstance(ctor *object.Function, pattern, flags string) (*object.Instance, error) {
	re, err := compileRegexp(pattern, flags)
	if err != nil {
		return nil, err
	}
	in := object.NewInstance(ctor.Prototype())
	in.NativeObject = re
	in.SetField("source", &object.String{Value: pattern})
	in.SetField("flags", &object.String{Value: flags})
	return in, nil
}

// regexpOf unwraps the receiver's compiled expression.
func regexpOf(this object.Object) (*regexp.Regexp, bool) {
	in, ok := this.(*object.Instance)
	if !ok {
		return nil, false
	}
	re, ok := in.NativeObject.(*regexp.Regexp)
	return re, ok
}

func (i *Interpreter) buildRegExp() *object.Function {
	var ctor *object.Function
	ctor = object.NewNative("RegExp",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			pattern := object.ToString(arg(args, 0))
			flags := ""
			if len(args) > 1 {
				flags = object.ToString(args[1])
			}
			in, err := newRegexpInstance(ctor, pattern, flags)
			if err != nil {
				return &object.String{Value: err.Error()}, object.ReturnValueIsException
			}
			return in, object.NoError
		})

	proto := ctor.Prototype()
	proto.SetField("test", object.NewNative("test",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			re, ok := regexpOf(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			return boolObj(re.MatchString(object.ToString(arg(args, 0)))), object.NoError
		}))
	proto.SetField("exec", object.NewNative("exec",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			re, ok := regexpOf(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			match := re.FindStringSubmatch(object.ToString(arg(args, 0)))
			if match == nil {
				return vm.Null, object.NoError
			}
			out := &object.Array{}
			for _, m := range match {
				out.Elements = append(out.Elements, &object.String{Value: m})
			}
			return out, object.NoError
		}))
	return ctor
}

// ---- Error ----

func (i *Interpreter) buildError() *object.Function {
	var ctor *object.Function
	ctor = object.NewNative("Error",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := this.(*object.Instance)
			if !ok {
				// plain-call form: Error("boom")
				in = object.NewInstance(ctor.Prototype())
			}
			in.SetField("name", &object.String{Value: "Error"})
			in.SetField("message", &object.String{Value: object.ToString(arg(args, 0))})
			return in, object.NoError
		})

	ctor.Prototype().SetField("toString", object.NewNative("toString",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := this.(*object.Instance)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			name, _ := in.FindField("name")
			msg, _ := in.FindField("message")
			out := "Error"
			if name != nil {
				out = object.ToString(name)
			}
			if msg != nil && msg.True() {
				out += ": " + object.ToString(msg)
			}
			return &object.String{Value: out}, object.NoError
		}))
	return ctor
}

// ---- Generator ----

// fiberOf unwraps a generator's fiber.
func fiberOf(this object.Object) (*vm.Fiber, bool) {
	in, ok := this.(*object.Instance)
	if !ok {
		return nil, false
	}
	f, ok := in.NativeObject.(*vm.Fiber)
	return f, ok
}

// buildGenerator wires the generator protocol over a detached fiber:
// next() resumes it until the next yield, return() finishes it early.
func (i *Interpreter) buildGenerator() *object.Function {
	var ctor *object.Function
	ctor = object.NewNative("Generator",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fn, ok := arg(args, 0).(*object.Function)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			rest := make([]object.Object, 0)
			if len(args) > 1 {
				rest = append(rest, args[1:]...)
			}

			in, ok := this.(*object.Instance)
			if !ok {
				// plain-call form: Generator(fn)
				in = object.NewInstance(ctor.Prototype())
			}
			in.NativeObject = i.machine.Scheduler().NewFiber("generator", fn, vm.Undef, rest)
			return in, object.NoError
		})

	proto := ctor.Prototype()
	proto.SetField("next", object.NewNative("next",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fiber, ok := fiberOf(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			value, done, err := i.machine.Scheduler().Resume(fiber, arg(args, 0))
			if err != nil {
				return exceptionValue(err), object.ReturnValueIsException
			}
			return nextRecord(value, done), object.NoError
		}))
	proto.SetField("return", object.NewNative("return",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			fiber, ok := fiberOf(this)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			i.machine.Scheduler().Finish(fiber)
			return nextRecord(arg(args, 0), true), object.NoError
		}))
	return ctor
}

// nextRecord builds the {value, done} record of the generator
// protocol.
func nextRecord(value object.Object, done bool) *object.Instance {
	rec := object.NewInstance(nil)
	rec.SetField("value", value)
	rec.SetField("done", boolObj(done))
	return rec
}

// exceptionValue converts a nested invocation error back into the
// script-visible thrown value.
func exceptionValue(err error) object.Object {
	if re, ok := err.(*vm.RuntimeError); ok && re.Thrown != nil {
		return re.Thrown
	}
	return &object.String{Value: strings.TrimSpace(err.Error())}
}
