// Registration of the standard globals.  Everything here goes
// through the host-binding contract: natives receive the current
// environment, the receiver, and the arguments, and report failure
// through the error side-channel rather than by raising directly.

package mildew

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/vm"
)

// InitializeStdlib registers the standard globals on the shared
// environment: namespaces, constructors, free functions, and the
// built-in prototypes the VM consults for member access on
// primitives.
func (i *Interpreter) InitializeStdlib() {

	i.machine.Protos = &vm.Prototypes{
		Object:   i.buildObjectProto(),
		Array:    i.buildArrayProto(),
		String:   i.buildStringProto(),
		Function: i.buildFunctionProto(),
	}

	i.ForceSetGlobal("console", i.buildConsole(), true)
	i.ForceSetGlobal("Math", i.buildMath(), true)
	i.ForceSetGlobal("JSON", i.buildJSON(), true)
	i.ForceSetGlobal("Object", i.buildObjectNamespace(), true)
	i.ForceSetGlobal("Array", i.buildArrayNamespace(), true)

	regexpCtor := i.buildRegExp()
	i.ForceSetGlobal("RegExp", regexpCtor, true)
	i.machine.NewRegexp = func(pattern, flags string) (object.Object, error) {
		return newRegexpInstance(regexpCtor, pattern, flags)
	}

	i.ForceSetGlobal("Error", i.buildError(), true)
	i.ForceSetGlobal("Generator", i.buildGenerator(), true)

	i.ForceSetGlobal("println", object.NewNative("println", fnPrintln), false)
	i.ForceSetGlobal("isdefined", object.NewNative("isdefined", fnIsDefined), false)
	i.ForceSetGlobal("isFinite", object.NewNative("isFinite", fnIsFinite), false)
	i.ForceSetGlobal("isNaN", object.NewNative("isNaN", fnIsNaN), false)
	i.ForceSetGlobal("parseFloat", object.NewNative("parseFloat", fnParseFloat), false)
	i.ForceSetGlobal("parseInt", object.NewNative("parseInt", fnParseInt), false)

	i.ForceSetGlobal("yield", object.NewNative("yield", i.fnYield), false)
	i.ForceSetGlobal("setTimeout", object.NewNative("setTimeout", i.fnSetTimeout), false)
	i.ForceSetGlobal("clearTimeout", object.NewNative("clearTimeout", i.fnClearTimeout), false)
}

// arg returns the n'th argument, or undefined.
func arg(args []object.Object, n int) object.Object {
	if n < len(args) {
		return args[n]
	}
	return vm.Undef
}

// namespace builds an object holding a set of natives.
func namespace(fields map[string]object.NativeFn, order []string) *object.Instance {
	ns := object.NewInstance(nil)
	for _, name := range order {
		ns.SetField(name, object.NewNative(name, fields[name]))
	}
	return ns
}

// ---- free functions ----

func fnPrintln(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, object.ToString(a))
	}
	printLine(strings.Join(parts, " "))
	return vm.Undef, object.NoError
}

// fnIsDefined reports whether a name is bound anywhere on the current
// scope chain.
func fnIsDefined(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	name, ok := arg(args, 0).(*object.String)
	if !ok {
		return vm.Undef, object.WrongTypeOfArg
	}
	_, found := env.Get(name.Value)
	return boolObj(found), object.NoError
}

func fnIsFinite(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	f := object.ToNumber(arg(args, 0))
	return boolObj(!math.IsNaN(f) && !math.IsInf(f, 0)), object.NoError
}

func fnIsNaN(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	return boolObj(math.IsNaN(object.ToNumber(arg(args, 0)))), object.NoError
}

func fnParseFloat(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	s := strings.TrimSpace(object.ToString(arg(args, 0)))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &object.Double{Value: math.NaN()}, object.NoError
	}
	return &object.Double{Value: f}, object.NoError
}

func fnParseInt(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	s := strings.TrimSpace(object.ToString(arg(args, 0)))
	base := 10
	if b, ok := arg(args, 1).(*object.Integer); ok && b.Value != 0 {
		base = int(b.Value)
	}
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return &object.Double{Value: math.NaN()}, object.NoError
	}
	return &object.Integer{Value: n}, object.NoError
}

// ---- fibers & timers ----

// fnYield suspends the current fiber, surfacing its value to the
// resumer.
func (i *Interpreter) fnYield(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	got, err := i.machine.Yield(arg(args, 0))
	if err != nil {
		return &object.String{Value: err.Error()}, object.ReturnValueIsException
	}
	if got == nil {
		got = vm.Undef
	}
	return got, object.NoError
}

// fnSetTimeout registers a timer fiber which yields until a monotonic
// deadline elapses, then invokes the callback.  The returned handle
// may be passed to clearTimeout.
func (i *Interpreter) fnSetTimeout(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	callback, ok := arg(args, 0).(*object.Function)
	if !ok {
		return vm.Undef, object.WrongTypeOfArg
	}
	delay := time.Duration(object.ToNumber(arg(args, 1))) * time.Millisecond
	extra := make([]object.Object, 0)
	if len(args) > 2 {
		extra = append(extra, args[2:]...)
	}

	deadline := time.Now().Add(delay)
	timer := object.NewDelegate("timer", callback,
		func(env *object.Environment, this object.Object, _ []object.Object) (object.Object, object.NativeError) {
			for time.Now().Before(deadline) {
				if f := i.machine.CurrentFiber(); f != nil && f.Cancelled() {
					return vm.Undef, object.NoError
				}
				time.Sleep(time.Millisecond)
				if _, err := i.machine.Yield(vm.Undef); err != nil {
					return vm.Undef, object.NoError
				}
			}
			if f := i.machine.CurrentFiber(); f != nil && f.Cancelled() {
				return vm.Undef, object.NoError
			}
			if _, err := i.machine.RunFunction(callback, vm.Undef, extra); err != nil {
				return &object.String{Value: err.Error()}, object.ReturnValueIsException
			}
			return vm.Undef, object.NoError
		})

	fiber := i.machine.Scheduler().AddFiber("timeout", timer, vm.Undef, nil)

	handle := object.NewInstance(nil)
	handle.NativeObject = fiber
	return handle, object.NoError
}

// fnClearTimeout cancels a pending timer; a timer already running
// only has its advisory flag set.
func (i *Interpreter) fnClearTimeout(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
	handle, ok := arg(args, 0).(*object.Instance)
	if !ok {
		return vm.Undef, object.WrongTypeOfArg
	}
	fiber, ok := handle.NativeObject.(*vm.Fiber)
	if !ok {
		return vm.Undef, object.WrongTypeOfArg
	}
	return boolObj(i.machine.Scheduler().RemoveFiber(fiber)), object.NoError
}

// ---- console ----

func (i *Interpreter) buildConsole() *object.Instance {
	return namespace(map[string]object.NativeFn{
		"log": fnPrintln,
		"error": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			parts := make([]string, 0, len(args))
			for _, a := range args {
				parts = append(parts, object.ToString(a))
			}
			printErrLine(strings.Join(parts, " "))
			return vm.Undef, object.NoError
		},
		"warn": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			parts := make([]string, 0, len(args))
			for _, a := range args {
				parts = append(parts, object.ToString(a))
			}
			printErrLine(strings.Join(parts, " "))
			return vm.Undef, object.NoError
		},
	}, []string{"log", "error", "warn"})
}

// ---- Math ----

func (i *Interpreter) buildMath() *object.Instance {
	m := object.NewInstance(nil)
	m.SetField("PI", &object.Double{Value: math.Pi})
	m.SetField("E", &object.Double{Value: math.E})

	unary := func(name string, f func(float64) float64) {
		m.SetField(name, object.NewNative(name,
			func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
				return &object.Double{Value: f(object.ToNumber(arg(args, 0)))}, object.NoError
			}))
	}
	unary("sqrt", math.Sqrt)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("round", math.Round)

	m.SetField("abs", object.NewNative("abs",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			if n, ok := arg(args, 0).(*object.Integer); ok {
				if n.Value < 0 {
					return &object.Integer{Value: -n.Value}, object.NoError
				}
				return n, object.NoError
			}
			return &object.Double{Value: math.Abs(object.ToNumber(arg(args, 0)))}, object.NoError
		}))

	m.SetField("pow", object.NewNative("pow",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			return &object.Double{Value: math.Pow(object.ToNumber(arg(args, 0)), object.ToNumber(arg(args, 1)))}, object.NoError
		}))

	minmax := func(name string, better func(a, b float64) bool) {
		m.SetField(name, object.NewNative(name,
			func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
				if len(args) == 0 {
					return vm.Undef, object.WrongNumberOfArgs
				}
				best := args[0]
				for _, a := range args[1:] {
					if better(object.ToNumber(a), object.ToNumber(best)) {
						best = a
					}
				}
				return best, object.NoError
			}))
	}
	minmax("min", func(a, b float64) bool { return a < b })
	minmax("max", func(a, b float64) bool { return a > b })

	m.SetField("random", object.NewNative("random",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			return &object.Double{Value: rand.Float64()}, object.NoError
		}))
	return m
}

// ---- Object / Array namespaces ----

func (i *Interpreter) buildObjectNamespace() *object.Instance {
	collect := func(pick func(key string, val object.Object) object.Object) object.NativeFn {
		return func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			in, ok := arg(args, 0).(*object.Instance)
			if !ok {
				return vm.Undef, object.WrongTypeOfArg
			}
			out := &object.Array{}
			for _, key := range in.Keys() {
				val, ok := in.GetOwn(key)
				if !ok {
					continue
				}
				out.Elements = append(out.Elements, pick(key, val))
			}
			return out, object.NoError
		}
	}
	return namespace(map[string]object.NativeFn{
		"keys": collect(func(key string, val object.Object) object.Object {
			return &object.String{Value: key}
		}),
		"values": collect(func(key string, val object.Object) object.Object {
			return val
		}),
		"entries": collect(func(key string, val object.Object) object.Object {
			return &object.Array{Elements: []object.Object{&object.String{Value: key}, val}}
		}),
	}, []string{"keys", "values", "entries"})
}

func (i *Interpreter) buildArrayNamespace() *object.Instance {
	return namespace(map[string]object.NativeFn{
		"isArray": func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			_, ok := arg(args, 0).(*object.Array)
			return boolObj(ok), object.NoError
		},
	}, []string{"isArray"})
}

func boolObj(b bool) *object.Boolean {
	if b {
		return vm.True
	}
	return vm.False
}
