package object

import (
	"fmt"

	"github.com/mildew-lang/mildew/code"
)

// FunctionKind distinguishes our three callable variants.
type FunctionKind int

// Function kinds.
const (
	// ScriptFunction is bytecode plus a captured environment.
	ScriptFunction FunctionKind = iota

	// HostFunction is a plain host-language callable.
	HostFunction

	// HostDelegate is a host callable carrying host state.
	HostDelegate
)

// NativeError is the side-channel a host callable uses to signal
// failure: any value other than NoError causes the VM to raise a
// runtime exception whose thrown value is the function's return.
type NativeError int

// Native-call results.
const (
	NoError NativeError = iota
	ReturnValueIsException
	WrongNumberOfArgs
	WrongTypeOfArg
)

// NativeFn is the signature host callables implement.
type NativeFn func(env *Environment, this Object, args []Object) (Object, NativeError)

// LineEntry associates a bytecode offset with the source line that
// produced it; the pairs are emitted in increasing offset order.
type LineEntry struct {
	Offset int
	Line   int
}

// Function is a first-class callable.  Script functions carry
// bytecode, parameter names and a captured closure environment; host
// functions carry a Go callable; the delegate variant additionally
// carries opaque host state.
type Function struct {
	Kind FunctionKind

	// Name is used in diagnostics and tracebacks; it may be empty
	// for anonymous functions.
	Name string

	// Parameters holds the declared parameter names, in order.
	Parameters []string

	// Instructions is the compiled body (script functions only).
	Instructions code.Instructions

	// Lines maps instruction offsets to source lines for traceback
	// rendering (script functions only).
	Lines []LineEntry

	// Consts is the constant pool shared by every function of the
	// compilation unit this function came from.
	Consts []Object

	// Env is the captured closure environment (script functions
	// only).  Loading a function constant rebinds it to the
	// environment current at the load, which is how lexical capture
	// works without mutating the constant pool.
	Env *Environment

	// BoundThis, when non-nil, overrides the caller-supplied `this`.
	BoundThis Object

	// IsGetter/IsSetter note accessor functions for diagnostics.
	IsGetter bool
	IsSetter bool

	// Native is the host callable (host kinds only).
	Native NativeFn

	// Delegate is opaque host state (delegate kind only).
	Delegate interface{}

	// props holds arbitrary fields attached to the function object,
	// including `prototype`.
	props *Instance
}

// NewNative wraps a host callable as a function value.
func NewNative(name string, fn NativeFn) *Function {
	return &Function{Kind: HostFunction, Name: name, Native: fn}
}

// NewDelegate wraps a host callable plus host state as a function
// value.
func NewDelegate(name string, state interface{}, fn NativeFn) *Function {
	return &Function{Kind: HostDelegate, Name: name, Delegate: state, Native: fn}
}

// Type returns the type of this value.
func (f *Function) Type() Type { return FUNCTION }

// Inspect returns a string-representation of the given value.
func (f *Function) Inspect() string {
	name := f.Name
	if name == "" {
		name = "anonymous"
	}
	if f.Kind == ScriptFunction {
		return fmt.Sprintf("function %s", name)
	}
	return fmt.Sprintf("native function %s", name)
}

// True returns the truthiness of the value.  Functions are always
// truthy.
func (f *Function) True() bool { return true }

// Rebind returns a shallow clone of the function bound to the given
// environment.  Bytecode, parameter names, debug lines and attached
// fields are shared with the original.
func (f *Function) Rebind(env *Environment) *Function {
	clone := *f
	clone.Env = env
	return &clone
}

// BindThis returns a shallow clone with a fixed `this`.
func (f *Function) BindThis(this Object) *Function {
	clone := *f
	clone.BoundThis = this
	return &clone
}

// Props returns the function's attached-field object, creating it on
// first use.
func (f *Function) Props() *Instance {
	if f.props == nil {
		f.props = NewInstance(nil)
	}
	return f.props
}

// GetProp reads an attached field, returning false when the function
// carries none.
func (f *Function) GetProp(key string) (Object, bool) {
	if f.props == nil {
		return nil, false
	}
	return f.props.FindField(key)
}

// Prototype returns the object used as the prototype of instances
// constructed via `new`, creating it (with `constructor` pointing back
// at the function) on first use.
func (f *Function) Prototype() *Instance {
	if v, ok := f.GetProp("prototype"); ok {
		if in, ok := v.(*Instance); ok {
			return in
		}
	}
	proto := NewInstance(nil)
	proto.SetField("constructor", f)
	f.Props().SetField("prototype", proto)
	return proto
}

// SetPrototype replaces the function's prototype object.
func (f *Function) SetPrototype(proto *Instance) {
	f.Props().SetField("prototype", proto)
}
