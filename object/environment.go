// The environment is our lexical scope-chain: each environment holds
// a mapping from identifier to binding, a pointer to the enclosing
// scope, and its depth from the global scope.
//
// `let`/`const` declarations land in the current environment; `var`
// always targets the global one.  The host can bypass the declaration
// rules entirely with ForceSet, which is how the standard library is
// installed.

package object

import "fmt"

// binding is a variable slot plus its const-flag.
type binding struct {
	value   Object
	isConst bool
}

// Environment stores our variables, and forms the scope chain.
type Environment struct {

	// store holds the bindings of this scope.
	store map[string]binding

	// outer holds any parent environment.
	outer *Environment

	// depth is 0 for the global scope and grows inwards.
	depth int
}

// NewEnvironment creates a new top-level environment.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]binding)}
}

// NewEnclosedEnvironment creates a child scope of the given
// environment.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	return &Environment{
		store: make(map[string]binding),
		outer: outer,
		depth: outer.depth + 1,
	}
}

// Outer returns the parent scope, or nil at the global scope.
func (e *Environment) Outer() *Environment { return e.outer }

// Depth returns the scope depth; the global environment is depth 0.
func (e *Environment) Depth() int { return e.depth }

// Global walks to the root of the scope chain.
func (e *Environment) Global() *Environment {
	g := e
	for g.outer != nil {
		g = g.outer
	}
	return g
}

// Get returns the value of a given variable, by name, walking the
// scope chain outwards.
func (e *Environment) Get(name string) (Object, bool) {
	for cur := e; cur != nil; cur = cur.outer {
		if b, ok := cur.store[name]; ok {
			return b.value, true
		}
	}
	return nil, false
}

// DeclareVar declares a `var` binding, which always targets the
// global environment.  Redeclaring is an error unless the existing
// global binding holds undefined.
func (e *Environment) DeclareVar(name string, val Object) error {
	g := e.Global()
	if b, ok := g.store[name]; ok {
		if _, isUndef := b.value.(*Undefined); !isUndef {
			return fmt.Errorf("cannot redeclare global variable %s", name)
		}
	}
	g.store[name] = binding{value: val}
	return nil
}

// DeclareLet declares a scope-local binding.
func (e *Environment) DeclareLet(name string, val Object) error {
	if _, ok := e.store[name]; ok {
		return fmt.Errorf("cannot redeclare variable %s", name)
	}
	e.store[name] = binding{value: val}
	return nil
}

// DeclareConst declares a scope-local constant binding.
func (e *Environment) DeclareConst(name string, val Object) error {
	if _, ok := e.store[name]; ok {
		return fmt.Errorf("cannot redeclare variable %s", name)
	}
	e.store[name] = binding{value: val, isConst: true}
	return nil
}

// Set assigns to an existing binding, walking the scope chain.
// Assigning undefined removes the binding entirely.  Assignment to an
// undeclared name, or to a constant, is an error.
func (e *Environment) Set(name string, val Object) error {
	for cur := e; cur != nil; cur = cur.outer {
		b, ok := cur.store[name]
		if !ok {
			continue
		}
		if b.isConst {
			return fmt.Errorf("cannot reassign constant %s", name)
		}
		if _, isUndef := val.(*Undefined); isUndef {
			delete(cur.store, name)
			return nil
		}
		cur.store[name] = binding{value: val}
		return nil
	}
	return fmt.Errorf("cannot assign to undeclared variable %s", name)
}

// ForceSet installs a binding in this environment directly, bypassing
// the declaration rules.  It is the hook the host uses to provide
// globals.
func (e *Environment) ForceSet(name string, val Object, isConst bool) {
	e.store[name] = binding{value: val, isConst: isConst}
}

// Unbind removes a binding from this environment only, reporting
// whether it existed.
func (e *Environment) Unbind(name string) bool {
	if _, ok := e.store[name]; ok {
		delete(e.store, name)
		return true
	}
	return false
}
