package object

import (
	"strings"
)

// Instance is our object-kind: an ordered mapping from string keys to
// values, an optional prototype forming a lookup chain, per-key
// optional getter/setter functions, and an opaque NativeObject handle
// the host may attach for host-native classes.
//
// Reads walk the prototype chain; writes land on the receiver itself
// unless a setter is found somewhere along the chain.
type Instance struct {

	// keys preserves insertion order, which scripts observe when
	// iterating.
	keys []string

	// fields holds the plain data slots.
	fields map[string]Object

	// getters and setters hold the accessor slots.  They are nil
	// until first used, as most objects carry none.
	getters map[string]*Function
	setters map[string]*Function

	// Proto is the next object on the prototype chain, or nil.
	Proto *Instance

	// NativeObject is an opaque handle owned by the host; the
	// runtime never assumes any structure.
	NativeObject interface{}
}

// NewInstance creates an empty object with the given prototype
// (which may be nil).
func NewInstance(proto *Instance) *Instance {
	return &Instance{
		fields: make(map[string]Object),
		Proto:  proto,
	}
}

// Type returns the type of this value.
func (in *Instance) Type() Type { return OBJECT }

// Inspect returns a string-representation of the given value.
func (in *Instance) Inspect() string {
	return in.inspect(4)
}

func (in *Instance) inspect(depth int) string {
	if depth == 0 {
		return "{...}"
	}
	pairs := make([]string, 0, len(in.keys))
	for _, k := range in.keys {
		v := in.fields[k]
		if nested, ok := v.(*Instance); ok {
			pairs = append(pairs, k+": "+nested.inspect(depth-1))
			continue
		}
		pairs = append(pairs, k+": "+Inspectable(v))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// True returns the truthiness of the value.  Objects are always truthy.
func (in *Instance) True() bool { return true }

// HasOwn reports whether the object itself carries a data field with
// the given key.
func (in *Instance) HasOwn(key string) bool {
	_, ok := in.fields[key]
	return ok
}

// GetOwn returns the object's own data field, without walking the
// chain and without consulting getters.
func (in *Instance) GetOwn(key string) (Object, bool) {
	v, ok := in.fields[key]
	return v, ok
}

// FindField walks the prototype chain looking for a plain data field.
func (in *Instance) FindField(key string) (Object, bool) {
	for cur := in; cur != nil; cur = cur.Proto {
		if v, ok := cur.fields[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// FindGetter walks the prototype chain looking for a getter for the
// key.
func (in *Instance) FindGetter(key string) (*Function, bool) {
	for cur := in; cur != nil; cur = cur.Proto {
		if cur.getters != nil {
			if g, ok := cur.getters[key]; ok {
				return g, true
			}
		}
	}
	return nil, false
}

// FindSetter walks the prototype chain looking for a setter for the
// key.
func (in *Instance) FindSetter(key string) (*Function, bool) {
	for cur := in; cur != nil; cur = cur.Proto {
		if cur.setters != nil {
			if s, ok := cur.setters[key]; ok {
				return s, true
			}
		}
	}
	return nil, false
}

// SetField writes a data field on this object, preserving the
// insertion order of first writes.
func (in *Instance) SetField(key string, val Object) {
	if _, ok := in.fields[key]; !ok {
		in.keys = append(in.keys, key)
	}
	in.fields[key] = val
}

// SetGetter installs a getter for the key.
func (in *Instance) SetGetter(key string, fn *Function) {
	if in.getters == nil {
		in.getters = make(map[string]*Function)
	}
	in.getters[key] = fn
	in.noteKey(key)
}

// SetSetter installs a setter for the key.
func (in *Instance) SetSetter(key string, fn *Function) {
	if in.setters == nil {
		in.setters = make(map[string]*Function)
	}
	in.setters[key] = fn
	in.noteKey(key)
}

// noteKey records a key in the ordering without assigning a data slot.
func (in *Instance) noteKey(key string) {
	if _, ok := in.fields[key]; ok {
		return
	}
	for _, k := range in.keys {
		if k == key {
			return
		}
	}
	in.keys = append(in.keys, key)
}

// Delete removes an own field (data or accessor) and returns whether
// anything was removed.
func (in *Instance) Delete(key string) bool {
	found := false
	if _, ok := in.fields[key]; ok {
		delete(in.fields, key)
		found = true
	}
	if in.getters != nil {
		if _, ok := in.getters[key]; ok {
			delete(in.getters, key)
			found = true
		}
	}
	if in.setters != nil {
		if _, ok := in.setters[key]; ok {
			delete(in.setters, key)
			found = true
		}
	}
	if found {
		for i, k := range in.keys {
			if k == key {
				in.keys = append(in.keys[:i], in.keys[i+1:]...)
				break
			}
		}
	}
	return found
}

// Keys returns the object's own keys in insertion order.
func (in *Instance) Keys() []string {
	out := make([]string, len(in.keys))
	copy(out, in.keys)
	return out
}

// Constructor returns the function stored in the chain's
// `constructor` field, if any.
func (in *Instance) Constructor() (*Function, bool) {
	v, ok := in.FindField("constructor")
	if !ok {
		return nil, false
	}
	fn, ok := v.(*Function)
	return fn, ok
}
