// Package object contains our core-definitions for values.
//
// Our language supports several different value-kinds:
//
// * Undefined & null.
// * Boolean.
// * Integer number (64-bit signed).
// * Floating-point number (64-bit IEEE-754).
// * String (immutable, UTF-8).
// * Array (by-reference sequence).
// * Function (script or host-native).
// * Object (prototype-based field map).
package object

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type describes the type of a value.
type Type string

// pre-defined constant Type
const (
	UNDEFINED = "UNDEFINED"
	NULL      = "NULL"
	BOOLEAN   = "BOOLEAN"
	INTEGER   = "INTEGER"
	DOUBLE    = "DOUBLE"
	STRING    = "STRING"
	ARRAY     = "ARRAY"
	FUNCTION  = "FUNCTION"
	OBJECT    = "OBJECT"
)

// Object is the interface that all of our various value-kinds must
// implement.
type Object interface {

	// Type returns the type of this value.
	Type() Type

	// Inspect returns a string-representation of the given value.
	Inspect() string

	// True returns the truthiness of the value: undefined, null,
	// false, zero, NaN, and the empty string are falsy.
	True() bool
}

// Undefined is the undefined value.
type Undefined struct{}

// Type returns the type of this value.
func (u *Undefined) Type() Type { return UNDEFINED }

// Inspect returns a string-representation of the given value.
func (u *Undefined) Inspect() string { return "undefined" }

// True returns the truthiness of the value.
func (u *Undefined) True() bool { return false }

// Null is the null value.
type Null struct{}

// Type returns the type of this value.
func (n *Null) Type() Type { return NULL }

// Inspect returns a string-representation of the given value.
func (n *Null) Inspect() string { return "null" }

// True returns the truthiness of the value.
func (n *Null) True() bool { return false }

// Boolean wraps bool.
type Boolean struct {
	// Value holds our boolean.
	Value bool
}

// Type returns the type of this value.
func (b *Boolean) Type() Type { return BOOLEAN }

// Inspect returns a string-representation of the given value.
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// True returns the truthiness of the value.
func (b *Boolean) True() bool { return b.Value }

// Integer wraps int64.
type Integer struct {
	// Value holds our number.
	Value int64
}

// Type returns the type of this value.
func (i *Integer) Type() Type { return INTEGER }

// Inspect returns a string-representation of the given value.
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// True returns the truthiness of the value.
func (i *Integer) True() bool { return i.Value != 0 }

// Double wraps float64.
type Double struct {
	// Value holds our number.
	Value float64
}

// Type returns the type of this value.
func (d *Double) Type() Type { return DOUBLE }

// Inspect returns a string-representation of the given value.
func (d *Double) Inspect() string {
	if math.IsNaN(d.Value) {
		return "NaN"
	}
	if math.IsInf(d.Value, 1) {
		return "Infinity"
	}
	if math.IsInf(d.Value, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(d.Value, 'g', -1, 64)
}

// True returns the truthiness of the value.
func (d *Double) True() bool { return d.Value != 0 && d.Value == d.Value }

// String wraps string.  Strings are immutable; indexing yields the
// code point at the given rune position, while the reported length is
// the byte length.
type String struct {
	// Value holds our string.
	Value string
}

// Type returns the type of this value.
func (s *String) Type() Type { return STRING }

// Inspect returns a string-representation of the given value.
func (s *String) Inspect() string { return s.Value }

// True returns the truthiness of the value.
func (s *String) True() bool { return s.Value != "" }

// At returns the length-1 string of the code point at the given rune
// index, or false if the index is out of range.  Negative indices
// count from the end.
func (s *String) At(idx int64) (string, bool) {
	runes := []rune(s.Value)
	if idx < 0 {
		idx += int64(len(runes))
	}
	if idx < 0 || idx >= int64(len(runes)) {
		return "", false
	}
	return string(runes[idx]), true
}

// Array is a dynamic sequence of values with by-reference sharing.
type Array struct {
	// Elements holds the members of the array.
	Elements []Object
}

// Type returns the type of this value.
func (a *Array) Type() Type { return ARRAY }

// Inspect returns a string-representation of the given value.
func (a *Array) Inspect() string {
	elems := make([]string, 0, len(a.Elements))
	for _, e := range a.Elements {
		elems = append(elems, e.Inspect())
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// True returns the truthiness of the value.  Arrays are always truthy.
func (a *Array) True() bool { return true }

// At resolves an index, with negative values counting back from the
// end.  The boolean is false when the index is out of range.
func (a *Array) At(idx int64) (Object, bool) {
	if idx < 0 {
		idx += int64(len(a.Elements))
	}
	if idx < 0 || idx >= int64(len(a.Elements)) {
		return nil, false
	}
	return a.Elements[idx], true
}

// SetAt writes an element, with the same negative-index handling as
// At.  Writing one past the end appends.
func (a *Array) SetAt(idx int64, val Object) bool {
	if idx < 0 {
		idx += int64(len(a.Elements))
	}
	if idx < 0 || idx > int64(len(a.Elements)) {
		return false
	}
	if idx == int64(len(a.Elements)) {
		a.Elements = append(a.Elements, val)
		return true
	}
	a.Elements[idx] = val
	return true
}

// TypeOf returns the name the `typeof` operator yields for the given
// value: one of "undefined", "null", "boolean", "integer", "double",
// "string", "array", "function", "object".
func TypeOf(o Object) string {
	if o == nil {
		return "undefined"
	}
	return strings.ToLower(string(o.Type()))
}

// Inspectable is a convenience used in error messages: quote strings,
// Inspect everything else.
func Inspectable(o Object) string {
	if s, ok := o.(*String); ok {
		return fmt.Sprintf("%q", s.Value)
	}
	return o.Inspect()
}
