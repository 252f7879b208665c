package object

import (
	"testing"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{&Undefined{}, "undefined"},
		{&Null{}, "null"},
		{&Boolean{Value: true}, "boolean"},
		{&Integer{Value: 3}, "integer"},
		{&Double{Value: 3.5}, "double"},
		{&String{Value: "x"}, "string"},
		{&Array{}, "array"},
		{&Function{Kind: HostFunction}, "function"},
		{NewInstance(nil), "object"},
	}
	for _, tc := range tests {
		if got := TypeOf(tc.obj); got != tc.want {
			t.Fatalf("TypeOf(%v) gave %q, wanted %q", tc.obj, got, tc.want)
		}
	}
}

func TestTruthiness(t *testing.T) {
	falsy := []Object{
		&Undefined{},
		&Null{},
		&Boolean{Value: false},
		&Integer{Value: 0},
		&Double{Value: 0},
		&Double{Value: nan()},
		&String{Value: ""},
	}
	for _, o := range falsy {
		if o.True() {
			t.Fatalf("%s should be falsy", o.Inspect())
		}
	}

	truthy := []Object{
		&Boolean{Value: true},
		&Integer{Value: -1},
		&Double{Value: 0.1},
		&String{Value: "0"},
		&Array{},
		NewInstance(nil),
		&Function{Kind: HostFunction},
	}
	for _, o := range truthy {
		if !o.True() {
			t.Fatalf("%s should be truthy", o.Inspect())
		}
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestLooseEquality(t *testing.T) {
	tests := []struct {
		a, b Object
		want bool
	}{
		{&Null{}, &Undefined{}, true},
		{&Undefined{}, &Null{}, true},
		{&Null{}, &Integer{Value: 0}, false},
		{&Integer{Value: 1}, &Double{Value: 1.0}, true},
		{&Integer{Value: 1}, &Double{Value: 1.5}, false},
		{&Integer{Value: 10}, &String{Value: "10"}, true},
		{&String{Value: "10"}, &Integer{Value: 10}, true},
		{&String{Value: "x"}, &Integer{Value: 10}, false},
		{&Boolean{Value: true}, &Integer{Value: 1}, true},
		{&Boolean{Value: false}, &String{Value: "0"}, true},
		{&String{Value: "a"}, &String{Value: "a"}, true},
	}
	for _, tc := range tests {
		if got := Equals(tc.a, tc.b); got != tc.want {
			t.Fatalf("Equals(%s, %s) gave %v", tc.a.Inspect(), tc.b.Inspect(), got)
		}
	}
}

func TestStrictEquality(t *testing.T) {
	a := NewInstance(nil)
	b := NewInstance(nil)

	tests := []struct {
		a, b Object
		want bool
	}{
		{&Integer{Value: 1}, &Double{Value: 1.0}, false},
		{&Integer{Value: 1}, &Integer{Value: 1}, true},
		{&Null{}, &Undefined{}, false},
		{&String{Value: "a"}, &String{Value: "a"}, true},
		{a, a, true},
		{a, b, false},
	}
	for _, tc := range tests {
		if got := StrictEquals(tc.a, tc.b); got != tc.want {
			t.Fatalf("StrictEquals(%s, %s) gave %v", tc.a.Inspect(), tc.b.Inspect(), got)
		}
	}
}

func TestHashKeys(t *testing.T) {
	if (&Integer{Value: 3}).HashKey() != (&Integer{Value: 3}).HashKey() {
		t.Fatalf("equal integers must hash equally")
	}
	if (&String{Value: "a"}).HashKey() != (&String{Value: "a"}).HashKey() {
		t.Fatalf("equal strings must hash equally")
	}
	if (&Integer{Value: 1}).HashKey() == (&Double{Value: 1}).HashKey() {
		t.Fatalf("integer and double hash-keys must differ in type")
	}
}

func TestStringAt(t *testing.T) {
	s := &String{Value: "héllo"}
	tests := []struct {
		idx  int64
		want string
		ok   bool
	}{
		{0, "h", true},
		{1, "é", true},
		{4, "o", true},
		{-1, "o", true},
		{-5, "h", true},
		{5, "", false},
		{-6, "", false},
	}
	for _, tc := range tests {
		got, ok := s.At(tc.idx)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("At(%d) gave %q/%v, wanted %q/%v", tc.idx, got, ok, tc.want, tc.ok)
		}
	}
}

func TestArrayIndexing(t *testing.T) {
	a := &Array{Elements: []Object{&Integer{Value: 1}, &Integer{Value: 2}, &Integer{Value: 3}}}

	if v, ok := a.At(-1); !ok || v.Inspect() != "3" {
		t.Fatalf("At(-1) gave %v", v)
	}
	if v, ok := a.At(-3); !ok || v.Inspect() != "1" {
		t.Fatalf("At(-3) gave %v", v)
	}
	if _, ok := a.At(3); ok {
		t.Fatalf("At(3) should be out of range")
	}
	if _, ok := a.At(-4); ok {
		t.Fatalf("At(-4) should be out of range")
	}

	// Writing one past the end appends.
	if !a.SetAt(3, &Integer{Value: 4}) {
		t.Fatalf("SetAt(3) should append")
	}
	if len(a.Elements) != 4 {
		t.Fatalf("expected 4 elements")
	}
	if a.SetAt(5, &Integer{Value: 9}) {
		t.Fatalf("SetAt(5) should fail")
	}
}

func TestFunctionRebindSharesCode(t *testing.T) {
	env1 := NewEnvironment()
	env2 := NewEnclosedEnvironment(env1)

	fn := &Function{Kind: ScriptFunction, Name: "f", Instructions: []byte{1, 2, 3}, Env: env1}
	clone := fn.Rebind(env2)

	if clone.Env != env2 {
		t.Fatalf("rebind must swap the environment")
	}
	if &clone.Instructions[0] != &fn.Instructions[0] {
		t.Fatalf("rebind must share the bytecode")
	}

	bound := clone.BindThis(&Integer{Value: 1})
	if bound.BoundThis == nil || clone.BoundThis != nil {
		t.Fatalf("BindThis must not mutate the receiver")
	}
}

func TestFunctionPrototype(t *testing.T) {
	fn := &Function{Kind: ScriptFunction, Name: "F"}
	proto := fn.Prototype()
	if proto == nil {
		t.Fatalf("expected a prototype")
	}
	ctor, ok := proto.GetOwn("constructor")
	if !ok || ctor != Object(fn) {
		t.Fatalf("prototype.constructor must point back at the function")
	}
	if fn.Prototype() != proto {
		t.Fatalf("prototype must be stable")
	}
}
