package object

import (
	"strings"
	"testing"
)

func TestFieldOrderIsInsertionOrder(t *testing.T) {
	in := NewInstance(nil)
	in.SetField("z", &Integer{Value: 1})
	in.SetField("a", &Integer{Value: 2})
	in.SetField("m", &Integer{Value: 3})
	in.SetField("z", &Integer{Value: 9}) // overwrite keeps position

	if got := strings.Join(in.Keys(), ""); got != "zam" {
		t.Fatalf("unexpected key order %q", got)
	}

	in.Delete("a")
	if got := strings.Join(in.Keys(), ""); got != "zm" {
		t.Fatalf("unexpected key order after delete %q", got)
	}
}

func TestPrototypeChainLookup(t *testing.T) {
	base := NewInstance(nil)
	base.SetField("shared", &String{Value: "from base"})

	child := NewInstance(base)
	child.SetField("own", &Integer{Value: 1})

	if v, ok := child.FindField("shared"); !ok || v.Inspect() != "from base" {
		t.Fatalf("chain lookup failed: %v", v)
	}
	if _, ok := child.GetOwn("shared"); ok {
		t.Fatalf("GetOwn must not walk the chain")
	}

	// Writes land on the child, never the chain.
	child.SetField("shared", &String{Value: "shadowed"})
	if v, _ := base.GetOwn("shared"); v.Inspect() != "from base" {
		t.Fatalf("write leaked onto the prototype")
	}
	if v, _ := child.FindField("shared"); v.Inspect() != "shadowed" {
		t.Fatalf("shadowing failed")
	}
}

func TestAccessorLookup(t *testing.T) {
	getter := &Function{Kind: HostFunction, Name: "g"}
	setter := &Function{Kind: HostFunction, Name: "s"}

	base := NewInstance(nil)
	base.SetGetter("x", getter)
	base.SetSetter("x", setter)

	child := NewInstance(base)

	if g, ok := child.FindGetter("x"); !ok || g != getter {
		t.Fatalf("getter not found through the chain")
	}
	if s, ok := child.FindSetter("x"); !ok || s != setter {
		t.Fatalf("setter not found through the chain")
	}
	if _, ok := child.FindGetter("y"); ok {
		t.Fatalf("unexpected getter for y")
	}
}

func TestConstructorLookup(t *testing.T) {
	ctor := &Function{Kind: ScriptFunction, Name: "C", Instructions: []byte{0}}
	proto := NewInstance(nil)
	proto.SetField("constructor", ctor)

	inst := NewInstance(proto)
	got, ok := inst.Constructor()
	if !ok || got != ctor {
		t.Fatalf("constructor lookup failed")
	}
}

func TestDeleteAccessors(t *testing.T) {
	in := NewInstance(nil)
	in.SetGetter("x", &Function{Kind: HostFunction})
	if !in.Delete("x") {
		t.Fatalf("expected delete to remove the accessor")
	}
	if _, ok := in.FindGetter("x"); ok {
		t.Fatalf("getter survived delete")
	}
	if in.Delete("x") {
		t.Fatalf("second delete should report nothing removed")
	}
}
