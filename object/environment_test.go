package object

import (
	"strings"
	"testing"
)

func TestDeclareAndGet(t *testing.T) {
	global := NewEnvironment()
	inner := NewEnclosedEnvironment(global)

	if err := global.DeclareLet("a", &Integer{Value: 1}); err != nil {
		t.Fatalf("declare failed: %s", err)
	}
	if v, ok := inner.Get("a"); !ok || v.Inspect() != "1" {
		t.Fatalf("inner scope must see outer bindings")
	}
	if _, ok := global.Get("missing"); ok {
		t.Fatalf("unexpected binding")
	}
}

func TestVarTargetsGlobal(t *testing.T) {
	global := NewEnvironment()
	inner := NewEnclosedEnvironment(NewEnclosedEnvironment(global))

	if err := inner.DeclareVar("v", &Integer{Value: 1}); err != nil {
		t.Fatalf("declare failed: %s", err)
	}
	if _, ok := global.Get("v"); !ok {
		t.Fatalf("var must land on the global environment")
	}

	// Redeclaring is only allowed while the binding is undefined.
	if err := inner.DeclareVar("v", &Integer{Value: 2}); err == nil {
		t.Fatalf("expected a redeclaration error")
	}
	global.ForceSet("w", &Undefined{}, false)
	if err := inner.DeclareVar("w", &Integer{Value: 3}); err != nil {
		t.Fatalf("redeclaring an undefined global must work: %s", err)
	}
}

func TestLetIsScopeLocal(t *testing.T) {
	global := NewEnvironment()
	inner := NewEnclosedEnvironment(global)

	if err := global.DeclareLet("x", &Integer{Value: 1}); err != nil {
		t.Fatalf("declare failed: %s", err)
	}
	if err := inner.DeclareLet("x", &Integer{Value: 2}); err != nil {
		t.Fatalf("shadowing in an inner scope must work: %s", err)
	}
	if err := inner.DeclareLet("x", &Integer{Value: 3}); err == nil {
		t.Fatalf("expected a redeclaration error")
	}

	if v, _ := inner.Get("x"); v.Inspect() != "2" {
		t.Fatalf("inner binding must shadow")
	}
	if v, _ := global.Get("x"); v.Inspect() != "1" {
		t.Fatalf("outer binding must survive")
	}
}

func TestConstIsEnforced(t *testing.T) {
	env := NewEnvironment()
	if err := env.DeclareConst("c", &Integer{Value: 1}); err != nil {
		t.Fatalf("declare failed: %s", err)
	}
	err := env.Set("c", &Integer{Value: 2})
	if err == nil || !strings.Contains(err.Error(), "constant") {
		t.Fatalf("expected a constant error, got %v", err)
	}
}

func TestSetWalksChainAndUnbinds(t *testing.T) {
	global := NewEnvironment()
	inner := NewEnclosedEnvironment(global)

	if err := global.DeclareLet("x", &Integer{Value: 1}); err != nil {
		t.Fatalf("declare failed: %s", err)
	}
	if err := inner.Set("x", &Integer{Value: 5}); err != nil {
		t.Fatalf("set failed: %s", err)
	}
	if v, _ := global.Get("x"); v.Inspect() != "5" {
		t.Fatalf("set must update the owning scope")
	}

	// Assigning undefined removes the binding.
	if err := inner.Set("x", &Undefined{}); err != nil {
		t.Fatalf("unbinding set failed: %s", err)
	}
	if _, ok := global.Get("x"); ok {
		t.Fatalf("binding must be removed")
	}

	if err := inner.Set("nope", &Integer{Value: 1}); err == nil {
		t.Fatalf("expected an undeclared error")
	}
}

func TestForceSetBypassesRules(t *testing.T) {
	env := NewEnvironment()
	env.ForceSet("k", &Integer{Value: 1}, true)
	env.ForceSet("k", &Integer{Value: 2}, true)
	if v, _ := env.Get("k"); v.Inspect() != "2" {
		t.Fatalf("force-set must overwrite")
	}
	if env.Depth() != 0 {
		t.Fatalf("global depth must be zero")
	}
	if NewEnclosedEnvironment(env).Depth() != 1 {
		t.Fatalf("child depth must be one")
	}
}
