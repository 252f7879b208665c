package vm

import (
	"testing"

	"github.com/mildew-lang/mildew/object"
)

// recorder builds a native fiber body which logs markers, yielding
// between them.
func recorder(machine *VM, log *[]string, markers ...string) *object.Function {
	return object.NewNative("recorder",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			for i, m := range markers {
				*log = append(*log, m)
				if i < len(markers)-1 {
					if _, err := machine.Yield(Undef); err != nil {
						return &object.String{Value: err.Error()}, object.ReturnValueIsException
					}
				}
			}
			return Undef, object.NoError
		})
}

func TestFIFOWithRequeueOnYield(t *testing.T) {
	machine := New(object.NewEnvironment())
	sched := machine.Scheduler()

	var log []string
	sched.AddFiber("a", recorder(machine, &log, "a1", "a2"), Undef, nil)
	sched.AddFiber("b", recorder(machine, &log, "b1", "b2"), Undef, nil)

	if err := sched.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	want := []string{"a1", "b1", "a2", "b2"}
	if len(log) != len(want) {
		t.Fatalf("unexpected log %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("unexpected log %v, wanted %v", log, want)
		}
	}
}

func TestAddFiberFirst(t *testing.T) {
	machine := New(object.NewEnvironment())
	sched := machine.Scheduler()

	var log []string
	sched.AddFiber("late", recorder(machine, &log, "late"), Undef, nil)
	sched.AddFiberFirst("early", recorder(machine, &log, "early"), Undef, nil)

	if err := sched.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(log) != 2 || log[0] != "early" || log[1] != "late" {
		t.Fatalf("unexpected order %v", log)
	}
}

func TestFibersMaySpawnFibers(t *testing.T) {
	machine := New(object.NewEnvironment())
	sched := machine.Scheduler()

	var log []string
	parent := object.NewNative("parent",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			log = append(log, "parent")
			sched.AddFiber("child", recorder(machine, &log, "child"), Undef, nil)
			return Undef, object.NoError
		})

	sched.AddFiber("parent", parent, Undef, nil)
	if err := sched.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(log) != 2 || log[1] != "child" {
		t.Fatalf("unexpected log %v", log)
	}
}

func TestRemoveFiber(t *testing.T) {
	machine := New(object.NewEnvironment())
	sched := machine.Scheduler()

	var log []string
	doomed := sched.AddFiber("doomed", recorder(machine, &log, "never"), Undef, nil)

	// Pending removal succeeds, and the fiber never runs.
	if !sched.RemoveFiber(doomed) {
		t.Fatalf("pending removal must succeed")
	}
	if err := sched.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(log) != 0 {
		t.Fatalf("cancelled fiber ran: %v", log)
	}

	// Once started, removal is advisory.
	started := sched.NewFiber("started", recorder(machine, &log, "s1", "s2"), Undef, nil)
	if _, done, err := sched.Resume(started, Undef); err != nil || done {
		t.Fatalf("first resume failed: %v %v", done, err)
	}
	if sched.RemoveFiber(started) {
		t.Fatalf("removal of a started fiber must report false")
	}
	if !started.Cancelled() {
		t.Fatalf("the advisory flag must be set")
	}
}

func TestResumeProtocol(t *testing.T) {
	machine := New(object.NewEnvironment())
	sched := machine.Scheduler()

	// The fiber yields a value out and receives one back.
	body := object.NewNative("gen",
		func(env *object.Environment, this object.Object, args []object.Object) (object.Object, object.NativeError) {
			got, err := machine.Yield(&object.String{Value: "out"})
			if err != nil {
				return &object.String{Value: err.Error()}, object.ReturnValueIsException
			}
			n := got.(*object.Integer).Value
			return &object.Integer{Value: n + 1}, object.NoError
		})

	f := sched.NewFiber("gen", body, Undef, nil)

	val, done, err := sched.Resume(f, Undef)
	if err != nil || done {
		t.Fatalf("unexpected resume result: %v %v", done, err)
	}
	if val.Inspect() != "out" {
		t.Fatalf("unexpected yielded value %s", val.Inspect())
	}

	val, done, err = sched.Resume(f, &object.Integer{Value: 41})
	if err != nil || !done {
		t.Fatalf("unexpected resume result: %v %v", done, err)
	}
	if val.Inspect() != "42" {
		t.Fatalf("unexpected final value %s", val.Inspect())
	}

	// A finished fiber stays finished.
	if !f.Finished() {
		t.Fatalf("fiber must be finished")
	}
	if _, done, _ := sched.Resume(f, Undef); !done {
		t.Fatalf("resuming a finished fiber must report done")
	}
}

func TestYieldOutsideFiber(t *testing.T) {
	machine := New(object.NewEnvironment())
	if _, err := machine.Yield(Undef); err == nil {
		t.Fatalf("yield outside a fiber must fail")
	}
}
