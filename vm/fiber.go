// The fiber scheduler: cooperative, single-threaded multitasking.
//
// Each fiber runs its function on a private goroutine, but execution
// is strictly serialized: the scheduler hands control to exactly one
// fiber at a time over a resume/yield channel pair, and the machine
// state is swapped at every switch.  From the script's point of view
// this is a stackful coroutine; no two fibers (nor the main program)
// ever run concurrently.
package vm

import (
	"fmt"

	"github.com/mildew-lang/mildew/object"
)

// fiberSignal is what a fiber reports back to the scheduler: either a
// yield carrying a value, or completion carrying the result or error.
type fiberSignal struct {
	yielded bool
	value   object.Object
	err     error
}

// Fiber is an independent control flow with its own call stack,
// suspended at explicit yield points.
type Fiber struct {
	// Name tags the fiber for diagnostics and host bookkeeping.
	Name string

	fn   *object.Function
	this object.Object
	args []object.Object

	started   bool
	finished  bool
	cancelled bool

	// resume carries the value a suspended fiber wakes up with.
	resume chan object.Object

	// signal carries yields and completion back to the scheduler.
	signal chan fiberSignal

	// state is the fiber's machine state while it is suspended.
	state machineState
}

// Finished reports whether the fiber has run to completion.
func (f *Fiber) Finished() bool { return f.finished }

// Cancelled reports the host-visible cancellation flag; a running
// fiber is expected to check this at its yield points and exit
// cleanly.
func (f *Fiber) Cancelled() bool { return f.cancelled }

// Scheduler owns the pending-fiber queue of one machine.
type Scheduler struct {
	vm    *VM
	queue []*Fiber
}

func newScheduler(vm *VM) *Scheduler {
	return &Scheduler{vm: vm}
}

// NewFiber creates a detached fiber which is not enqueued; generators
// drive these directly via Resume.
func (s *Scheduler) NewFiber(name string, fn *object.Function, this object.Object, args []object.Object) *Fiber {
	return &Fiber{
		Name:   name,
		fn:     fn,
		this:   this,
		args:   args,
		resume: make(chan object.Object),
		signal: make(chan fiberSignal),
	}
}

// AddFiber enqueues a new fiber at the back of the pending queue and
// returns its handle.
func (s *Scheduler) AddFiber(name string, fn *object.Function, this object.Object, args []object.Object) *Fiber {
	f := s.NewFiber(name, fn, this, args)
	s.queue = append(s.queue, f)
	return f
}

// AddFiberFirst enqueues a new fiber at the head of the pending
// queue.
func (s *Scheduler) AddFiberFirst(name string, fn *object.Function, this object.Object, args []object.Object) *Fiber {
	f := s.NewFiber(name, fn, this, args)
	s.queue = append([]*Fiber{f}, s.queue...)
	return f
}

// RemoveFiber cancels a fiber, returning true iff it was still
// pending: once a fiber has started, removal only sets the advisory
// cancellation flag.
func (s *Scheduler) RemoveFiber(f *Fiber) bool {
	f.cancelled = true
	if f.started {
		return false
	}
	for i, q := range s.queue {
		if q == f {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of queued fibers.
func (s *Scheduler) Pending() int { return len(s.queue) }

// Run drains the pending queue in FIFO order until it is empty.  Each
// fiber runs until it yields, finishes, or throws; a fiber that
// yields is re-queued at the back.  Fibers may enqueue further fibers
// while running.
func (s *Scheduler) Run() error {
	for len(s.queue) > 0 {
		f := s.queue[0]
		s.queue = s.queue[1:]

		if f.cancelled && !f.started {
			continue
		}

		sig := s.resumeFiber(f, Undef)
		if sig.err != nil {
			return sig.err
		}
		if sig.yielded {
			s.queue = append(s.queue, f)
		}
	}
	return nil
}

// Resume hands control to the fiber until its next yield point,
// returning the yielded value and whether the fiber finished.  It is
// the primitive behind generators.
func (s *Scheduler) Resume(f *Fiber, send object.Object) (object.Object, bool, error) {
	if f.finished {
		return Undef, true, nil
	}
	sig := s.resumeFiber(f, send)
	if sig.err != nil {
		return Undef, true, sig.err
	}
	val := sig.value
	if val == nil {
		val = Undef
	}
	return val, !sig.yielded, nil
}

// Finish marks a fiber finished without running it further; a fiber
// suspended at a yield stays parked.
func (s *Scheduler) Finish(f *Fiber) {
	f.finished = true
	f.cancelled = true
}

// resumeFiber switches the machine into the fiber until it yields or
// completes, then switches back.
func (s *Scheduler) resumeFiber(f *Fiber, send object.Object) fiberSignal {
	vm := s.vm
	saved := vm.save()
	savedFiber := vm.curFiber
	vm.curFiber = f

	if !f.started {
		f.started = true
		go func() {
			result, err := vm.RunFunction(f.fn, f.this, f.args)
			f.signal <- fiberSignal{value: result, err: err}
		}()
	} else {
		vm.restore(f.state)
		f.resume <- send
	}

	sig := <-f.signal

	vm.curFiber = savedFiber
	vm.restore(saved)

	if !sig.yielded {
		f.finished = true
	}
	return sig
}

// Yield suspends the currently-executing fiber, handing the value to
// whoever resumed it, and blocks until the fiber is resumed.  The
// returned value is whatever the resumer sent.
func (vm *VM) Yield(value object.Object) (object.Object, error) {
	f := vm.curFiber
	if f == nil {
		return nil, fmt.Errorf("yield outside of a fiber")
	}
	f.state = vm.save()
	f.signal <- fiberSignal{yielded: true, value: value}
	v := <-f.resume
	return v, nil
}

// CurrentFiber returns the fiber currently executing, if any.
func (vm *VM) CurrentFiber() *Fiber { return vm.curFiber }
