// Package mildew is the embedding surface of the interpreter.
//
// We're constructed empty, and each Evaluate call runs the usual
// steps: lexing, parsing, bytecode-compilation, and execution on the
// virtual machine.  Globals live in an environment shared by every
// evaluation, so a REPL (or a host feeding us multiple scripts) keeps
// its state.
package mildew

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
	"github.com/mildew-lang/mildew/program"
	"github.com/mildew-lang/mildew/vm"
)

// Interpreter is our public-facing structure which stores our state.
type Interpreter struct {

	// printDisasm dumps each compiled program before execution.
	printDisasm bool

	// globals is the environment shared by every evaluation.
	globals *object.Environment

	// machine is the VM we drive.
	machine *vm.VM
}

// New creates a new instance of the interpreter.  The two flags
// enable a disassembly listing before each run, and a per-opcode
// execution trace during it.
func New(printDisasm, printVMTrace bool) *Interpreter {
	i := &Interpreter{
		printDisasm: printDisasm,
		globals:     object.NewEnvironment(),
	}
	i.machine = vm.New(i.globals)
	i.machine.Trace = printVMTrace
	return i
}

// Machine exposes the underlying VM, which hosts need for reentrant
// calls and fiber bookkeeping.
func (i *Interpreter) Machine() *vm.VM { return i.machine }

// ForceSetGlobal installs a global binding, bypassing the usual
// declaration rules.
func (i *Interpreter) ForceSetGlobal(name string, value object.Object, isConst bool) {
	i.globals.ForceSet(name, value, isConst)
}

// RunVMFibers drains the pending fiber queue.
func (i *Interpreter) RunVMFibers() error {
	return i.machine.Scheduler().Run()
}

// Evaluate compiles and runs a string in a fresh top-level scope
// under the shared global environment, returning the value of the
// last expression.
func (i *Interpreter) Evaluate(source string) (object.Object, error) {
	prog, err := Compile(source)
	if err != nil {
		return nil, err
	}
	return i.RunProgram(prog)
}

// EvaluateFile runs a source or compiled-bytecode file, detecting the
// latter by its binary marker.
func (i *Interpreter) EvaluateFile(path string) (object.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && data[0] == program.BinaryMarker {
		prog, err := program.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return i.RunProgram(prog)
	}
	return i.Evaluate(string(data))
}

// RunProgram executes a compiled program on the shared machine.
func (i *Interpreter) RunProgram(prog *program.Program) (object.Object, error) {
	// Every function of the unit carries the shared pool, so
	// functions survive into later evaluations.
	prog.Main.Consts = prog.Constants
	for _, c := range prog.Constants {
		if fn, ok := c.(*object.Function); ok {
			fn.Consts = prog.Constants
		}
	}

	if i.printDisasm {
		i.Dump(prog)
	}

	return i.machine.RunProgram(prog)
}

// dumper renders one instruction, with inline comments for the
// opcodes that benefit from them.
func (i *Interpreter) dumper(constants []object.Object) code.WalkFunc {
	return func(offset int, op code.Opcode, args []int) bool {
		fmt.Printf("  %04d\t%-12s", offset, code.String(op))
		for _, a := range args {
			fmt.Printf("\t% 4d", a)
		}

		if len(args) == 1 && args[0] >= 0 && args[0] < len(constants) {
			switch op {
			case code.OpConst:
				s := strings.ReplaceAll(constants[args[0]].Inspect(), "\n", "\\n")
				fmt.Printf("\t// push constant: %s", s)
			case code.OpGetVar, code.OpSetVar, code.OpDeclVar, code.OpDeclLet, code.OpDeclConst:
				fmt.Printf("\t// variable: %s", constants[args[0]].Inspect())
			}
		}
		if op == code.OpCall || op == code.OpNew {
			fmt.Printf("\t// %d arg(s)", args[0])
		}
		fmt.Printf("\n")
		return true
	}
}

// Dump prints the disassembly of a compiled program: the main
// function, the constant pool, and the bytecode of every function
// constant.
func (i *Interpreter) Dump(prog *program.Program) {
	fmt.Printf("Bytecode:\n")
	if err := code.Walk(prog.Main.Instructions, i.dumper(prog.Constants)); err != nil {
		fmt.Printf("  %s\n", err)
	}

	if len(prog.Constants) > 0 {
		fmt.Printf("\nConstant Pool:\n")
		for idx, c := range prog.Constants {
			s := strings.ReplaceAll(c.Inspect(), "\n", "\\n")
			fmt.Printf("  %04d Type:%s Value:%s\n", idx, c.Type(), s)
		}
	}

	for idx, c := range prog.Constants {
		fn, ok := c.(*object.Function)
		if !ok || fn.Kind != object.ScriptFunction {
			continue
		}
		name := fn.Name
		if name == "" {
			name = "anonymous"
		}
		fmt.Printf("\nfunction %s(%s)\t// constant %d\n", name, strings.Join(fn.Parameters, ", "), idx)
		if err := code.Walk(fn.Instructions, i.dumper(prog.Constants)); err != nil {
			fmt.Printf("  %s\n", err)
		}
	}
	fmt.Printf("\n")
}
