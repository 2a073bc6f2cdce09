package vm

import (
	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
)

// callFunction runs fn in a fresh scope nested in the scope it closed over.
// Arguments are already on the stack; the result is left in R0.
func (vm *VM) callFunction(fn value.Value) {
	if fn.Type() != value.Function {
		fault.Raisef(fault.NotCallable, "attempt to call a %s value", fn.Type())
	}
	if len(vm.frames) >= vm.cfg.CallStackSize {
		fault.Raisef(fault.CallStackOverflow, "maximum call depth exceeded: call_stack_max_size=%d", vm.cfg.CallStackSize)
	}

	// The callee may overwrite the register holding fn.
	fn.Take()
	cl := fn.Closure()
	env := value.NewEnvironment(cl.Context).Retain()
	vm.frames = append(vm.frames, frame{ret: vm.ip, env: env})

	if cl.External {
		if cl.Position >= uint64(len(vm.externals)) {
			fault.Raisef(fault.NotCallable, "external function %d is not registered", cl.Position)
		}
		result := vm.externals[cl.Position](vm)
		vm.setReg(0, result)
		result.ReleaseTmp()
	} else {
		vm.ip = int(cl.Position)
		vm.run()
	}

	top := len(vm.frames) - 1
	vm.ip = vm.frames[top].ret
	vm.frames[top] = frame{}
	vm.frames = vm.frames[:top]
	env.Release()
	fn.Release()
}
