// Package vm executes Modl bytecode.
//
// A VM owns a register file of 16 values, a bounded value stack, a bounded
// call stack and a table of host routines ("externals"). Execution starts at
// offset 0 and runs until the top-level RET. Calls to bytecode functions
// recurse into the dispatch loop, so the guest call depth is mirrored on the
// Go stack and bounded by Config.CallStackSize.
//
// Every fatal condition is raised as a *fault.Fault. Run and Call return it
// as an error; the VM must be closed and discarded afterwards.
package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/modl/pkg/bytecode"
	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
)

// External is a host routine callable from bytecode. It pops its arguments
// from the stack, first argument on top, and returns its result, which the
// VM claims.
type External func(vm *VM) value.Value

// ErrFaulted is returned when a VM is used after a fault.
var ErrFaulted = errors.New("vm: unusable after fault")

// frame is one call stack entry.
type frame struct {
	ret int // ip of the calling instruction
	env *value.Environment
}

// regState tracks reads between writes for the register monitor.
type regState struct {
	read    bool
	writeIP int
}

// VM is a Modl virtual machine. It is not safe for concurrent use.
type VM struct {
	id  uuid.UUID
	cfg Config
	log commonlog.Logger

	dec *bytecode.Decoder
	ip  int

	regs       [NumRegisters]value.Value
	monitor    [NumRegisters]regState
	deadStores int

	stack  []value.Value
	frames []frame
	root   *value.Environment

	externals     []External
	externalNames []string

	faulted bool
}

// New creates a VM with the given bounds. Zero fields take their defaults.
func New(cfg Config) *VM {
	cfg = cfg.withDefaults()
	vm := &VM{
		id:     uuid.New(),
		cfg:    cfg,
		log:    cfg.Logger,
		stack:  make([]value.Value, 0, cfg.StackSize),
		frames: make([]frame, 0, cfg.CallStackSize),
		root:   value.NewEnvironment(nil).Retain(),
	}
	for i := range vm.monitor {
		vm.monitor[i].read = true
	}
	vm.frames = append(vm.frames, frame{ret: 0, env: vm.root.Retain()})
	vm.log.Debugf("vm %s: created (stack=%d calls=%d externals=%d)",
		vm.id, cfg.StackSize, cfg.CallStackSize, cfg.MaxExternals)
	return vm
}

// ID returns the instance identifier used in diagnostics.
func (vm *VM) ID() uuid.UUID { return vm.id }

// Config returns the bounds the VM was built with.
func (vm *VM) Config() Config { return vm.cfg }

// IP returns the current instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// Root returns the root environment.
func (vm *VM) Root() *value.Environment { return vm.root }

// Env returns the environment of the innermost call frame.
func (vm *VM) Env() *value.Environment { return vm.frames[len(vm.frames)-1].env }

// CallDepth returns the number of active call frames, including the root.
func (vm *VM) CallDepth() int { return len(vm.frames) }

// StackLen returns the number of values on the stack.
func (vm *VM) StackLen() int { return len(vm.stack) }

// DeadStores returns how often a register was overwritten without having
// been read.
func (vm *VM) DeadStores() int { return vm.deadStores }

// Registers returns a copy of the register file. The values are borrowed.
func (vm *VM) Registers() [NumRegisters]value.Value { return vm.regs }

// Register returns R[i] without touching the register monitor.
func (vm *VM) Register(i int) value.Value { return vm.regs[i&0x0F] }

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

func (vm *VM) reg(i uint8) value.Value {
	vm.monitor[i].read = true
	return vm.regs[i]
}

func (vm *VM) setReg(i uint8, v value.Value) {
	m := &vm.monitor[i]
	if !m.read {
		vm.deadStores++
		if !vm.cfg.Silent {
			vm.log.Warningf("register value rewritten without previous reads at: [%04x]", m.writeIP)
		}
	}
	m.read = false
	m.writeIP = vm.ip

	old := vm.regs[i]
	if value.Same(old, v) {
		return
	}
	vm.regs[i] = v.Take()
	old.Release()
}

// SetRegister writes R[i] as an instruction would.
func (vm *VM) SetRegister(i int, v value.Value) {
	vm.setReg(uint8(i&0x0F), v)
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

// Push claims v and pushes it.
func (vm *VM) Push(v value.Value) {
	if len(vm.stack) >= vm.cfg.StackSize {
		fault.Raisef(fault.StackOverflow, "maximum stack size exceeded: stack_max_size=%d", vm.cfg.StackSize)
	}
	vm.stack = append(vm.stack, v.Take())
}

// Pop removes the top value and hands its ownership to the caller, who must
// claim it or release it with ReleaseTmp.
func (vm *VM) Pop() value.Value {
	n := len(vm.stack)
	if n == 0 {
		fault.Raisef(fault.StackUnderflow, "cannot pop from empty stack")
	}
	v := vm.stack[n-1]
	vm.stack[n-1] = value.Value{}
	vm.stack = vm.stack[:n-1]
	return v.Disown()
}

// ---------------------------------------------------------------------------
// Host bindings
// ---------------------------------------------------------------------------

// RegisterExternal adds a host routine and binds it in the root
// environment. A dotted name such as "String.substring" binds into the
// table named by its prefix, creating it if needed.
func (vm *VM) RegisterExternal(name string, fn External) (err error) {
	defer fault.Catch(&err)
	if len(vm.externals) >= vm.cfg.MaxExternals {
		fault.Raisef(fault.ExternalOverflow, "cannot register %q: limit of %d externals", name, vm.cfg.MaxExternals)
	}
	index := uint64(len(vm.externals))
	vm.externals = append(vm.externals, fn)
	vm.externalNames = append(vm.externalNames, name)
	vm.bind(name, value.ExternalFunction(index))
	return nil
}

func (vm *VM) bind(name string, v value.Value) {
	defer v.ReleaseTmp()
	ns, member, dotted := strings.Cut(name, ".")
	if !dotted {
		key := value.Str(name)
		vm.root.Define(key, v)
		key.ReleaseTmp()
		return
	}
	nsKey := value.Str(ns)
	defer nsKey.ReleaseTmp()
	tbl, ok := vm.root.Vars().Map().Get(nsKey)
	if !ok || tbl.Type() != value.Table {
		tbl = value.NewTable()
		vm.root.Define(nsKey, tbl)
	}
	memberKey := value.Str(member)
	value.Insert(tbl, memberKey, v)
	memberKey.ReleaseTmp()
}

// Define binds name to v in the root environment.
func (vm *VM) Define(name string, v value.Value) (err error) {
	defer fault.Catch(&err)
	vm.bind(name, v)
	return nil
}

// Lookup resolves a root binding. Dotted names look into namespace tables.
func (vm *VM) Lookup(name string) (value.Value, bool) {
	ns, member, dotted := strings.Cut(name, ".")
	key := value.Str(ns)
	defer key.ReleaseTmp()
	v, ok := vm.root.Lookup(key)
	if !ok || !dotted {
		return v, ok
	}
	if v.Type() != value.Table {
		return value.Value{}, false
	}
	mk := value.Str(member)
	defer mk.ReleaseTmp()
	return v.Map().Get(mk)
}

// ExternalIndex returns the index of the host routine registered under name.
func (vm *VM) ExternalIndex(name string) (int, bool) {
	for i, n := range vm.externalNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Externals returns the registered routine names in index order.
func (vm *VM) Externals() []string {
	return append([]string(nil), vm.externalNames...)
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// annotate stamps a fault with the current instruction pointer and marks the
// VM unusable.
func (vm *VM) annotate(errp *error) {
	if *errp == nil {
		return
	}
	var f *fault.Fault
	if errors.As(*errp, &f) {
		if f.IP < 0 {
			f.IP = vm.ip
		}
		vm.faulted = true
		vm.log.Debugf("vm %s: fault: %v", vm.id, f)
	}
}

// Load installs code for execution. The buffer is borrowed for the lifetime
// of the VM or until the next Load.
func (vm *VM) Load(code []byte) {
	if vm.dec != nil {
		vm.dec.Close()
	}
	vm.dec = bytecode.NewDecoder(code)
	vm.ip = 0
}

// Run loads code and executes it from offset 0 until the top-level RET. The
// result is R0 and stays valid until the register is overwritten or the VM
// is closed.
func (vm *VM) Run(code []byte) (result value.Value, err error) {
	if vm.faulted {
		return value.Value{}, ErrFaulted
	}
	vm.Load(code)
	defer vm.annotate(&err)
	defer fault.Catch(&err)
	vm.log.Debugf("vm %s: running %d bytes", vm.id, len(code))
	return vm.run(), nil
}

// Call invokes fn with args from host code and returns R0. It requires code
// to have been loaded for bytecode functions. Host routines running inside
// the VM should use Invoke instead.
func (vm *VM) Call(fn value.Value, args ...value.Value) (result value.Value, err error) {
	if vm.faulted {
		return value.Value{}, ErrFaulted
	}
	defer vm.annotate(&err)
	defer fault.Catch(&err)
	return vm.Invoke(fn, args...), nil
}

// Invoke calls fn with args, pushing them so that the first argument is on
// top, and returns R0. Faults propagate to the enclosing Run.
func (vm *VM) Invoke(fn value.Value, args ...value.Value) value.Value {
	if fn.Type() == value.Function && !fn.Closure().External && vm.dec == nil {
		fault.Raisef(fault.Unsupported, "no code loaded")
	}
	for i := len(args) - 1; i >= 0; i-- {
		vm.Push(args[i])
	}
	vm.callFunction(fn)
	return vm.regs[0]
}

// Close releases registers, the stack, the root environment and cached
// constants. Closing a VM whose reference counts were left inconsistent by
// a fault reports that fault.
func (vm *VM) Close() (err error) {
	defer fault.Catch(&err)
	for i := range vm.regs {
		vm.regs[i].Release()
		vm.regs[i] = value.Value{}
	}
	for _, v := range vm.stack {
		v.Release()
	}
	vm.stack = vm.stack[:0]
	for i := len(vm.frames) - 1; i >= 0; i-- {
		vm.frames[i].env.Release()
	}
	vm.frames = vm.frames[:0]
	if vm.root != nil {
		vm.root.Release()
		vm.root = nil
	}
	if vm.dec != nil {
		vm.dec.Close()
		vm.dec = nil
	}
	vm.log.Debugf("vm %s: closed", vm.id)
	return nil
}

// String describes the VM state for diagnostics.
func (vm *VM) String() string {
	return fmt.Sprintf("vm %s ip=[%04x] frames=%d stack=%d", vm.id, vm.ip, len(vm.frames), len(vm.stack))
}
