package vm

import (
	"errors"

	"github.com/chazu/modl/pkg/bytecode"
	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
)

// run executes from vm.ip until RET and returns R0.
func (vm *VM) run() value.Value {
	if vm.dec == nil {
		fault.Raisef(fault.Unsupported, "no code loaded")
	}
	for {
		in, err := vm.dec.Decode(vm.ip)
		if err != nil {
			if errors.Is(err, bytecode.ErrUnknownOpcode) {
				fault.Wrap(fault.UnknownOpcode, err)
			}
			fault.Wrap(fault.Decode, err)
		}
		if vm.cfg.Trace {
			vm.log.Debugf("[%04x] %s", vm.ip, bytecode.Format(in))
		}

		if in.Op == bytecode.OpRet {
			vm.dec.Release(&in)
			return vm.reg(0)
		}

		vm.execute(&in)
		vm.ip += in.Len
		vm.dec.Release(&in)
	}
}

func (vm *VM) execute(in *bytecode.Instruction) {
	a0, a1 := in.Args[0], in.Args[1]

	switch op := in.Op; {
	case op == bytecode.OpNop:

	case op == bytecode.OpMov:
		vm.setReg(a0.A, vm.reg(a0.B))

	case op == bytecode.OpLoadC:
		vm.setReg(a0.A, a1.Const)

	case op == bytecode.OpTblGetR:
		vm.setReg(a0.A, value.Get(vm.reg(a0.A), vm.reg(a0.B)))

	case op == bytecode.OpTblGetC:
		vm.setReg(a0.A, value.Get(vm.reg(a0.A), a1.Const))

	case op == bytecode.OpTblSetR:
		value.Insert(vm.reg(a0.A), vm.reg(a0.B), vm.reg(a1.A))

	case op == bytecode.OpTblSetC:
		value.Insert(vm.reg(a0.A), a1.Const, vm.reg(a0.B))

	case op == bytecode.OpTblPush:
		value.Push(vm.reg(a0.A), vm.reg(a0.B))

	case op == bytecode.OpCallR:
		vm.callFunction(vm.reg(a0.A))

	case op == bytecode.OpLoadFun:
		fn := value.InternalFunction(uint64(int64(vm.ip)+a1.Imm), vm.Env())
		vm.setReg(a0.A, fn)
		fn.ReleaseTmp()

	case op == bytecode.OpJmp:
		vm.jump(in, a0.Imm)

	case op == bytecode.OpJcf, op == bytecode.OpJct:
		if value.Truthy(vm.reg(a0.A)) == (op == bytecode.OpJct) {
			vm.jump(in, a1.Imm)
		}

	case op == bytecode.OpCmpEq, op == bytecode.OpCmpNeq:
		eq := value.Equals(vm.reg(a0.A), vm.reg(a0.B))
		vm.setReg(a0.A, value.Bool(eq == (op == bytecode.OpCmpEq)))

	case op.IsBinary():
		vm.binary(op, a0.A, a0.B)

	case op == bytecode.OpPush:
		vm.Push(vm.reg(a0.A))

	case op == bytecode.OpPop:
		v := vm.Pop()
		vm.setReg(a0.A, v)
		v.ReleaseTmp()

	case op == bytecode.OpEnvGetC:
		vm.envGet(a0.A, a1.Const)

	case op == bytecode.OpEnvGetR:
		vm.envGet(a0.A, vm.reg(a0.B))

	case op == bytecode.OpEnvSetC:
		vm.Env().Define(a1.Const, vm.reg(a0.A))

	case op == bytecode.OpEnvSetR:
		vm.Env().Define(vm.reg(a0.B), vm.reg(a0.A))

	case op == bytecode.OpEnvUpkC:
		vm.unpack(vm.reg(a0.A), vm.reg(a0.B))

	case op == bytecode.OpNot:
		vm.setReg(a0.A, value.Bool(!value.Truthy(vm.reg(a0.A))))

	case op == bytecode.OpInv:
		v := vm.reg(a0.A)
		if v.Type() != value.Integer {
			fault.Raisef(fault.Type, "INV requires an integer, got %s", v.Type())
		}
		vm.setReg(a0.A, value.Int(^v.AsInt()))

	case op == bytecode.OpNeg:
		switch v := vm.reg(a0.A); v.Type() {
		case value.Integer:
			vm.setReg(a0.A, value.Int(-v.AsInt()))
		case value.Floating:
			vm.setReg(a0.A, value.Float(-v.AsFloat()))
		default:
			fault.Raisef(fault.Type, "NEG requires a number, got %s", v.Type())
		}

	case op == bytecode.OpLen:
		vm.setReg(a0.A, value.Int(length(vm.reg(a0.A))))

	default:
		fault.Raisef(fault.UnknownOpcode, "instruction implementation not found: %s", op)
	}
}

// jump moves ip so that the unconditional advance after execute lands on
// the instruction start plus off.
func (vm *VM) jump(in *bytecode.Instruction, off int64) {
	vm.ip += int(off) - in.Len
}

func (vm *VM) envGet(dst uint8, name value.Value) {
	v, _ := vm.Env().Lookup(name)
	vm.setReg(dst, v)
}

// unpack binds names[i] to values[i] in the current scope for i = 0, 1, ...
// while both tables have index i.
func (vm *VM) unpack(values, names value.Value) {
	env := vm.Env()
	for i := int64(0); ; i++ {
		v, ok := value.Index(values, i)
		if !ok {
			return
		}
		name, ok := value.Index(names, i)
		if !ok {
			return
		}
		env.Define(name, v)
	}
}

func length(v value.Value) int64 {
	switch v.Type() {
	case value.String:
		return int64(len(v.Bytes()))
	case value.Table:
		return value.SequenceLen(v)
	}
	fault.Raisef(fault.Type, "length of object of type %s cannot be taken", v.Type())
	return 0
}
