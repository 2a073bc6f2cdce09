package vm

import (
	"math"

	"github.com/chazu/modl/pkg/bytecode"
	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
)

// binary executes the two-register arithmetic, bitwise and ordering
// instructions, writing the result into R[dst].
func (vm *VM) binary(op bytecode.Opcode, dst, src uint8) {
	l, r := vm.reg(dst), vm.reg(src)

	if l.Type() == value.Floating && r.Type() == value.Integer {
		r = value.Cast(r, value.Floating)
	} else if r.Type() == value.Floating && l.Type() == value.Integer {
		l = value.Cast(l, value.Floating)
	}

	if l.Type() != r.Type() {
		fault.Raisef(fault.Type, "values are required to have the same type: %s <> %s", l.Type(), r.Type())
	}

	if l.Type() == value.String && op == bytecode.OpAdd {
		vm.concat(dst, l, r)
		return
	}

	switch l.Type() {
	case value.Integer:
		vm.setReg(dst, intOp(op, l.AsInt(), r.AsInt()))
	case value.Floating:
		vm.setReg(dst, floatOp(op, l.AsFloat(), r.AsFloat()))
	default:
		fault.Raisef(fault.Type, "%s requires operands of integer or floating types: %s", op, l.Type())
	}
}

// concat joins two strings through the registered "concat" routine.
func (vm *VM) concat(dst uint8, l, r value.Value) {
	idx, ok := vm.ExternalIndex("concat")
	if !ok {
		fault.Raisef(fault.Unsupported, "string ADD requires a registered concat routine")
	}
	vm.Push(r)
	vm.Push(l)
	result := vm.externals[idx](vm)
	vm.setReg(dst, result)
	result.ReleaseTmp()
}

func intOp(op bytecode.Opcode, l, r int64) value.Value {
	switch op {
	case bytecode.OpRol:
		return value.Int(l << shift(r))
	case bytecode.OpRor:
		return value.Int(l >> shift(r))
	case bytecode.OpIDiv:
		return value.Int(l / divisor(r))
	case bytecode.OpAdd:
		return value.Int(l + r)
	case bytecode.OpSub:
		return value.Int(l - r)
	case bytecode.OpMul:
		return value.Int(l * r)
	case bytecode.OpDiv:
		return value.Float(float64(l) / float64(r))
	case bytecode.OpMod:
		return value.Int(l % divisor(r))
	case bytecode.OpAnd:
		return value.Int(l & r)
	case bytecode.OpOr:
		return value.Int(l | r)
	case bytecode.OpXor:
		return value.Int(l ^ r)
	case bytecode.OpNand:
		return value.Int(^(l & r))
	case bytecode.OpNor:
		return value.Int(^(l | r))
	case bytecode.OpNxor:
		return value.Int(^(l ^ r))
	case bytecode.OpCmpLt:
		return value.Bool(l < r)
	case bytecode.OpCmpNlt:
		return value.Bool(!(l < r))
	case bytecode.OpCmpGt:
		return value.Bool(l > r)
	case bytecode.OpCmpNgt:
		return value.Bool(!(l > r))
	case bytecode.OpCmpLe:
		return value.Bool(l <= r)
	case bytecode.OpCmpNle:
		return value.Bool(!(l <= r))
	case bytecode.OpCmpGe:
		return value.Bool(l >= r)
	case bytecode.OpCmpNge:
		return value.Bool(!(l >= r))
	}
	fault.Raisef(fault.Unsupported, "%s is not an integer operation", op)
	return value.Value{}
}

func floatOp(op bytecode.Opcode, l, r float64) value.Value {
	switch op {
	case bytecode.OpAdd:
		return value.Float(l + r)
	case bytecode.OpSub:
		return value.Float(l - r)
	case bytecode.OpMul:
		return value.Float(l * r)
	case bytecode.OpDiv:
		return value.Float(l / r)
	case bytecode.OpMod:
		return value.Float(math.Mod(l, r))
	case bytecode.OpCmpLt:
		return value.Bool(l < r)
	case bytecode.OpCmpNlt:
		return value.Bool(!(l < r))
	case bytecode.OpCmpGt:
		return value.Bool(l > r)
	case bytecode.OpCmpNgt:
		return value.Bool(!(l > r))
	case bytecode.OpCmpLe:
		return value.Bool(l <= r)
	case bytecode.OpCmpNle:
		return value.Bool(!(l <= r))
	case bytecode.OpCmpGe:
		return value.Bool(l >= r)
	case bytecode.OpCmpNge:
		return value.Bool(!(l >= r))
	}
	fault.Raisef(fault.Unsupported, "this operation is not supported on floats: %s", op)
	return value.Value{}
}

func shift(n int64) uint64 {
	if n < 0 {
		fault.Raisef(fault.Unsupported, "negative shift count %d", n)
	}
	return uint64(n)
}

func divisor(n int64) int64 {
	if n == 0 {
		fault.Raisef(fault.DivideByZero, "integer division by zero")
	}
	return n
}
