package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chazu/modl/pkg/sebo"
	"github.com/chazu/modl/pkg/value"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrTruncated     = errors.New("truncated instruction")
	ErrOutOfRange    = errors.New("instruction pointer out of range")
)

// Operand is one decoded operand slot.
type Operand struct {
	Kind  OperandKind
	A, B  uint8 // register indices; A alone for Reg
	Imm   int64
	Const value.Value

	// cached constants are owned by the decoder and outlive the instruction.
	cached bool
}

// Instruction is one decoded instruction.
type Instruction struct {
	Op   Opcode
	IP   int // offset of the opcode byte
	Len  int // total length in bytes
	Args [2]Operand
}

// Implicit reports whether the instruction was synthesized past the end of
// the code.
func (in Instruction) Implicit() bool {
	return in.Op == OpRet && in.Len == 0
}

// Decoder decodes instructions from one bytecode buffer. Non-table constants
// are decoded once and cached by operand offset; table literals are decoded
// afresh on every visit so each execution gets its own table.
type Decoder struct {
	code  []byte
	cache map[int]constant
}

type constant struct {
	v   value.Value
	len int
}

// NewDecoder returns a decoder over code. The buffer is borrowed.
func NewDecoder(code []byte) *Decoder {
	return &Decoder{code: code, cache: make(map[int]constant)}
}

// Code returns the decoded buffer.
func (d *Decoder) Code() []byte { return d.code }

// CachedConstants returns the number of constants held by the cache.
func (d *Decoder) CachedConstants() int { return len(d.cache) }

// Decode decodes the instruction at ip. Decoding exactly at the end of the
// code yields an implicit RET of length 0.
func (d *Decoder) Decode(ip int) (Instruction, error) {
	if ip == len(d.code) {
		return Instruction{Op: OpRet, IP: ip}, nil
	}
	if ip < 0 || ip > len(d.code) {
		return Instruction{}, fmt.Errorf("decode at %d of %d: %w", ip, len(d.code), ErrOutOfRange)
	}

	op := Opcode(d.code[ip])
	info, ok := opcodeInfoTable[op]
	if !ok {
		return Instruction{}, fmt.Errorf("decode at [%04x]: %w 0x%02X", ip, ErrUnknownOpcode, byte(op))
	}

	in := Instruction{Op: op, IP: ip}
	pos := ip + 1
	for i, kind := range info.Operands {
		arg, n, err := d.operand(kind, pos)
		if err != nil {
			d.Release(&in)
			return Instruction{}, fmt.Errorf("decode %s at [%04x]: %w", op, ip, err)
		}
		in.Args[i] = arg
		pos += n
	}
	in.Len = pos - ip
	return in, nil
}

func (d *Decoder) operand(kind OperandKind, pos int) (Operand, int, error) {
	arg := Operand{Kind: kind}
	switch kind {
	case None:
		return arg, 0, nil
	case Reg:
		if pos >= len(d.code) {
			return arg, 0, ErrTruncated
		}
		arg.A = d.code[pos] & 0x0F
		return arg, 1, nil
	case RegPair:
		if pos >= len(d.code) {
			return arg, 0, ErrTruncated
		}
		arg.A = d.code[pos] >> 4
		arg.B = d.code[pos] & 0x0F
		return arg, 1, nil
	case Int64:
		if len(d.code)-pos < 8 {
			return arg, 0, ErrTruncated
		}
		arg.Imm = int64(binary.BigEndian.Uint64(d.code[pos:]))
		return arg, 8, nil
	case Const:
		if pos >= len(d.code) {
			return arg, 0, ErrTruncated
		}
		if c, ok := d.cache[pos]; ok {
			arg.Const = c.v
			arg.cached = true
			return arg, c.len, nil
		}
		v, n, err := sebo.Decode(d.code[pos:])
		if err != nil {
			return arg, 0, err
		}
		arg.Const = v
		if v.Type() != value.Table {
			d.cache[pos] = constant{v: v.Take(), len: n}
			arg.cached = true
		}
		return arg, n, nil
	}
	return arg, 0, fmt.Errorf("operand kind %s", kind)
}

// Release drops the temporary constants of in. Cached constants stay alive.
func (d *Decoder) Release(in *Instruction) {
	for i := range in.Args {
		arg := &in.Args[i]
		if arg.Kind == Const && !arg.cached {
			arg.Const.ReleaseTmp()
		}
	}
}

// Close releases every cached constant.
func (d *Decoder) Close() {
	for pos, c := range d.cache {
		c.v.Release()
		delete(d.cache, pos)
	}
}
