package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chazu/modl/pkg/sebo"
	"github.com/chazu/modl/pkg/value"
)

// ErrUnresolvedLabel is returned by Build when a label was used but never
// marked.
var ErrUnresolvedLabel = errors.New("unresolved label")

// Assembler builds bytecode. Emit methods check the operand template of the
// opcode; the first error sticks and is reported by Build.
type Assembler struct {
	bytes  []byte
	err    error
	labels []*Label
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{bytes: make([]byte, 0, 64)}
}

// Bytes returns the bytecode built so far.
func (a *Assembler) Bytes() []byte {
	return a.bytes
}

// Len returns the current length, which is the offset of the next
// instruction.
func (a *Assembler) Len() int {
	return len(a.bytes)
}

// Err returns the first error recorded by an Emit method.
func (a *Assembler) Err() error {
	return a.err
}

// Build returns the finished bytecode.
func (a *Assembler) Build() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	for _, l := range a.labels {
		if !l.resolved && len(l.refs) > 0 {
			return nil, fmt.Errorf("assemble: label %q: %w", l.name, ErrUnresolvedLabel)
		}
	}
	return a.bytes, nil
}

func (a *Assembler) check(op Opcode, want [2]OperandKind) bool {
	if a.err != nil {
		return false
	}
	info, ok := opcodeInfoTable[op]
	if !ok {
		a.err = fmt.Errorf("assemble: %w 0x%02X", ErrUnknownOpcode, byte(op))
		return false
	}
	if info.Operands != want {
		a.err = fmt.Errorf("assemble: %s takes %v, got %v", op, info.Operands, want)
		return false
	}
	return true
}

func regByte(r uint8) byte { return r & 0x0F }

func pairByte(hi, lo uint8) byte { return (hi&0x0F)<<4 | lo&0x0F }

// Emit appends an instruction without operands.
func (a *Assembler) Emit(op Opcode) *Assembler {
	if a.check(op, noOperands) {
		a.bytes = append(a.bytes, byte(op))
	}
	return a
}

// EmitReg appends an instruction taking one register.
func (a *Assembler) EmitReg(op Opcode, r uint8) *Assembler {
	if a.check(op, regOnly) {
		a.bytes = append(a.bytes, byte(op), regByte(r))
	}
	return a
}

// EmitRegPair appends an instruction taking a register pair.
func (a *Assembler) EmitRegPair(op Opcode, ra, rb uint8) *Assembler {
	if a.check(op, regPair) {
		a.bytes = append(a.bytes, byte(op), pairByte(ra, rb))
	}
	return a
}

// EmitRegConst appends an instruction taking a register and a constant.
func (a *Assembler) EmitRegConst(op Opcode, r uint8, c value.Value) *Assembler {
	if !a.check(op, regConst) {
		return a
	}
	return a.withConst(append(a.bytes, byte(op), regByte(r)), c)
}

// EmitTblSetR appends TBLSETR: R[t][R[k]] = R[v].
func (a *Assembler) EmitTblSetR(t, k, v uint8) *Assembler {
	if a.check(OpTblSetR, [2]OperandKind{RegPair, Reg}) {
		a.bytes = append(a.bytes, byte(OpTblSetR), pairByte(t, k), regByte(v))
	}
	return a
}

// EmitTblSetC appends TBLSETC: R[t][key] = R[v].
func (a *Assembler) EmitTblSetC(t, v uint8, key value.Value) *Assembler {
	if !a.check(OpTblSetC, [2]OperandKind{RegPair, Const}) {
		return a
	}
	return a.withConst(append(a.bytes, byte(OpTblSetC), pairByte(t, v)), key)
}

func (a *Assembler) withConst(buf []byte, c value.Value) *Assembler {
	out, err := sebo.Append(buf, c)
	if err != nil {
		a.err = fmt.Errorf("assemble constant: %w", err)
		return a
	}
	a.bytes = out
	return a
}

// Convenience emitters for the common cases.

func (a *Assembler) Nop() *Assembler { return a.Emit(OpNop) }
func (a *Assembler) Ret() *Assembler { return a.Emit(OpRet) }
func (a *Assembler) Mov(dst, src uint8) *Assembler {
	return a.EmitRegPair(OpMov, dst, src)
}
func (a *Assembler) LoadC(r uint8, c value.Value) *Assembler {
	return a.EmitRegConst(OpLoadC, r, c)
}
func (a *Assembler) LoadInt(r uint8, i int64) *Assembler {
	return a.LoadC(r, value.Int(i))
}
func (a *Assembler) LoadStr(r uint8, s string) *Assembler {
	return a.LoadC(r, value.Str(s))
}
func (a *Assembler) Push(r uint8) *Assembler { return a.EmitReg(OpPush, r) }
func (a *Assembler) Pop(r uint8) *Assembler { return a.EmitReg(OpPop, r) }
func (a *Assembler) CallR(r uint8) *Assembler { return a.EmitReg(OpCallR, r) }
func (a *Assembler) EnvGetC(r uint8, name string) *Assembler {
	return a.EmitRegConst(OpEnvGetC, r, value.Str(name))
}
func (a *Assembler) EnvSetC(r uint8, name string) *Assembler {
	return a.EmitRegConst(OpEnvSetC, r, value.Str(name))
}

// ---------------------------------------------------------------------------
// Labels for jumps and closures
// ---------------------------------------------------------------------------

// Label is a code position that may be referenced before it is marked.
type Label struct {
	name     string
	resolved bool
	position int
	refs     []labelRef
}

// labelRef records an immediate to patch: the instruction start that the
// offset is relative to and where the 8 immediate bytes live.
type labelRef struct {
	start int
	imm   int
}

// NewLabel creates an unresolved label.
func (a *Assembler) NewLabel(name string) *Label {
	l := &Label{name: name}
	a.labels = append(a.labels, l)
	return l
}

// Position returns the marked offset of l, or -1.
func (l *Label) Position() int {
	if !l.resolved {
		return -1
	}
	return l.position
}

// Mark resolves a label to the current position and patches earlier
// references.
func (a *Assembler) Mark(l *Label) *Assembler {
	if l.resolved {
		if a.err == nil {
			a.err = fmt.Errorf("assemble: label %q marked twice", l.name)
		}
		return a
	}
	l.resolved = true
	l.position = len(a.bytes)
	for _, ref := range l.refs {
		binary.BigEndian.PutUint64(a.bytes[ref.imm:], uint64(int64(l.position-ref.start)))
	}
	l.refs = nil
	return a
}

func (a *Assembler) emitOffset(start int, l *Label) {
	imm := len(a.bytes)
	a.bytes = append(a.bytes, make([]byte, 8)...)
	if l.resolved {
		binary.BigEndian.PutUint64(a.bytes[imm:], uint64(int64(l.position-start)))
		return
	}
	l.refs = append(l.refs, labelRef{start: start, imm: imm})
}

// Jmp emits an unconditional jump to l.
func (a *Assembler) Jmp(l *Label) *Assembler {
	if a.check(OpJmp, [2]OperandKind{Int64}) {
		start := len(a.bytes)
		a.bytes = append(a.bytes, byte(OpJmp))
		a.emitOffset(start, l)
	}
	return a
}

// JumpIf emits JCT (when is true) or JCF testing R[r].
func (a *Assembler) JumpIf(r uint8, when bool, l *Label) *Assembler {
	op := OpJcf
	if when {
		op = OpJct
	}
	if a.check(op, regInt) {
		start := len(a.bytes)
		a.bytes = append(a.bytes, byte(op), regByte(r))
		a.emitOffset(start, l)
	}
	return a
}

// LoadFun emits LOADFUN loading a closure over the code at l into R[r].
func (a *Assembler) LoadFun(r uint8, l *Label) *Assembler {
	if a.check(OpLoadFun, regInt) {
		start := len(a.bytes)
		a.bytes = append(a.bytes, byte(OpLoadFun), regByte(r))
		a.emitOffset(start, l)
	}
	return a
}

// Raw appends bytes without checking them.
func (a *Assembler) Raw(b ...byte) *Assembler {
	a.bytes = append(a.bytes, b...)
	return a
}
