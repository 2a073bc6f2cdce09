package bytecode

import "fmt"

// Opcode is the first byte of an instruction.
type Opcode byte

const (
	// ========================================================================
	// Data movement and calls (0x00-0x0F)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation
	OpRet     Opcode = 0x01 // Return R0 to the caller
	OpMov     Opcode = 0x02 // R[a] = R[b]
	OpLoadC   Opcode = 0x04 // R[r] = const
	OpTblGetR Opcode = 0x05 // R[a] = R[a][R[b]]
	OpTblGetC Opcode = 0x06 // R[r] = R[r][const]
	OpCallR   Opcode = 0x09 // Call the function in R[r]
	OpLoadFun Opcode = 0x0C // R[r] = closure at ip+off over the current environment
	OpRol     Opcode = 0x0D // R[a] = R[a] << R[b]
	OpRor     Opcode = 0x0E // R[a] = R[a] >> R[b]
	OpIDiv    Opcode = 0x0F // R[a] = R[a] / R[b], integer division

	// ========================================================================
	// Arithmetic and bitwise (0x10-0x1F)
	// ========================================================================

	OpAdd  Opcode = 0x10
	OpSub  Opcode = 0x11
	OpMul  Opcode = 0x12
	OpDiv  Opcode = 0x13 // Always produces a Floating
	OpMod  Opcode = 0x14
	OpAnd  Opcode = 0x15
	OpOr   Opcode = 0x16
	OpXor  Opcode = 0x17
	OpNand Opcode = 0x18
	OpNor  Opcode = 0x19
	OpNxor Opcode = 0x1A
	OpJmp  Opcode = 0x1F // ip = ip + off

	// ========================================================================
	// Comparison (0x20-0x2F)
	// ========================================================================

	OpCmpEq  Opcode = 0x20
	OpCmpNeq Opcode = 0x21
	OpCmpLt  Opcode = 0x22
	OpCmpNlt Opcode = 0x23
	OpCmpGt  Opcode = 0x24
	OpCmpNgt Opcode = 0x25
	OpCmpLe  Opcode = 0x26
	OpCmpNle Opcode = 0x27
	OpCmpGe  Opcode = 0x28
	OpCmpNge Opcode = 0x29

	// ========================================================================
	// Conditional jumps (0x30-0x3F)
	// ========================================================================

	OpJcf Opcode = 0x30 // Jump if R[r] is falsy
	OpJct Opcode = 0x31 // Jump if R[r] is truthy

	// ========================================================================
	// Stack, tables and environments (0x40-0x4F)
	// ========================================================================

	OpPop     Opcode = 0x40 // R[r] = pop()
	OpPush    Opcode = 0x41 // push(R[r])
	OpTblPush Opcode = 0x42 // append R[b] to table R[a]
	OpTblSetR Opcode = 0x43 // R[a][R[b]] = R[c]
	OpTblSetC Opcode = 0x44 // R[a][const] = R[b]
	OpEnvGetR Opcode = 0x45 // R[a] = lookup(R[b])
	OpEnvGetC Opcode = 0x46 // R[r] = lookup(const)
	OpEnvSetR Opcode = 0x47 // bind R[b] to R[a] in the current scope
	OpEnvSetC Opcode = 0x48 // bind const to R[r] in the current scope
	OpEnvUpkC Opcode = 0x4A // bind names R[b][i] to values R[a][i]

	// ========================================================================
	// Unary (0x50-0x5F)
	// ========================================================================

	OpNot Opcode = 0x50
	OpInv Opcode = 0x51
	OpLen Opcode = 0x52
	OpNeg Opcode = 0x53
)

// OperandKind is the shape of one operand slot.
type OperandKind uint8

const (
	None    OperandKind = iota
	Reg                 // one byte, register in the low nibble
	RegPair             // one byte, registers in the high and low nibbles
	Int64               // 8-byte big-endian signed immediate
	Const               // Sebo encoded constant
)

var operandKindNames = [...]string{"none", "reg", "regpair", "int64", "const"}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return fmt.Sprintf("operand(%d)", uint8(k))
}

// OpcodeInfo describes an opcode's mnemonic and operand template.
type OpcodeInfo struct {
	Name     string
	Operands [2]OperandKind
}

var (
	noOperands = [2]OperandKind{}
	regOnly    = [2]OperandKind{Reg}
	regPair    = [2]OperandKind{RegPair}
	regConst   = [2]OperandKind{Reg, Const}
	regInt     = [2]OperandKind{Reg, Int64}
)

// opcodeInfoTable holds every opcode the decoder accepts.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:     {"NOP", noOperands},
	OpRet:     {"RET", noOperands},
	OpMov:     {"MOV", regPair},
	OpLoadC:   {"LOADC", regConst},
	OpTblGetR: {"TBLGETR", regPair},
	OpTblGetC: {"TBLGETC", regConst},
	OpCallR:   {"CALLR", regOnly},
	OpLoadFun: {"LOADFUN", regInt},
	OpRol:     {"ROL", regPair},
	OpRor:     {"ROR", regPair},
	OpIDiv:    {"IDIV", regPair},

	OpAdd:  {"ADD", regPair},
	OpSub:  {"SUB", regPair},
	OpMul:  {"MUL", regPair},
	OpDiv:  {"DIV", regPair},
	OpMod:  {"MOD", regPair},
	OpAnd:  {"AND", regPair},
	OpOr:   {"OR", regPair},
	OpXor:  {"XOR", regPair},
	OpNand: {"NAND", regPair},
	OpNor:  {"NOR", regPair},
	OpNxor: {"NXOR", regPair},
	OpJmp:  {"JMP", [2]OperandKind{Int64}},

	OpCmpEq:  {"CMPEQ", regPair},
	OpCmpNeq: {"CMPNEQ", regPair},
	OpCmpLt:  {"CMPLT", regPair},
	OpCmpNlt: {"CMPNLT", regPair},
	OpCmpGt:  {"CMPGT", regPair},
	OpCmpNgt: {"CMPNGT", regPair},
	OpCmpLe:  {"CMPLE", regPair},
	OpCmpNle: {"CMPNLE", regPair},
	OpCmpGe:  {"CMPGE", regPair},
	OpCmpNge: {"CMPNGE", regPair},

	OpJcf: {"JCF", regInt},
	OpJct: {"JCT", regInt},

	OpPop:     {"POP", regOnly},
	OpPush:    {"PUSH", regOnly},
	OpTblPush: {"TBLPUSH", regPair},
	OpTblSetR: {"TBLSETR", [2]OperandKind{RegPair, Reg}},
	OpTblSetC: {"TBLSETC", [2]OperandKind{RegPair, Const}},
	OpEnvGetR: {"ENVGETR", regPair},
	OpEnvGetC: {"ENVGETC", regConst},
	OpEnvSetR: {"ENVSETR", regPair},
	OpEnvSetC: {"ENVSETC", regConst},
	OpEnvUpkC: {"ENVUPKC", regPair},

	OpNot: {"NOT", regOnly},
	OpInv: {"INV", regOnly},
	OpLen: {"LEN", regOnly},
	OpNeg: {"NEG", regOnly},
}

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes report a name of the form "UNKNOWN(0xNN)" and no operands.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Known reports whether the decoder accepts op.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operands returns the operand template of op.
func (op Opcode) Operands() [2]OperandKind {
	return GetOpcodeInfo(op).Operands
}

// IsJump reports whether op transfers control by a relative offset.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJcf || op == OpJct
}

// IsBinary reports whether op belongs to the two-register arithmetic,
// bitwise or comparison family.
func (op Opcode) IsBinary() bool {
	return (op >= OpRol && op <= OpNxor) || (op >= OpCmpEq && op <= OpCmpNge)
}

// IsCompare reports whether op is a comparison.
func (op Opcode) IsCompare() bool {
	return op >= OpCmpEq && op <= OpCmpNge
}

// AllOpcodes returns every opcode the decoder accepts.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of accepted opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
