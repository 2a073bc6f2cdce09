package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 49 {
		t.Errorf("OpcodeCount = %d, want 49", got)
	}
}

func TestOpcodeValues(t *testing.T) {
	tests := []struct {
		op   Opcode
		want byte
		name string
	}{
		{OpNop, 0x00, "NOP"},
		{OpRet, 0x01, "RET"},
		{OpMov, 0x02, "MOV"},
		{OpLoadC, 0x04, "LOADC"},
		{OpCallR, 0x09, "CALLR"},
		{OpLoadFun, 0x0C, "LOADFUN"},
		{OpAdd, 0x10, "ADD"},
		{OpNxor, 0x1A, "NXOR"},
		{OpJmp, 0x1F, "JMP"},
		{OpCmpEq, 0x20, "CMPEQ"},
		{OpCmpNge, 0x29, "CMPNGE"},
		{OpJcf, 0x30, "JCF"},
		{OpJct, 0x31, "JCT"},
		{OpPop, 0x40, "POP"},
		{OpPush, 0x41, "PUSH"},
		{OpEnvUpkC, 0x4A, "ENVUPKC"},
		{OpNeg, 0x53, "NEG"},
	}
	for _, tt := range tests {
		if byte(tt.op) != tt.want {
			t.Errorf("%s = 0x%02X, want 0x%02X", tt.name, byte(tt.op), tt.want)
		}
		if tt.op.String() != tt.name {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", tt.want, tt.op.String(), tt.name)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	for _, b := range []byte{0x03, 0x0A, 0x0B, 0x49, 0x4B, 0x4C, 0x4D, 0xEE} {
		op := Opcode(b)
		if op.Known() {
			t.Errorf("0x%02X should not be accepted", b)
		}
		if !strings.HasPrefix(op.String(), "UNKNOWN") {
			t.Errorf("0x%02X String() = %q", b, op.String())
		}
	}
}

func TestOperandTemplates(t *testing.T) {
	tests := []struct {
		op   Opcode
		want [2]OperandKind
	}{
		{OpRet, [2]OperandKind{None, None}},
		{OpMov, [2]OperandKind{RegPair, None}},
		{OpLoadC, [2]OperandKind{Reg, Const}},
		{OpTblGetC, [2]OperandKind{Reg, Const}},
		{OpCallR, [2]OperandKind{Reg, None}},
		{OpLoadFun, [2]OperandKind{Reg, Int64}},
		{OpJmp, [2]OperandKind{Int64, None}},
		{OpJct, [2]OperandKind{Reg, Int64}},
		{OpTblSetR, [2]OperandKind{RegPair, Reg}},
		{OpTblSetC, [2]OperandKind{RegPair, Const}},
		{OpEnvSetC, [2]OperandKind{Reg, Const}},
		{OpEnvUpkC, [2]OperandKind{RegPair, None}},
		{OpLen, [2]OperandKind{Reg, None}},
	}
	for _, tt := range tests {
		if got := tt.op.Operands(); got != tt.want {
			t.Errorf("%s operands = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestOpcodeFamilies(t *testing.T) {
	for _, op := range []Opcode{OpRol, OpIDiv, OpAdd, OpNxor, OpCmpEq, OpCmpNge} {
		if !op.IsBinary() {
			t.Errorf("%s should be binary", op)
		}
	}
	for _, op := range []Opcode{OpMov, OpJmp, OpNot, OpJcf} {
		if op.IsBinary() {
			t.Errorf("%s should not be binary", op)
		}
	}
	if !OpCmpLe.IsCompare() || OpAdd.IsCompare() {
		t.Error("IsCompare mismatch")
	}
	if !OpJmp.IsJump() || !OpJcf.IsJump() || OpCallR.IsJump() {
		t.Error("IsJump mismatch")
	}
}
