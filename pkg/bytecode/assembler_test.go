package bytecode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/modl/pkg/sebo"
	"github.com/chazu/modl/pkg/value"
)

func TestAssemblerEncoding(t *testing.T) {
	code, err := NewAssembler().
		LoadInt(0, 5).
		Mov(1, 0).
		EmitRegPair(OpAdd, 0, 1).
		EmitTblSetR(2, 3, 4).
		EmitTblSetC(2, 1, value.Str("k")).
		Ret().
		Build()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x04, 0x00, 0x03, 0x05,
		0x02, 0x10,
		0x10, 0x01,
		0x43, 0x23, 0x04,
		0x44, 0x21, 0x06, 0x03, 0x01, 'k',
		0x01,
	}
	if !bytes.Equal(code, want) {
		t.Errorf("got  % x\nwant % x", code, want)
	}
}

func TestAssemblerLabels(t *testing.T) {
	a := NewAssembler()
	top := a.NewLabel("top")
	end := a.NewLabel("end")

	a.Mark(top)
	a.JumpIf(0, false, end) // forward
	a.Jmp(top)              // backward
	a.Mark(end)
	a.Ret()

	code, err := a.Build()
	if err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(code)
	jcf, err := d.Decode(0)
	if err != nil {
		t.Fatal(err)
	}
	if jcf.Op != OpJcf || jcf.Args[1].Imm != int64(end.Position()) {
		t.Errorf("JCF offset = %d, want %d", jcf.Args[1].Imm, end.Position())
	}
	jmp, err := d.Decode(jcf.Len)
	if err != nil {
		t.Fatal(err)
	}
	if jmp.Op != OpJmp || int64(jmp.IP)+jmp.Args[0].Imm != 0 {
		t.Errorf("JMP lands at %d, want 0", int64(jmp.IP)+jmp.Args[0].Imm)
	}
}

func TestAssemblerLoadFun(t *testing.T) {
	a := NewAssembler()
	body := a.NewLabel("body")
	a.LoadFun(2, body).Ret()
	a.Mark(body).Ret()

	code, err := a.Build()
	if err != nil {
		t.Fatal(err)
	}
	in, err := NewDecoder(code).Decode(0)
	if err != nil {
		t.Fatal(err)
	}
	if in.Op != OpLoadFun || in.Args[0].A != 2 || in.Args[1].Imm != int64(body.Position()) {
		t.Errorf("LOADFUN decoded as %+v", in)
	}
}

func TestAssemblerErrors(t *testing.T) {
	_, err := NewAssembler().EmitReg(OpMov, 1).Build()
	if err == nil {
		t.Error("template mismatch should fail")
	}

	_, err = NewAssembler().Emit(Opcode(0x03)).Build()
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("unknown opcode: got %v", err)
	}

	_, err = NewAssembler().LoadC(0, value.ExternalFunction(1)).Build()
	if !errors.Is(err, sebo.ErrUnencodable) {
		t.Errorf("function constant: got %v", err)
	}

	a := NewAssembler()
	a.Jmp(a.NewLabel("nowhere"))
	if _, err := a.Build(); !errors.Is(err, ErrUnresolvedLabel) {
		t.Errorf("unresolved label: got %v", err)
	}

	a = NewAssembler()
	l := a.NewLabel("twice")
	a.Mark(l).Mark(l)
	if a.Err() == nil {
		t.Error("marking twice should fail")
	}
}
