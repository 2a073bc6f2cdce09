package bytecode

import (
	"fmt"
	"strings"
)

// Format renders one decoded instruction, e.g. "LOADC R0, 5" or
// "JMP -12 ; -> 0004".
func Format(in Instruction) string {
	if in.Implicit() {
		return "RET ; implicit"
	}
	var sb strings.Builder
	sb.WriteString(in.Op.String())

	first := true
	for _, arg := range in.Args {
		if arg.Kind == None {
			continue
		}
		if first {
			sb.WriteByte(' ')
			first = false
		} else {
			sb.WriteString(", ")
		}
		switch arg.Kind {
		case Reg:
			fmt.Fprintf(&sb, "R%d", arg.A)
		case RegPair:
			fmt.Fprintf(&sb, "R%d, R%d", arg.A, arg.B)
		case Int64:
			fmt.Fprintf(&sb, "%+d", arg.Imm)
		case Const:
			display := arg.Const.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(display)
		}
	}

	if in.Op.IsJump() || in.Op == OpLoadFun {
		for _, arg := range in.Args {
			if arg.Kind == Int64 {
				fmt.Fprintf(&sb, " ; -> %04X", int64(in.IP)+arg.Imm)
			}
		}
	}
	return sb.String()
}

// Disassemble returns a listing of code, one instruction per line. Decoding
// stops at the first invalid instruction, which is reported inline.
func Disassemble(code []byte) string {
	return DisassembleWithName(code, "")
}

// DisassembleWithName returns a listing of code with a name header.
func DisassembleWithName(code []byte, name string) string {
	var sb strings.Builder
	if name != "" {
		fmt.Fprintf(&sb, "; === %s ===\n", name)
	}
	fmt.Fprintf(&sb, "; %d bytes\n", len(code))

	d := NewDecoder(code)
	defer d.Close()
	for ip := 0; ip < len(code); {
		in, err := d.Decode(ip)
		if err != nil {
			fmt.Fprintf(&sb, "%04X  <%v>\n", ip, err)
			break
		}
		fmt.Fprintf(&sb, "%04X  %s\n", ip, Format(in))
		d.Release(&in)
		ip += in.Len
	}
	return sb.String()
}
