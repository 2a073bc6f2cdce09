package stdlib

import (
	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
	"github.com/chazu/modl/pkg/vm"
)

func substring(m *vm.VM) value.Value {
	s, from, length := arg(m), arg(m), arg(m)
	defer s.Release()
	defer from.Release()
	defer length.Release()
	expect(s, value.String, "String.substring", 1)
	expect(from, value.Integer, "String.substring", 2)
	expect(length, value.Integer, "String.substring", 3)

	b := s.Bytes()
	lo, n := from.AsInt(), length.AsInt()
	if lo < 0 || n < 0 || lo > int64(len(b)) || n > int64(len(b))-lo {
		fault.Raisef(fault.Unsupported, "String.substring: range [%d, %d+%d) outside string of length %d", lo, lo, n, len(b))
	}
	return value.StrBytes(append([]byte(nil), b[lo:lo+n]...))
}

func toArray(m *vm.VM) value.Value {
	s := arg(m)
	defer s.Release()
	expect(s, value.String, "String.toArray", 1)

	arr := value.NewTable()
	for _, c := range s.Bytes() {
		value.Push(arr, value.Int(int64(c)))
	}
	return arr
}

func fromArray(m *vm.VM) value.Value {
	arr := arg(m)
	defer arr.Release()
	expect(arr, value.Table, "String.fromArray", 1)

	var buf []byte
	for i := int64(0); ; i++ {
		c, ok := value.Index(arr, i)
		if !ok {
			break
		}
		if c.Type() != value.Integer {
			fault.Raisef(fault.Type, "String.fromArray: element %d must be integer, got %s", i, c.Type())
		}
		buf = append(buf, byte(c.AsInt()))
	}
	return value.StrBytes(buf)
}
