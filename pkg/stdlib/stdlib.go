// Package stdlib binds the Modl host library into a VM.
//
// Routines take their arguments from the value stack, first argument on
// top, and return a single value:
//
//	print(x)                 writes the display form of x and a newline
//	concat(a, b)             string concatenation, used by ADD on strings
//	toString(x)              display form of a scalar, nil for references
//	String.substring(s, from, length)
//	String.toArray(s)        byte values of s as a sequence
//	String.fromArray(arr)    inverse of toArray
//	Table.keys(t)            keys of t in iteration order
//	Table.size(t)            number of entries
//	Table.empty(t)
//	Table.zip(keys, values)  table mapping keys[i] to values[i]
//	Array.forEach(arr, fn)
//	Array.map(arr, fn)
//	Array.contains(arr, x)
//	Array.concat(a, b)
//	Array.sort(arr)          sorted copy; elements share one ordered type
//
// "Array" routines operate on the sequence part of a table: keys 0, 1, ...
// up to the first missing index.
package stdlib

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
	"github.com/chazu/modl/pkg/vm"
)

// Options configures Install.
type Options struct {
	// Out receives print output. Defaults to os.Stdout.
	Out io.Writer
}

type routine struct {
	name string
	fn   vm.External
}

// Install registers every routine in m. Registration stops at the first
// failure, typically the external limit of the VM.
func Install(m *vm.VM, opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	routines := []routine{
		{"print", printer(out)},
		{"concat", concat},
		{"toString", toString},
		{"String.substring", substring},
		{"String.toArray", toArray},
		{"String.fromArray", fromArray},
		{"Table.keys", tableKeys},
		{"Table.size", tableSize},
		{"Table.empty", tableEmpty},
		{"Table.zip", tableZip},
		{"Array.forEach", arrayForEach},
		{"Array.map", arrayMap},
		{"Array.contains", arrayContains},
		{"Array.concat", arrayConcat},
		{"Array.sort", arraySort},
	}
	for _, r := range routines {
		if err := m.RegisterExternal(r.name, r.fn); err != nil {
			return fmt.Errorf("stdlib: %s: %w", r.name, err)
		}
	}
	return nil
}

// arg pops the next argument and claims it for the duration of the routine.
// Callers release it when done.
func arg(m *vm.VM) value.Value {
	return m.Pop().Take()
}

func expect(v value.Value, t value.Type, routine string, pos int) {
	if v.Type() != t {
		fault.Raisef(fault.Type, "%s: argument %d must be %s, got %s", routine, pos, t, v.Type())
	}
}

// Display renders v the way print shows it. Strings appear without quotes;
// tables list their entries in iteration order.
func Display(v value.Value) string {
	var sb strings.Builder
	display(&sb, v, map[*value.Map]bool{})
	return sb.String()
}

func display(sb *strings.Builder, v value.Value, seen map[*value.Map]bool) {
	switch v.Type() {
	case value.String:
		sb.WriteString(v.AsString())
	case value.Floating:
		sb.WriteString(strconv.FormatFloat(v.AsFloat(), 'g', -1, 64))
	case value.Table:
		m := v.Map()
		if seen[m] {
			sb.WriteString("{...}")
			return
		}
		seen[m] = true
		defer delete(seen, m)

		sb.WriteByte('{')
		first := true
		m.Each(func(key, val value.Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			display(sb, key, seen)
			sb.WriteString(": ")
			if val.Type() == value.String {
				sb.WriteString(strconv.Quote(val.AsString()))
			} else {
				display(sb, val, seen)
			}
			return true
		})
		sb.WriteByte('}')
	default:
		sb.WriteString(v.String())
	}
}

func printer(out io.Writer) vm.External {
	return func(m *vm.VM) value.Value {
		v := arg(m)
		defer v.Release()
		fmt.Fprintln(out, Display(v))
		return value.NilValue()
	}
}

func concat(m *vm.VM) value.Value {
	a, b := arg(m), arg(m)
	defer a.Release()
	defer b.Release()
	expect(a, value.String, "concat", 1)
	expect(b, value.String, "concat", 2)

	buf := make([]byte, 0, len(a.Bytes())+len(b.Bytes()))
	buf = append(buf, a.Bytes()...)
	buf = append(buf, b.Bytes()...)
	return value.StrBytes(buf)
}

func toString(m *vm.VM) value.Value {
	v := m.Pop()
	switch v.Type() {
	case value.String:
		return v
	case value.Nil, value.Boolean, value.Integer:
		return value.Str(v.String())
	case value.Floating:
		return value.Str(strconv.FormatFloat(v.AsFloat(), 'g', 17, 64))
	}
	v.ReleaseTmp()
	return value.NilValue()
}
