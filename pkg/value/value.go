// Package value implements the Modl value model: tagged values, reference
// counted cells, the chained hash table behind every table, and lexical
// environments.
//
// Nil, Boolean, Integer and Floating are plain values. String, Table and
// Function wrap a *Ref whose count tracks the number of owning copies. A
// freshly created reference value has a count of zero and is a temporary:
// it must be claimed with Take or dropped with ReleaseTmp.
package value

import (
	"fmt"
	"math"

	"github.com/chazu/modl/pkg/fault"
)

// Type is the tag of a Value.
type Type uint8

const (
	Nil Type = iota
	Boolean
	Integer
	Floating
	String
	Table
	Function
)

var typeNames = [...]string{"nil", "boolean", "integer", "floating", "string", "table", "function"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Value is a tagged Modl value. The zero Value is nil.
type Value struct {
	typ  Type
	bits uint64
	ref  *Ref
}

// Ref is a reference counted heap cell.
type Ref struct {
	count int
	freed bool

	str   []byte
	table *Map
	fn    Closure
}

// Closure is the payload of a Function value.
type Closure struct {
	External bool
	Position uint64
	Context  *Environment
}

// NilValue returns nil.
func NilValue() Value { return Value{} }

// Bool returns a Boolean.
func Bool(b bool) Value {
	v := Value{typ: Boolean}
	if b {
		v.bits = 1
	}
	return v
}

// Int returns an Integer.
func Int(i int64) Value { return Value{typ: Integer, bits: uint64(i)} }

// Float returns a Floating.
func Float(f float64) Value { return Value{typ: Floating, bits: math.Float64bits(f)} }

// Str returns a temporary String holding a copy of s.
func Str(s string) Value {
	return Value{typ: String, ref: &Ref{str: []byte(s)}}
}

// StrBytes returns a temporary String that owns b.
func StrBytes(b []byte) Value {
	return Value{typ: String, ref: &Ref{str: b}}
}

// NewTable returns a temporary empty Table.
func NewTable() Value {
	return Value{typ: Table, ref: &Ref{table: NewMap(TableCapacity)}}
}

// InternalFunction returns a temporary closure over ctx. The closure holds a
// reference to ctx until it is freed.
func InternalFunction(position uint64, ctx *Environment) Value {
	ctx.Retain()
	return Value{typ: Function, ref: &Ref{fn: Closure{Position: position, Context: ctx}}}
}

// ExternalFunction returns a temporary Function naming host routine index.
func ExternalFunction(index uint64) Value {
	return Value{typ: Function, ref: &Ref{fn: Closure{External: true, Position: index}}}
}

// Type returns the tag of v.
func (v Value) Type() Type { return v.typ }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.typ == Nil }

// IsValueType reports whether v is copied by value.
func (v Value) IsValueType() bool { return v.typ <= Floating }

// IsNumeric reports whether v is an Integer or a Floating.
func (v Value) IsNumeric() bool { return v.typ == Integer || v.typ == Floating }

// AsBool returns the payload of a Boolean.
func (v Value) AsBool() bool { return v.bits != 0 }

// AsInt returns the payload of an Integer.
func (v Value) AsInt() int64 { return int64(v.bits) }

// AsFloat returns the payload of a Floating.
func (v Value) AsFloat() float64 { return math.Float64frombits(v.bits) }

// AsString returns the contents of a String.
func (v Value) AsString() string {
	if v.typ != String {
		return ""
	}
	return string(v.ref.str)
}

// Bytes returns the backing bytes of a String. Callers must not modify them.
func (v Value) Bytes() []byte {
	if v.typ != String {
		return nil
	}
	return v.ref.str
}

// Closure returns the payload of a Function.
func (v Value) Closure() Closure {
	if v.typ != Function {
		return Closure{}
	}
	return v.ref.fn
}

// Map returns the hash table of a Table, or nil.
func (v Value) Map() *Map {
	if v.typ != Table {
		return nil
	}
	return v.ref.table
}

// Same reports whether a and b share a cell, or are identical plain values.
func Same(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	if a.IsValueType() {
		return a.bits == b.bits
	}
	return a.ref == b.ref
}

// Take claims one ownership of v.
func (v Value) Take() Value {
	if v.IsValueType() {
		return v
	}
	v.ref.count++
	return v
}

// Disown drops one ownership without freeing.
func (v Value) Disown() Value {
	if v.IsValueType() {
		return v
	}
	v.ref.count--
	if v.ref.count < 0 {
		fault.Raisef(fault.RefCount, "negative reference count on %s", v.typ)
	}
	return v
}

// Release drops one ownership and frees the cell when none remain.
// It reports whether the cell was freed.
func (v Value) Release() bool {
	if v.IsValueType() {
		return true
	}
	v.Disown()
	if v.ref.count == 0 {
		v.free()
		return true
	}
	return false
}

// ReleaseTmp frees v if nobody has claimed it.
func (v Value) ReleaseTmp() bool {
	if v.IsValueType() {
		return true
	}
	v.ref.count++
	return v.Release()
}

func (v Value) free() {
	r := v.ref
	if r.freed {
		return
	}
	r.freed = true
	switch v.typ {
	case String:
		r.str = nil
	case Table:
		r.table.Dispose()
	case Function:
		if r.fn.Context != nil {
			r.fn.Context.Release()
			r.fn.Context = nil
		}
	}
}

// IsTmp reports whether nobody owns v.
func (v Value) IsTmp() bool {
	return v.IsValueType() || v.ref.count == 0
}

// IsSingle reports whether v has exactly one owner.
func (v Value) IsSingle() bool {
	return v.IsValueType() || v.ref.count == 1
}

// IsFreed reports whether the cell behind v has been freed.
func (v Value) IsFreed() bool {
	return !v.IsValueType() && v.ref.freed
}

// RefCount returns the number of owners of v. Plain values report 1.
func (v Value) RefCount() int {
	if v.IsValueType() {
		return 1
	}
	return v.ref.count
}

// Equals compares a and b. Values of different types are never equal and
// tables are never equal, not even to themselves.
func Equals(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Nil:
		return true
	case Boolean, Integer:
		return a.bits == b.bits
	case Floating:
		return a.AsFloat() == b.AsFloat()
	case String:
		return string(a.ref.str) == string(b.ref.str)
	case Function:
		return a.ref.fn == b.ref.fn
	}
	return false
}

// Compare orders a and b of the same type. Mismatched or unordered types
// compare as -1.
func Compare(a, b Value) int {
	if a.typ != b.typ {
		return -1
	}
	switch a.typ {
	case Nil:
		return 0
	case Boolean:
		return int(a.bits) - int(b.bits)
	case Integer:
		x, y := a.AsInt(), b.AsInt()
		switch {
		case x > y:
			return 1
		case x == y:
			return 0
		}
		return -1
	case Floating:
		x, y := a.AsFloat(), b.AsFloat()
		switch {
		case x > y:
			return 1
		case x == y:
			return 0
		}
		return -1
	case String:
		x, y := a.AsString(), b.AsString()
		switch {
		case x > y:
			return 1
		case x == y:
			return 0
		}
		return -1
	case Function:
		if Equals(a, b) {
			return 0
		}
	}
	return -1
}

// Cast converts v to target. Only Integer to Floating is supported besides
// the identity.
func Cast(v Value, target Type) Value {
	if v.typ == target {
		return v
	}
	if v.typ == Integer && target == Floating {
		return Float(float64(v.AsInt()))
	}
	fault.Raisef(fault.Cast, "cannot cast %s to %s", v.typ, target)
	return Value{}
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v Value) bool {
	switch v.typ {
	case Nil:
		return false
	case Boolean, Integer:
		return v.bits != 0
	case Floating:
		return v.AsFloat() != 0
	}
	return true
}

// String renders v for diagnostics.
func (v Value) String() string {
	switch v.typ {
	case Nil:
		return "nil"
	case Boolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case Integer:
		return fmt.Sprintf("%d", v.AsInt())
	case Floating:
		return fmt.Sprintf("%.17g", v.AsFloat())
	case String:
		return fmt.Sprintf("%q", v.AsString())
	case Table:
		return "[ ... ]"
	case Function:
		if v.ref.fn.External {
			return fmt.Sprintf("&ext:%d", v.ref.fn.Position)
		}
		return fmt.Sprintf("&%04x", v.ref.fn.Position)
	}
	return v.typ.String()
}
