package value

import "github.com/chazu/modl/pkg/fault"

// PrototypeKey names the entry consulted when a table lookup misses.
const PrototypeKey = "__index"

// MaxPrototypeDepth bounds the "__index" chain walked by Get.
const MaxPrototypeDepth = 256

func mustTable(t Value, op string) *Map {
	if t.typ != Table {
		fault.Raisef(fault.Type, "%s on %s, want table", op, t.typ)
	}
	return t.ref.table
}

// HasKey reports whether table t has an entry for key. Prototypes are not
// consulted.
func HasKey(t, key Value) bool {
	_, ok := mustTable(t, "has-key").Get(key)
	return ok
}

// Insert stores val under key in table t. Keys must be Integer or String.
func Insert(t, key, val Value) {
	m := mustTable(t, "insert")
	if key.typ != Integer && key.typ != String {
		fault.Raisef(fault.Key, "table key must be integer or string, got %s", key.typ)
	}
	m.Set(key, val)
}

// Push stores val under the first unused non-negative integer key of t.
func Push(t, val Value) {
	m := mustTable(t, "push")
	var i int64
	for {
		if _, ok := m.Get(Int(i)); !ok {
			break
		}
		i++
	}
	m.Set(Int(i), val)
}

// Get looks key up in t, falling back along the "__index" prototype chain.
// A miss everywhere yields nil. The result is borrowed.
func Get(t, key Value) Value {
	m := mustTable(t, "get")
	proto := Str(PrototypeKey)
	defer proto.ReleaseTmp()
	for depth := 0; ; depth++ {
		if v, ok := m.Get(key); ok {
			return v
		}
		if depth == MaxPrototypeDepth {
			fault.Raisef(fault.Unsupported, "prototype chain deeper than %d", MaxPrototypeDepth)
		}
		p, ok := m.Get(proto)
		if !ok || p.typ != Table {
			return Value{}
		}
		m = p.ref.table
	}
}

// SequenceLen counts the consecutive integer keys of t starting at 0.
func SequenceLen(t Value) int64 {
	m := mustTable(t, "length")
	var n int64
	for {
		if _, ok := m.Get(Int(n)); !ok {
			return n
		}
		n++
	}
}

// Index returns element i of t without prototype lookup.
func Index(t Value, i int64) (Value, bool) {
	return mustTable(t, "index").Get(Int(i))
}
