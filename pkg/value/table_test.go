package value

import (
	"testing"

	"github.com/chazu/modl/pkg/fault"
)

func TestTableInsertAndGet(t *testing.T) {
	tbl := NewTable().Take()
	defer tbl.Release()

	Insert(tbl, Str("name"), Str("modl"))
	Insert(tbl, Int(3), Float(1.5))

	if got := Get(tbl, Str("name")); got.AsString() != "modl" {
		t.Errorf("Get(name) = %v", got)
	}
	if got := Get(tbl, Int(3)); got.AsFloat() != 1.5 {
		t.Errorf("Get(3) = %v", got)
	}
	if !HasKey(tbl, Int(3)) || HasKey(tbl, Int(4)) {
		t.Error("HasKey mismatch")
	}
}

func TestTableInsertRejectsKeys(t *testing.T) {
	tbl := NewTable()
	for _, key := range []Value{NilValue(), Bool(true), Float(1), NewTable()} {
		err := catch(func() { Insert(tbl, key, Int(1)) })
		if !fault.Is(err, fault.Key) {
			t.Errorf("Insert with %s key: got %v, want key fault", key.Type(), err)
		}
	}
}

func TestTableOpsRequireTable(t *testing.T) {
	err := catch(func() { Get(Int(1), Int(0)) })
	if !fault.Is(err, fault.Type) {
		t.Errorf("got %v, want type fault", err)
	}
}

func TestTablePush(t *testing.T) {
	tbl := NewTable()
	Insert(tbl, Int(1), Str("b"))
	Push(tbl, Str("a"))
	Push(tbl, Str("c"))

	want := []string{"a", "b", "c"}
	for i, w := range want {
		v, ok := Index(tbl, int64(i))
		if !ok || v.AsString() != w {
			t.Errorf("index %d = %v, want %q", i, v, w)
		}
	}
	if n := SequenceLen(tbl); n != 3 {
		t.Errorf("SequenceLen = %d, want 3", n)
	}
}

func TestTablePrototypeFallback(t *testing.T) {
	proto := NewTable()
	Insert(proto, Str("greet"), Str("hello"))

	tbl := NewTable()
	Insert(tbl, Str(PrototypeKey), proto)
	Insert(tbl, Str("own"), Int(1))

	if got := Get(tbl, Str("greet")); got.AsString() != "hello" {
		t.Errorf("prototype lookup = %v", got)
	}
	if got := Get(tbl, Str("own")); got.AsInt() != 1 {
		t.Errorf("own lookup = %v", got)
	}
	if got := Get(tbl, Str("missing")); !got.IsNil() {
		t.Errorf("missing lookup = %v, want nil", got)
	}
	if HasKey(tbl, Str("greet")) {
		t.Error("HasKey must not consult the prototype")
	}
}

func TestTablePrototypeNotTable(t *testing.T) {
	tbl := NewTable()
	Insert(tbl, Str(PrototypeKey), Int(4))
	if got := Get(tbl, Str("x")); !got.IsNil() {
		t.Errorf("Get = %v, want nil", got)
	}
}

func TestTablePrototypeCycle(t *testing.T) {
	tbl := NewTable().Take()
	Insert(tbl, Str(PrototypeKey), tbl)
	err := catch(func() { Get(tbl, Str("x")) })
	if !fault.Is(err, fault.Unsupported) {
		t.Errorf("got %v, want unsupported fault", err)
	}
}

func TestSequenceLenStopsAtGap(t *testing.T) {
	tbl := NewTable()
	Insert(tbl, Int(0), Int(0))
	Insert(tbl, Int(2), Int(2))
	Insert(tbl, Str("0"), Int(0))
	if n := SequenceLen(tbl); n != 1 {
		t.Errorf("SequenceLen = %d, want 1", n)
	}
}
