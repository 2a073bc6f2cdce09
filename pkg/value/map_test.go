package value

import (
	"fmt"
	"testing"
)

func TestMapGetSet(t *testing.T) {
	m := NewMap(TableCapacity)
	m.Set(Int(1), Str("one"))
	m.Set(Str("two"), Int(2))

	if v, ok := m.Get(Int(1)); !ok || v.AsString() != "one" {
		t.Errorf("Get(1) = %v, %v", v, ok)
	}
	if v, ok := m.Get(Str("two")); !ok || v.AsInt() != 2 {
		t.Errorf("Get(two) = %v, %v", v, ok)
	}
	if _, ok := m.Get(Int(3)); ok {
		t.Error("Get(3) should miss")
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

func TestMapReplaceReleasesOld(t *testing.T) {
	m := NewMap(TableCapacity)
	old := Str("old")
	m.Set(Int(0), old)
	m.Set(Int(0), Int(9))

	if !old.IsFreed() {
		t.Error("replaced value should be released")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if v, _ := m.Get(Int(0)); v.AsInt() != 9 {
		t.Errorf("Get(0) = %v, want 9", v)
	}
}

func TestMapReplaceWithSameValue(t *testing.T) {
	m := NewMap(TableCapacity)
	s := Str("same")
	m.Set(Int(0), s)
	m.Set(Int(0), s)
	if s.IsFreed() || s.RefCount() != 1 {
		t.Errorf("count = %d, freed = %v", s.RefCount(), s.IsFreed())
	}
}

func TestMapGrowthKeepsEntries(t *testing.T) {
	m := NewMap(TableCapacity)
	const n = 1024

	for i := 0; i < n; i++ {
		if _, ok := m.Get(Int(int64(i))); ok {
			t.Fatalf("key %d present before insert", i)
		}
		m.Set(Int(int64(i)), Int(int64(i*10)))
	}
	for i := 0; i < n; i++ {
		m.Set(Str(fmt.Sprintf("k%d", i)), Int(int64(i)))
	}

	if m.Capacity() <= TableCapacity {
		t.Fatalf("capacity = %d, expected growth", m.Capacity())
	}
	if m.Len() != 2*n {
		t.Fatalf("Len = %d, want %d", m.Len(), 2*n)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get(Int(int64(i)))
		if !ok || v.AsInt() != int64(i*10) {
			t.Fatalf("Get(%d) = %v, %v", i, v, ok)
		}
		v, ok = m.Get(Str(fmt.Sprintf("k%d", i)))
		if !ok || v.AsInt() != int64(i) {
			t.Fatalf("Get(k%d) = %v, %v", i, v, ok)
		}
	}
	for i := n; i < n+64; i++ {
		if _, ok := m.Get(Int(int64(i))); ok {
			t.Fatalf("absent key %d found after growth", i)
		}
	}
}

func TestMapLoadFactor(t *testing.T) {
	m := NewMap(TableCapacity)
	for i := 0; i < 200; i++ {
		m.Set(Int(int64(i)), Bool(true))
		if m.Len() > m.Capacity() {
			t.Fatalf("size %d exceeds capacity %d", m.Len(), m.Capacity())
		}
	}
	if c := m.Capacity(); c&(c-1) != 0 {
		t.Errorf("capacity %d should stay a power of two from 8", c)
	}
}

func TestMapEach(t *testing.T) {
	m := NewMap(TableCapacity)
	for i := 0; i < 20; i++ {
		m.Set(Int(int64(i)), Int(int64(i)))
	}
	seen := map[int64]bool{}
	m.Each(func(k, v Value) bool {
		seen[k.AsInt()] = true
		return true
	})
	if len(seen) != 20 {
		t.Errorf("Each visited %d entries, want 20", len(seen))
	}

	count := 0
	m.Each(func(k, v Value) bool {
		count++
		return count < 3
	})
	if count != 3 {
		t.Errorf("Each stopped after %d, want 3", count)
	}
}

func TestMapDispose(t *testing.T) {
	m := NewMap(TableCapacity)
	key := Str("key")
	val := Str("val")
	m.Set(key, val)
	m.Dispose()
	if !key.IsFreed() || !val.IsFreed() {
		t.Error("Dispose should release keys and values")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after Dispose", m.Len())
	}
}
