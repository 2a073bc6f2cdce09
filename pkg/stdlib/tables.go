package stdlib

import (
	"sort"

	"github.com/chazu/modl/pkg/fault"
	"github.com/chazu/modl/pkg/value"
	"github.com/chazu/modl/pkg/vm"
)

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

func tableKeys(m *vm.VM) value.Value {
	t := arg(m)
	defer t.Release()
	expect(t, value.Table, "Table.keys", 1)

	keys := value.NewTable()
	t.Map().Each(func(k, _ value.Value) bool {
		value.Push(keys, k)
		return true
	})
	return keys
}

func tableSize(m *vm.VM) value.Value {
	t := arg(m)
	defer t.Release()
	expect(t, value.Table, "Table.size", 1)
	return value.Int(int64(t.Map().Len()))
}

func tableEmpty(m *vm.VM) value.Value {
	t := arg(m)
	defer t.Release()
	expect(t, value.Table, "Table.empty", 1)
	return value.Bool(t.Map().Len() == 0)
}

func tableZip(m *vm.VM) value.Value {
	keys, vals := arg(m), arg(m)
	defer keys.Release()
	defer vals.Release()
	expect(keys, value.Table, "Table.zip", 1)
	expect(vals, value.Table, "Table.zip", 2)

	out := value.NewTable()
	each(keys, func(i int64, k value.Value) bool {
		v, ok := value.Index(vals, i)
		if !ok {
			return false
		}
		value.Insert(out, k, v)
		return true
	})
	return out
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// each visits arr[0], arr[1], ... until an index is missing or fn returns
// false.
func each(arr value.Value, fn func(i int64, v value.Value) bool) {
	for i := int64(0); ; i++ {
		v, ok := value.Index(arr, i)
		if !ok || !fn(i, v) {
			return
		}
	}
}

func arrayForEach(m *vm.VM) value.Value {
	arr, fn := arg(m), arg(m)
	defer arr.Release()
	defer fn.Release()
	expect(arr, value.Table, "Array.forEach", 1)
	expect(fn, value.Function, "Array.forEach", 2)

	each(arr, func(_ int64, v value.Value) bool {
		m.Invoke(fn, v)
		return true
	})
	return value.NilValue()
}

func arrayMap(m *vm.VM) value.Value {
	arr, fn := arg(m), arg(m)
	defer arr.Release()
	defer fn.Release()
	expect(arr, value.Table, "Array.map", 1)
	expect(fn, value.Function, "Array.map", 2)

	out := value.NewTable().Take()
	each(arr, func(_ int64, v value.Value) bool {
		value.Push(out, m.Invoke(fn, v))
		return true
	})
	return out.Disown()
}

func arrayContains(m *vm.VM) value.Value {
	arr, x := arg(m), arg(m)
	defer arr.Release()
	defer x.Release()
	expect(arr, value.Table, "Array.contains", 1)

	found := false
	each(arr, func(_ int64, v value.Value) bool {
		found = value.Equals(v, x)
		return !found
	})
	return value.Bool(found)
}

func arrayConcat(m *vm.VM) value.Value {
	a, b := arg(m), arg(m)
	defer a.Release()
	defer b.Release()
	expect(a, value.Table, "Array.concat", 1)
	expect(b, value.Table, "Array.concat", 2)

	out := value.NewTable()
	push := func(_ int64, v value.Value) bool {
		value.Push(out, v)
		return true
	}
	each(a, push)
	each(b, push)
	return out
}

// arraySort returns a sorted copy of arr. Elements must share one ordered
// type: Nil, Boolean, Integer, Floating or String.
func arraySort(m *vm.VM) value.Value {
	arr := arg(m)
	defer arr.Release()
	expect(arr, value.Table, "Array.sort", 1)

	var elems []value.Value
	each(arr, func(i int64, v value.Value) bool {
		switch v.Type() {
		case value.Table, value.Function:
			fault.Raisef(fault.Type, "Array.sort: element %d is %s, which has no order", i, v.Type())
		}
		if len(elems) > 0 && v.Type() != elems[0].Type() {
			fault.Raisef(fault.Type, "Array.sort: element %d is %s, want %s", i, v.Type(), elems[0].Type())
		}
		elems = append(elems, v)
		return true
	})
	sort.SliceStable(elems, func(i, j int) bool {
		return value.Compare(elems[i], elems[j]) < 0
	})

	out := value.NewTable()
	for _, v := range elems {
		value.Push(out, v)
	}
	return out
}
