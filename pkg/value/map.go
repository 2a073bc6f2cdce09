package value

// TableCapacity is the initial bucket count of a new table.
const TableCapacity = 8

// bucket is one link of a slot chain. Every chain ends in a sentinel bucket
// whose next is nil and which holds no entry.
type bucket struct {
	key  Value
	val  Value
	next *bucket
}

func (b *bucket) sentinel() bool { return b.next == nil }

// Map is a chained hash table keyed by Value. It owns its keys and values.
type Map struct {
	slots []*bucket
	size  int
}

// NewMap returns an empty map with the given number of slots.
func NewMap(capacity int) *Map {
	if capacity < 1 {
		capacity = 1
	}
	m := &Map{slots: make([]*bucket, capacity)}
	for i := range m.slots {
		m.slots[i] = &bucket{}
	}
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int { return m.size }

// Capacity returns the number of slots.
func (m *Map) Capacity() int { return len(m.slots) }

func (m *Map) index(key Value) int {
	return int(Hash(key) % uint32(len(m.slots)))
}

// Get returns the value stored under key. The value is borrowed.
func (m *Map) Get(key Value) (Value, bool) {
	for b := m.slots[m.index(key)]; !b.sentinel(); b = b.next {
		if Equals(key, b.key) {
			return b.val, true
		}
	}
	return Value{}, false
}

// Set stores val under key, claiming ownership of whatever it keeps. An
// existing value for key is released.
func (m *Map) Set(key, val Value) {
	b := m.slots[m.index(key)]
	for ; !b.sentinel(); b = b.next {
		if Equals(key, b.key) {
			val.Take()
			b.val.Release()
			b.val = val
			return
		}
	}

	if m.size > 2*len(m.slots)/3 {
		m.grow()
		b = m.slots[m.index(key)]
		for !b.sentinel() {
			b = b.next
		}
	}

	m.size++
	b.key = key.Take()
	b.val = val.Take()
	b.next = &bucket{}
}

// grow doubles the slot count and rehashes in place. An entry in slot i
// either stays or moves to slot i+old.
func (m *Map) grow() {
	old := len(m.slots)
	slots := make([]*bucket, old*2)
	copy(slots, m.slots)
	for i := old; i < len(slots); i++ {
		slots[i] = &bucket{}
	}
	m.slots = slots

	for i := 0; i < old; i++ {
		var prev *bucket
		b := m.slots[i]
		for !b.sentinel() {
			next := b.next
			j := m.index(b.key)
			if j != i {
				if prev == nil {
					m.slots[i] = next
				} else {
					prev.next = next
				}
				b.next = m.slots[j]
				m.slots[j] = b
			} else {
				prev = b
			}
			b = next
		}
	}
}

// Each calls fn for every entry in slot then chain order until fn returns
// false. The map must not be modified during iteration.
func (m *Map) Each(fn func(key, val Value) bool) {
	for _, b := range m.slots {
		for ; !b.sentinel(); b = b.next {
			if !fn(b.key, b.val) {
				return
			}
		}
	}
}

// Dispose releases every key and value and empties the map.
func (m *Map) Dispose() {
	slots := m.slots
	m.slots = []*bucket{{}}
	m.size = 0
	for _, b := range slots {
		for ; !b.sentinel(); b = b.next {
			b.key.Release()
			b.val.Release()
		}
	}
}
