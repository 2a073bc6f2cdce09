package value

import (
	"math"
	"unsafe"
)

// Hash returns the 32-bit hash of v used by Map.
//
// Floating values hash by truncation so that 3.0 and 3.5 share a bucket;
// NaN and the infinities, which have no integer truncation, hash by their
// bit pattern.
func Hash(v Value) uint32 {
	switch v.typ {
	case Nil:
		return 0
	case Boolean:
		return 1 + uint32(v.bits)
	case Integer:
		return uint32(v.bits)
	case Floating:
		f := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
			return uint32(v.bits) ^ uint32(v.bits>>32)
		}
		return uint32(int64(f))
	case String:
		return superFastHash(v.ref.str)
	case Table:
		return uint32(uintptr(unsafe.Pointer(v.ref)))
	case Function:
		var ext uint32
		if v.ref.fn.External {
			ext = 1
		}
		return ext<<31 ^ uint32(v.ref.fn.Position)
	}
	return 0
}

func get16(b []byte) uint32 {
	return uint32(b[1])<<8 | uint32(b[0])
}

// superFastHash is Paul Hsieh's SuperFastHash.
func superFastHash(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	hash := uint32(len(data))
	rem := len(data) & 3

	for n := len(data) >> 2; n > 0; n-- {
		hash += get16(data)
		tmp := get16(data[2:])<<11 ^ hash
		hash = hash<<16 ^ tmp
		data = data[4:]
		hash += hash >> 11
	}

	switch rem {
	case 3:
		hash += get16(data)
		hash ^= hash << 16
		hash ^= uint32(int32(int8(data[2]))) << 18
		hash += hash >> 11
	case 2:
		hash += get16(data)
		hash ^= hash << 11
		hash += hash >> 17
	case 1:
		hash += uint32(int32(int8(data[0])))
		hash ^= hash << 10
		hash += hash >> 1
	}

	hash ^= hash << 3
	hash += hash >> 5
	hash ^= hash << 4
	hash += hash >> 17
	hash ^= hash << 25
	hash += hash >> 6
	return hash
}
