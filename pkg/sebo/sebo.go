// Package sebo implements Sebo, the self-describing binary encoding of Modl
// values used for bytecode constants.
//
// Every encoded value starts with a one byte tag:
//
//	0x00 nil
//	0x01 false
//	0x02 true
//	0x03 integer, one unsigned byte
//	0x04 integer, 4-byte big-endian signed
//	0x05 floating, 8-byte IEEE-754 big-endian
//	0x06 string: Sebo integer length, then raw bytes
//	0x0A table: Sebo integer length, which must be 0
//	0x0B integer, 8-byte big-endian signed
package sebo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/modl/pkg/value"
)

// Tags.
const (
	TagNil    byte = 0x00
	TagFalse  byte = 0x01
	TagTrue   byte = 0x02
	TagUint8  byte = 0x03
	TagInt32  byte = 0x04
	TagFloat  byte = 0x05
	TagString byte = 0x06
	TagTable  byte = 0x0A
	TagInt64  byte = 0x0B
)

var (
	ErrUnknownTag    = errors.New("unknown type code")
	ErrTruncated     = errors.New("truncated input")
	ErrTableNotEmpty = errors.New("table is not empty")
	ErrBadLength     = errors.New("invalid length")
	ErrUnencodable   = errors.New("value cannot be encoded")
)

// Decode reads one value from the front of data. It returns the value, a
// temporary for reference types, and the number of bytes consumed.
func Decode(data []byte) (value.Value, int, error) {
	if len(data) == 0 {
		return value.Value{}, 0, fmt.Errorf("sebo: decode: %w", ErrTruncated)
	}
	switch tag := data[0]; tag {
	case TagNil:
		return value.NilValue(), 1, nil
	case TagFalse:
		return value.Bool(false), 1, nil
	case TagTrue:
		return value.Bool(true), 1, nil
	case TagUint8:
		if len(data) < 2 {
			return truncated(tag)
		}
		return value.Int(int64(data[1])), 2, nil
	case TagInt32:
		if len(data) < 5 {
			return truncated(tag)
		}
		return value.Int(int64(int32(binary.BigEndian.Uint32(data[1:])))), 5, nil
	case TagFloat:
		if len(data) < 9 {
			return truncated(tag)
		}
		return value.Float(math.Float64frombits(binary.BigEndian.Uint64(data[1:]))), 9, nil
	case TagInt64:
		if len(data) < 9 {
			return truncated(tag)
		}
		return value.Int(int64(binary.BigEndian.Uint64(data[1:]))), 9, nil
	case TagString:
		n, hdr, err := decodeLength(data[1:])
		if err != nil {
			return value.Value{}, 0, err
		}
		start := 1 + hdr
		if len(data)-start < n {
			return truncated(tag)
		}
		buf := make([]byte, n)
		copy(buf, data[start:start+n])
		return value.StrBytes(buf), start + n, nil
	case TagTable:
		n, hdr, err := decodeLength(data[1:])
		if err != nil {
			return value.Value{}, 0, err
		}
		if n > 0 {
			return value.Value{}, 0, fmt.Errorf("sebo: decode table of length %d: %w", n, ErrTableNotEmpty)
		}
		return value.NewTable(), 1 + hdr, nil
	default:
		return value.Value{}, 0, fmt.Errorf("sebo: decode: %w 0x%02x", ErrUnknownTag, tag)
	}
}

func truncated(tag byte) (value.Value, int, error) {
	return value.Value{}, 0, fmt.Errorf("sebo: decode tag 0x%02x: %w", tag, ErrTruncated)
}

// decodeLength reads the Integer length field of a string or table. Only
// integer tags are accepted, so a length never nests another value.
func decodeLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("sebo: decode length: %w", ErrTruncated)
	}
	switch data[0] {
	case TagUint8, TagInt32, TagInt64:
	default:
		return 0, 0, fmt.Errorf("sebo: length tag 0x%02x: %w", data[0], ErrBadLength)
	}
	v, n, err := Decode(data)
	if err != nil {
		return 0, 0, err
	}
	if v.AsInt() < 0 || v.AsInt() > math.MaxInt32 {
		return 0, 0, fmt.Errorf("sebo: length %d: %w", v.AsInt(), ErrBadLength)
	}
	return int(v.AsInt()), n, nil
}

// Encode returns the canonical encoding of v.
func Encode(v value.Value) ([]byte, error) {
	return Append(nil, v)
}

// Append appends the canonical encoding of v to dst. Integers use the
// shortest of the one byte, 4-byte and 8-byte forms. Functions and
// non-empty tables cannot be encoded.
func Append(dst []byte, v value.Value) ([]byte, error) {
	switch v.Type() {
	case value.Nil:
		return append(dst, TagNil), nil
	case value.Boolean:
		if v.AsBool() {
			return append(dst, TagTrue), nil
		}
		return append(dst, TagFalse), nil
	case value.Integer:
		return appendInt(dst, v.AsInt()), nil
	case value.Floating:
		dst = append(dst, TagFloat)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.AsFloat())), nil
	case value.String:
		b := v.Bytes()
		dst = append(dst, TagString)
		dst = appendInt(dst, int64(len(b)))
		return append(dst, b...), nil
	case value.Table:
		if v.Map().Len() > 0 {
			return dst, fmt.Errorf("sebo: encode table with %d entries: %w", v.Map().Len(), ErrUnencodable)
		}
		return append(dst, TagTable, TagUint8, 0), nil
	}
	return dst, fmt.Errorf("sebo: encode %s: %w", v.Type(), ErrUnencodable)
}

func appendInt(dst []byte, i int64) []byte {
	switch {
	case i >= 0 && i <= math.MaxUint8:
		return append(dst, TagUint8, byte(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		dst = append(dst, TagInt32)
		return binary.BigEndian.AppendUint32(dst, uint32(int32(i)))
	}
	dst = append(dst, TagInt64)
	return binary.BigEndian.AppendUint64(dst, uint64(i))
}

// Len returns the encoded length of the value at the front of data without
// allocating it.
func Len(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("sebo: decode: %w", ErrTruncated)
	}
	switch tag := data[0]; tag {
	case TagNil, TagFalse, TagTrue:
		return 1, nil
	case TagUint8:
		return fixed(data, 2)
	case TagInt32:
		return fixed(data, 5)
	case TagFloat, TagInt64:
		return fixed(data, 9)
	}
	_, n, err := Decode(data)
	return n, err
}

func fixed(data []byte, n int) (int, error) {
	if len(data) < n {
		return 0, fmt.Errorf("sebo: decode tag 0x%02x: %w", data[0], ErrTruncated)
	}
	return n, nil
}
