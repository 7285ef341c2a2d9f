// Package onf implements the self-describing object-notation encoding used
// for the .aif-bin metadata sections (file-level metadata and per-chunk
// metadata, §6.1 of the format). It is a small tagged binary encoding, not
// JSON: every value is prefixed with a one-byte kind tag so a decoder can
// walk an unknown schema without a mapping.
//
// Layout (little-endian throughout):
//
//	tag  byte    one of the Kind constants below
//	Null         no payload
//	Bool         1 byte, 0 or 1
//	Int          8 bytes, int64
//	Float        8 bytes, float64
//	String       u32 length, then that many UTF-8 bytes
//	Bytes        u32 length, then that many raw bytes
//	Array        u32 count, then that many values
//	Map          u32 count, then that many (key string, value) pairs
//
// This grammar is an implementer's choice: §9 of the format spec leaves the
// exact byte layout of the object-notation encoding open, only requiring
// that it round-trip an arbitrary key→value map. Decoding is tolerant:
// EOF or an unrecognized tag aborts decoding of the current value and
// returns an error, never a panic.
package onf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind tags a Value's payload type.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
)

// Value is a tagged union representing one decoded object-notation value.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Array []Value
	Map   map[string]Value
}

// Null is the canonical null value.
var Null = Value{Kind: KindNull}

// String builds a string-kinded Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int builds an int-kinded Value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float builds a float-kinded Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool builds a bool-kinded Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Map builds a map-kinded Value.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// Array builds an array-kinded Value.
func Array(a []Value) Value { return Value{Kind: KindArray, Array: a} }

// ToAny converts v into the JSON-representable Go value it carries: nil,
// bool, int64, float64, string, []byte, []any, or map[string]any. Callers
// that need an opaque, schema-free view of a decoded value (rather than the
// tagged Value itself) use this instead of switching on Kind by hand.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBytes:
		return v.Bytes
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// AsFloat64Slice converts an array Value of numeric (int or float) elements
// into a []float64, for embedding-vector extraction. Non-numeric elements
// are skipped.
func (v Value) AsFloat64Slice() []float64 {
	if v.Kind != KindArray {
		return nil
	}
	out := make([]float64, 0, len(v.Array))
	for _, e := range v.Array {
		switch e.Kind {
		case KindFloat:
			out = append(out, e.Float)
		case KindInt:
			out = append(out, float64(e.Int))
		}
	}
	return out
}

// reader walks a byte slice, tracking the read cursor.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("onf: unexpected EOF reading tag")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("onf: unexpected EOF reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Decode parses a single self-describing value from buf, returning the
// value and the number of bytes consumed.
func Decode(buf []byte) (Value, int, error) {
	r := &reader{buf: buf}
	v, err := r.decodeValue()
	if err != nil {
		return Value{}, r.pos, err
	}
	return v, r.pos, nil
}

func (r *reader) decodeValue() (Value, error) {
	tag, err := r.readByte()
	if err != nil {
		return Value{}, err
	}
	switch Kind(tag) {
	case KindNull:
		return Null, nil
	case KindBool:
		b, err := r.readByte()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: b != 0}, nil
	case KindInt:
		u, err := r.readU64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: int64(u)}, nil
	case KindFloat:
		u, err := r.readU64()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindFloat, Float: math.Float64frombits(u)}, nil
	case KindString:
		n, err := r.readU32()
		if err != nil {
			return Value{}, err
		}
		b, err := r.readN(int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: string(b)}, nil
	case KindBytes:
		n, err := r.readU32()
		if err != nil {
			return Value{}, err
		}
		b, err := r.readN(int(n))
		if err != nil {
			return Value{}, err
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		return Value{Kind: KindBytes, Bytes: cp}, nil
	case KindArray:
		n, err := r.readU32()
		if err != nil {
			return Value{}, err
		}
		// Every element takes at least one byte, so the remaining input
		// bounds the preallocation even when the declared count is corrupt.
		arr := make([]Value, 0, min(int(n), r.remaining()))
		for i := uint32(0); i < n; i++ {
			elem, err := r.decodeValue()
			if err != nil {
				return Value{}, fmt.Errorf("onf: array element %d: %w", i, err)
			}
			arr = append(arr, elem)
		}
		return Value{Kind: KindArray, Array: arr}, nil
	case KindMap:
		n, err := r.readU32()
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, min(int(n), r.remaining()))
		for i := uint32(0); i < n; i++ {
			keyLen, err := r.readU32()
			if err != nil {
				return Value{}, err
			}
			keyBytes, err := r.readN(int(keyLen))
			if err != nil {
				return Value{}, err
			}
			val, err := r.decodeValue()
			if err != nil {
				return Value{}, fmt.Errorf("onf: map value for key %q: %w", string(keyBytes), err)
			}
			m[string(keyBytes)] = val
		}
		return Value{Kind: KindMap, Map: m}, nil
	default:
		return Value{}, fmt.Errorf("onf: unknown tag byte 0x%02x", tag)
	}
}

// DecodeMap is a convenience wrapper for the common case of decoding a
// top-level key→value map (file metadata and chunk metadata are always
// maps at the top level).
func DecodeMap(buf []byte) (map[string]Value, error) {
	v, _, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindMap {
		return nil, fmt.Errorf("onf: expected top-level map, got kind %d", v.Kind)
	}
	return v.Map, nil
}

// Encode serializes v into its tagged binary form, appending to dst.
func Encode(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.Kind))
	switch v.Kind {
	case KindNull:
	case KindBool:
		if v.Bool {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case KindInt:
		dst = appendU64(dst, uint64(v.Int))
	case KindFloat:
		dst = appendU64(dst, math.Float64bits(v.Float))
	case KindString:
		dst = appendU32(dst, uint32(len(v.Str)))
		dst = append(dst, v.Str...)
	case KindBytes:
		dst = appendU32(dst, uint32(len(v.Bytes)))
		dst = append(dst, v.Bytes...)
	case KindArray:
		dst = appendU32(dst, uint32(len(v.Array)))
		for _, e := range v.Array {
			dst = Encode(dst, e)
		}
	case KindMap:
		dst = appendU32(dst, uint32(len(v.Map)))
		for k, val := range v.Map {
			dst = appendU32(dst, uint32(len(k)))
			dst = append(dst, k...)
			dst = Encode(dst, val)
		}
	}
	return dst
}

// EncodeMap serializes a string-keyed map as a top-level Map value.
func EncodeMap(m map[string]Value) []byte {
	return Encode(nil, Map(m))
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
