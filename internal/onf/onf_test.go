package onf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalarValues(t *testing.T) {
	cases := []Value{
		Null,
		Bool(true),
		Bool(false),
		Int(-42),
		Int(0),
		Float(3.14159),
		String("hello world"),
		{Kind: KindBytes, Bytes: []byte{1, 2, 3, 4}},
	}

	for _, v := range cases {
		buf := Encode(nil, v)
		got, n, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v.Kind, got.Kind)
		switch v.Kind {
		case KindBool:
			assert.Equal(t, v.Bool, got.Bool)
		case KindInt:
			assert.Equal(t, v.Int, got.Int)
		case KindFloat:
			assert.Equal(t, v.Float, got.Float)
		case KindString:
			assert.Equal(t, v.Str, got.Str)
		case KindBytes:
			assert.Equal(t, v.Bytes, got.Bytes)
		}
	}
}

func TestRoundTripArrayAndMap(t *testing.T) {
	v := Map(map[string]Value{
		"id": String("chunk-1"),
		"embedding": Array([]Value{
			Float(1.0), Float(0.0), Float(0.0),
		}),
		"nested": Map(map[string]Value{
			"a": Int(1),
			"b": Bool(true),
		}),
	})

	buf := EncodeMap(v.Map)
	m, err := DecodeMap(buf)
	require.NoError(t, err)

	require.Contains(t, m, "id")
	assert.Equal(t, "chunk-1", m["id"].Str)

	require.Contains(t, m, "embedding")
	floats := m["embedding"].AsFloat64Slice()
	assert.Equal(t, []float64{1.0, 0.0, 0.0}, floats)

	require.Contains(t, m, "nested")
	nested := m["nested"].Map
	assert.Equal(t, int64(1), nested["a"].Int)
	assert.True(t, nested["b"].Bool)
}

func TestDecodeMapRejectsNonMapTopLevel(t *testing.T) {
	buf := Encode(nil, String("not a map"))
	_, err := DecodeMap(buf)
	assert.Error(t, err)
}

func TestDecodeTruncatedBufferErrors(t *testing.T) {
	buf := Encode(nil, String("hello"))
	for i := 0; i < len(buf); i++ {
		_, _, err := Decode(buf[:i])
		assert.Error(t, err, "truncation at %d bytes should fail, not panic", i)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, _, err := Decode([]byte{0xFF})
	assert.Error(t, err)
}

func TestAsFloat64SliceSkipsNonNumeric(t *testing.T) {
	v := Array([]Value{Float(1.5), String("oops"), Int(2)})
	assert.Equal(t, []float64{1.5, 2.0}, v.AsFloat64Slice())
}

func TestAsFloat64SliceOnNonArray(t *testing.T) {
	assert.Nil(t, String("x").AsFloat64Slice())
}
