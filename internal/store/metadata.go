package store

import (
	"fmt"

	"github.com/aifbin/recall/internal/onf"
)

// encodeMetadata serializes an opaque key→value map into its on-disk
// object-notation byte image (§3 "metadata (opaque key→value map)").
func encodeMetadata(m map[string]any) []byte {
	if len(m) == 0 {
		return onf.EncodeMap(map[string]onf.Value{})
	}
	out := make(map[string]onf.Value, len(m))
	for k, v := range m {
		out[k] = toONFValue(v)
	}
	return onf.EncodeMap(out)
}

// decodeMetadata is the inverse of encodeMetadata.
func decodeMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	m, err := onf.DecodeMap(b)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromONFValue(v)
	}
	return out, nil
}

func toONFValue(v any) onf.Value {
	switch t := v.(type) {
	case nil:
		return onf.Null
	case bool:
		return onf.Bool(t)
	case string:
		return onf.String(t)
	case []byte:
		return onf.Value{Kind: onf.KindBytes, Bytes: t}
	case int:
		return onf.Int(int64(t))
	case int64:
		return onf.Int(t)
	case float32:
		return onf.Float(float64(t))
	case float64:
		return onf.Float(t)
	case []any:
		arr := make([]onf.Value, len(t))
		for i, e := range t {
			arr[i] = toONFValue(e)
		}
		return onf.Array(arr)
	case map[string]any:
		m := make(map[string]onf.Value, len(t))
		for k, e := range t {
			m[k] = toONFValue(e)
		}
		return onf.Map(m)
	default:
		// Unknown Go type: best-effort stringify rather than drop the key.
		return onf.String(fmt.Sprint(t))
	}
}

func fromONFValue(v onf.Value) any {
	return v.ToAny()
}

// encodeEmbedding serializes a []float32 as its raw little-endian byte
// image (§4.2 "Embedding encoding").
func encodeEmbedding(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, f := range vec {
		putFloat32LE(out[i*4:i*4+4], f)
	}
	return out
}

// decodeEmbedding is the inverse of encodeEmbedding. The vector length is
// implicit from the blob size.
func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32FromLE(b[i*4 : i*4+4])
	}
	return out
}
