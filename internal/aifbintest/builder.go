// Package aifbintest builds synthetic .aif-bin byte streams for tests. It is
// the write-side counterpart of internal/parser's read-only decoder and is
// intentionally not a _test.go file so internal/parser, internal/store,
// and internal/index can all share one fixture builder.
package aifbintest

import (
	"encoding/binary"

	"github.com/aifbin/recall/internal/onf"
)

// Magic is the 8-byte file prefix.
var Magic = [8]byte{0x41, 0x49, 0x46, 0x42, 0x49, 0x4E, 0x00, 0x01}

const absentOffset = 0xFFFFFFFFFFFFFFFF

// Chunk is one content-chunk record to embed in a built file.
type Chunk struct {
	Type     uint32
	Text     string
	Metadata map[string]onf.Value
}

// File describes everything needed to build a complete .aif-bin byte
// stream.
type File struct {
	Version  uint32
	Metadata map[string]onf.Value
	Chunks   []Chunk
	Footer   []byte
}

// Build serializes f into a byte stream matching the on-disk format
// described in spec §6.1.
func Build(f File) []byte {
	var metaPayload []byte
	if f.Metadata != nil {
		metaPayload = onf.EncodeMap(f.Metadata)
	}

	chunksPayload := encodeChunks(f.Chunks)

	sections := [][]byte{metaPayload, nil, chunksPayload, nil, f.Footer, nil}
	present := [6]bool{
		f.Metadata != nil,
		false,
		true,
		false,
		f.Footer != nil,
		false,
	}

	header := make([]byte, 64)
	copy(header[0:8], Magic[:])
	binary.LittleEndian.PutUint32(header[8:12], f.Version)

	body := make([]byte, 0, 256)
	offsets := make([]uint64, 6)
	for i, payload := range sections {
		if !present[i] {
			offsets[i] = absentOffset
			continue
		}
		offsets[i] = uint64(64 + len(body))
		lenBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(lenBuf, uint64(len(payload)))
		body = append(body, lenBuf...)
		body = append(body, payload...)
	}
	for i, off := range offsets {
		start := 16 + i*8
		binary.LittleEndian.PutUint64(header[start:start+8], off)
	}

	return append(header, body...)
}

func encodeChunks(chunks []Chunk) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(len(chunks)))
	for _, c := range chunks {
		metaBytes := onf.EncodeMap(c.Metadata)
		dataBytes := []byte(c.Text)

		rec := make([]byte, 4+8+8)
		binary.LittleEndian.PutUint32(rec[0:4], c.Type)
		binary.LittleEndian.PutUint64(rec[4:12], uint64(len(dataBytes)))
		binary.LittleEndian.PutUint64(rec[12:20], uint64(len(metaBytes)))
		out = append(out, rec...)
		out = append(out, metaBytes...)
		out = append(out, dataBytes...)
	}
	return out
}

// EmbeddingValue builds the onf array Value for an embedding vector, for
// use as chunk metadata["embedding"].
func EmbeddingValue(vec []float32) onf.Value {
	vals := make([]onf.Value, len(vec))
	for i, f := range vec {
		vals[i] = onf.Float(float64(f))
	}
	return onf.Array(vals)
}
