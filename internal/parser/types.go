package parser

import "github.com/aifbin/recall/internal/onf"

// ChunkType identifies the kind of payload a content-chunk record carries.
type ChunkType uint32

const (
	ChunkTypeText      ChunkType = 1
	ChunkTypeTableJSON ChunkType = 2
	ChunkTypeImage     ChunkType = 3
	ChunkTypeAudio     ChunkType = 4
	ChunkTypeVideo     ChunkType = 5
	ChunkTypeCode      ChunkType = 6
)

// ParsedChunk is one decoded content-chunk record.
type ParsedChunk struct {
	// ID is read from the chunk's own metadata under key "id", or
	// synthesized deterministically by the parser's IDSource if absent.
	ID string
	// Type is the raw record type tag.
	Type ChunkType
	// Text is the extracted text for TEXT/CODE/TABLE_JSON chunks, or empty
	// for types that carry no textual payload.
	Text string
	// Embedding is read from metadata key "embedding"; nil/empty if absent.
	Embedding []float32
	// Metadata is the full decoded metadata map for this chunk, including
	// the "id" and "embedding" keys if present.
	Metadata map[string]onf.Value
}

// ParsedFile is the result of decoding one .aif-bin file.
type ParsedFile struct {
	Version uint32
	// Metadata is the file-level metadata map. A decode failure here is
	// tolerated and yields an empty map (§4.1 step 5).
	Metadata map[string]onf.Value
	// OriginalRaw is the raw bytes of the original-raw section, if present.
	OriginalRaw []byte
	// Versions is the raw bytes of the versions section, if present.
	Versions []byte
	// Footer is the raw bytes of the footer section, if present. No
	// checksum validation is performed on it (§9 open question).
	Footer []byte
	// TotalSize is the decoded value of the total-size section, if present
	// and exactly 8 bytes.
	TotalSize *uint64
	// Chunks holds every chunk successfully decoded before any malformed
	// record was hit; it may be a non-empty partial result even when Parse
	// also returns a non-nil error (§4.1 step 8).
	Chunks []ParsedChunk
}
