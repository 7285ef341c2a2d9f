// Package parser decodes the .aif-bin on-disk memory file format: a fixed
// little-endian header naming a table of optional section offsets, a
// self-describing metadata map, and a sectioned stream of content-chunk
// records.
//
// Binary layout (little-endian):
//
//	Offset  Size  Field
//	0x00    8     Magic ("AIFBIN\x00\x01")
//	0x08    4     Version (u32)
//	0x0C    4     Padding
//	0x10    8     Metadata section offset (u64, 0xFFFFFFFFFFFFFFFF = absent)
//	0x18    8     Original-raw section offset
//	0x20    8     Content-chunks section offset
//	0x28    8     Versions section offset
//	0x30    8     Footer section offset
//	0x38    8     Total-size section offset
//
// Header size is fixed at 64 bytes. Each present section begins with a u64
// payload length, then that many payload bytes.
package parser

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/aifbin/recall/internal/apperr"
	"github.com/aifbin/recall/internal/onf"
)

const (
	headerSize    = 64
	sectionCount  = 6
	absentOffset  = 0xFFFFFFFFFFFFFFFF
	magicSize     = 8
)

var magic = [magicSize]byte{0x41, 0x49, 0x46, 0x42, 0x49, 0x4E, 0x00, 0x01}

// section indices within the offset table, in on-disk order.
const (
	secMetadata = iota
	secOriginalRaw
	secContentChunks
	secVersions
	secFooter
	secTotalSize
)

// IDSource synthesizes a chunk id when one is not present in the chunk's
// own metadata. It must be deterministic for a given (sourceFile,
// chunkIndex, text) so that re-parsing byte-identical input yields
// byte-identical ids (§9 open question, resolved as option (b)).
type IDSource func(sourceFile string, chunkIndex int, text string) string

// DefaultIDSource derives a UUID-shaped id from sha256(sourceFile,
// chunkIndex, text).
func DefaultIDSource(sourceFile string, chunkIndex int, text string) string {
	h := sha256.Sum256([]byte(sourceFile + "\x00" + strconv.Itoa(chunkIndex) + "\x00" + text))
	b := h[:16]
	// Render as a UUID-shaped (8-4-4-4-12) hex string.
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Parser decodes .aif-bin files into ParsedFile values.
type Parser struct {
	idSource IDSource
}

// Option configures a Parser.
type Option func(*Parser)

// WithIDSource overrides the id-synthesis function, primarily for
// deterministic tests.
func WithIDSource(fn IDSource) Option {
	return func(p *Parser) { p.idSource = fn }
}

// New creates a Parser with the default id source unless overridden.
func New(opts ...Option) *Parser {
	p := &Parser{idSource: DefaultIDSource}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads and decodes the file at path.
//
// A nil ParsedFile is only returned for a fatal, file-level failure
// (too small, bad magic, truncated section). A non-nil ParsedFile may
// still be accompanied by a non-nil error when an individual chunk record
// was malformed: decoding stops at that record but every chunk decoded
// before it is preserved (§4.1 step 8).
func (p *Parser) Parse(path string) (*ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.KindParse, "read file", err).WithDetail("path", path)
	}
	return p.ParseBytes(path, data)
}

// ParseBytes decodes data as if it were read from sourcePath. sourcePath is
// only used to seed deterministic id synthesis; it need not exist on disk.
func (p *Parser) ParseBytes(sourcePath string, data []byte) (*ParsedFile, error) {
	if len(data) < headerSize {
		return nil, apperr.New(apperr.KindParse, "file smaller than 64-byte header", nil).
			WithDetail("size", strconv.Itoa(len(data)))
	}
	var m [magicSize]byte
	copy(m[:], data[0:magicSize])
	if m != magic {
		return nil, apperr.New(apperr.KindParse, "bad magic prefix", nil)
	}

	version := binary.LittleEndian.Uint32(data[8:12])
	// bytes 12:16 are padding, ignored.

	offsets := make([]uint64, sectionCount)
	for i := 0; i < sectionCount; i++ {
		start := 16 + i*8
		offsets[i] = binary.LittleEndian.Uint64(data[start : start+8])
	}

	pf := &ParsedFile{Version: version}

	if payload, ok, err := readSection(data, offsets[secMetadata]); err != nil {
		return nil, err
	} else if ok {
		m, decErr := onf.DecodeMap(payload)
		if decErr != nil {
			// Tolerated: file metadata decode failure is not fatal (§4.1 step 5).
			pf.Metadata = map[string]onf.Value{}
		} else {
			pf.Metadata = m
		}
	} else {
		pf.Metadata = map[string]onf.Value{}
	}

	if payload, ok, err := readSection(data, offsets[secOriginalRaw]); err != nil {
		return nil, err
	} else if ok {
		pf.OriginalRaw = payload
	}

	if payload, ok, err := readSection(data, offsets[secVersions]); err != nil {
		return nil, err
	} else if ok {
		pf.Versions = payload
	}

	if payload, ok, err := readSection(data, offsets[secFooter]); err != nil {
		return nil, err
	} else if ok {
		pf.Footer = payload
	}

	if payload, ok, err := readSection(data, offsets[secTotalSize]); err != nil {
		return nil, err
	} else if ok && len(payload) == 8 {
		v := binary.LittleEndian.Uint64(payload)
		pf.TotalSize = &v
	}

	chunksPayload, ok, err := readSection(data, offsets[secContentChunks])
	if err != nil {
		return nil, err
	}
	if !ok {
		pf.Chunks = nil
		return pf, nil
	}

	chunks, chunkErr := p.decodeChunks(sourcePath, chunksPayload)
	pf.Chunks = chunks
	if chunkErr != nil {
		return pf, chunkErr
	}
	return pf, nil
}

// readSection returns (payload, present, error). error is non-nil only for
// a truncated/out-of-range section, which is a fatal file-level failure.
func readSection(data []byte, offset uint64) ([]byte, bool, error) {
	if offset == absentOffset {
		return nil, false, nil
	}
	if offset > uint64(len(data)) || offset+8 > uint64(len(data)) {
		return nil, false, apperr.New(apperr.KindParse, "section offset out of range", nil)
	}
	length := binary.LittleEndian.Uint64(data[offset : offset+8])
	start := offset + 8
	end := start + length
	if end > uint64(len(data)) || end < start {
		return nil, false, apperr.New(apperr.KindParse, "section payload out of range", nil)
	}
	return data[start:end], true, nil
}

// decodeChunks decodes the content-chunks section: a u32 count followed by
// that many (type, dataLen, metaLen, metaBytes, dataBytes) records.
func (p *Parser) decodeChunks(sourcePath string, payload []byte) ([]ParsedChunk, error) {
	if len(payload) < 4 {
		return nil, apperr.New(apperr.KindParse, "content-chunks section truncated before count", nil)
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	pos := 4

	chunks := make([]ParsedChunk, 0, count)
	for i := uint32(0); i < count; i++ {
		c, next, err := decodeOneChunk(payload, pos)
		if err != nil {
			return chunks, apperr.New(apperr.KindParse,
				fmt.Sprintf("malformed chunk record at index %d", i), err)
		}
		pos = next

		if c.Metadata == nil {
			c.Metadata = map[string]onf.Value{}
		}
		if idVal, found := c.Metadata["id"]; found && idVal.Kind == onf.KindString && idVal.Str != "" {
			c.ID = idVal.Str
		} else {
			c.ID = p.idSource(sourcePath, int(i), c.Text)
		}
		if embVal, found := c.Metadata["embedding"]; found {
			floats := embVal.AsFloat64Slice()
			if len(floats) > 0 {
				c.Embedding = make([]float32, len(floats))
				for j, f := range floats {
					c.Embedding[j] = float32(f)
				}
			}
		}

		chunks = append(chunks, c)
	}
	return chunks, nil
}

// decodeOneChunk decodes a single (type, dataLen, metaLen, metaBytes,
// dataBytes) record starting at pos, returning the next read position.
func decodeOneChunk(payload []byte, pos int) (ParsedChunk, int, error) {
	if pos+4+8+8 > len(payload) {
		return ParsedChunk{}, 0, fmt.Errorf("truncated record header")
	}
	typ := ChunkType(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	dataLen := binary.LittleEndian.Uint64(payload[pos : pos+8])
	pos += 8
	metaLen := binary.LittleEndian.Uint64(payload[pos : pos+8])
	pos += 8

	if uint64(pos)+metaLen > uint64(len(payload)) {
		return ParsedChunk{}, 0, fmt.Errorf("truncated metadata bytes")
	}
	metaBytes := payload[pos : pos+int(metaLen)]
	pos += int(metaLen)

	if uint64(pos)+dataLen > uint64(len(payload)) {
		return ParsedChunk{}, 0, fmt.Errorf("truncated data bytes")
	}
	dataBytes := payload[pos : pos+int(dataLen)]
	pos += int(dataLen)

	meta, err := onf.DecodeMap(metaBytes)
	if err != nil {
		return ParsedChunk{}, 0, fmt.Errorf("malformed chunk metadata: %w", err)
	}

	text := extractText(typ, dataBytes)

	return ParsedChunk{Type: typ, Text: text, Metadata: meta}, pos, nil
}

// extractText implements §4.1 step 6's per-type text extraction.
func extractText(typ ChunkType, data []byte) string {
	switch typ {
	case ChunkTypeText, ChunkTypeCode:
		return string(data)
	case ChunkTypeTableJSON:
		return canonicalJSON(data)
	default:
		return ""
	}
}

// canonicalJSON decodes arbitrary JSON and re-serializes it with sorted
// object keys, which is what encoding/json.Marshal already does for
// map[string]interface{}. Unparseable JSON yields an empty string rather
// than aborting the whole chunk: the chunk may still carry a usable
// embedding (§4.1 step 6).
func canonicalJSON(data []byte) string {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return ""
	}
	v = sortedValue(v)
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

// sortedValue is a no-op placeholder retained for clarity: Go's
// encoding/json already marshals map keys in sorted order, so no manual
// re-sorting of nested maps is required. Present so the intent reads
// explicitly at the call site instead of relying on an undocumented
// stdlib detail.
func sortedValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return t
	default:
		return v
	}
}
