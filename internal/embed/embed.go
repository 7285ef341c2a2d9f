// Package embed provides the pluggable embedding capability the retrieval
// core depends on without prescribing a model (§4.4).
package embed

import (
	"context"
	"math"
)

// Embedder produces unit-normalized vectors for text. Implementations must
// tolerate concurrent calls from readers, serializing internally if needed;
// the first call may block on model acquisition.
type Embedder interface {
	// Embed returns a unit-normalized vector for text, fixed length per model.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch is equivalent to mapping Embed, batched internally.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this embedder produces.
	Dimension() int

	// ModelName identifies the embedding model in use.
	ModelName() string

	// Available reports whether the embedder is ready to serve requests.
	Available(ctx context.Context) bool

	// Close releases any resources held by the embedder.
	Close() error
}

// normalizeVector returns an L2-normalized copy of v; v itself is not
// modified. A zero vector is returned unchanged, matching the convention that cosine similarity against
// a zero magnitude is defined as 0 rather than undefined (§4.5).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out
}
