package embedding

import "context"

// Embedder converts batches of text into fixed-dimension vectors.
// Implementations must return vectors normalized to unit length, exactly
// one row per input text in input order, or fail the whole call.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
