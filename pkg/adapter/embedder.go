package adapter

import "context"

// Embedder computes fixed-length vectors for texts. Identical input must map to
// an identical vector, so implementations pin both model and dimensionality.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}
