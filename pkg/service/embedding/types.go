package embedding

import (
	"context"
)

// Service is the capability interface for mapping text to fixed-length
// dense vectors. Implementations are pure given a fixed model version;
// swapping backends must not require changes in retrieval or indexing.
type Service interface {
	// Embed maps a single text to a vector
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch maps texts to vectors, preserving order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion identifies the backing model and dimension. Indexes
	// built with a different version must be rebuilt, not mixed.
	ModelVersion() string
}
