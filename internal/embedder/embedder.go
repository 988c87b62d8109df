// Package embedder defines the Embedder capability and its implementations.
// Adapted from the teacher's internal/memory/embeddings package.
package embedder

import "context"

// Embedder produces fixed-dimension float vectors for a batch of strings.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call
	// where the backend supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the embedding model in use.
	ModelName() string

	// ProviderType identifies the backend ("openai", "ollama").
	ProviderType() string

	// Dimension returns the embedding vector length.
	Dimension() int

	// MaxBatchSize returns the largest batch EmbedBatch accepts.
	MaxBatchSize() int
}
