// Package embedding provides text embedding generation for row content.
package embedding

import "context"

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result is
	// index-aligned with the input: vectors[i] embeds texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension. Must match the
	// vector column width of the row store.
	Dimension() int
}
