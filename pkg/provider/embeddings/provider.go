// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// Embeddings back two retrieval paths of the chat agent: ranking stored
// user and server notes against the incoming message, and semantic search
// over the long-term message log. Vectors are float32 throughout so they can
// be stored in pgvector columns, JSON note files and SQLite blobs alike.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector returned by one Provider shares the same length (Dimensions).
// Vectors from different models must never be compared with each other; the
// similarity ranker skips mismatched dimensions rather than failing.
type Provider interface {
	// Embed computes the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for texts in one call. The i-th result
	// corresponds to texts[i]. On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length, or 0 if it is not yet known.
	Dimensions() int

	// ModelID returns the model identifier, e.g. "text-embedding-3-small".
	ModelID() string
}
