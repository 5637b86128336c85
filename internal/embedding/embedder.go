// Package embedding turns variable-length numeric series into fixed-length vectors.
package embedding

import "context"

// Embedder produces vector embeddings for numeric series.
type Embedder interface {
	Embed(ctx context.Context, series []float64) ([]float32, error)
	EmbedBatch(ctx context.Context, series [][]float64) ([][]float32, error)
	Dimensions() int
	// Fingerprint identifies the configuration; embeddings are only comparable
	// when their fingerprints are equal.
	Fingerprint() string
	Close() error
}
