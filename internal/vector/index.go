// Package vector provides vector indexes for k-nearest-neighbor search over embeddings.
package vector

import "context"

// VectorIndex defines vector storage and nearest-neighbor search.
// Results are ordered by ascending distance; equal distances keep insertion order.
type VectorIndex interface {
	// Add inserts vectors under ids. The batch is validated as a whole before
	// anything is inserted. An id already in the index fails with ErrAlreadyExists.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k nearest vectors accepted by filter (nil accepts all).
	// k <= 0 or a query of the wrong dimension fails with ErrInvalidArgument.
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error)
	// Remove deletes id and reports whether it was present.
	Remove(ctx context.Context, id string) (bool, error)
	Contains(id string) bool
	// IDs returns the live ids in insertion order.
	IDs() []string
	Size() int
	Dimensions() int
	Metric() Metric
	Type() string
	Close() error
}

// Filter restricts search candidates by id.
type Filter func(id string) bool

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string
	Distance float64
}
