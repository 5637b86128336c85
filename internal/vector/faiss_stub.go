//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"fmt"
)

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

var errFAISSUnavailable = fmt.Errorf("FAISS not available: build with -tags=faiss and install FAISS library")

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int, opts ...Option) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return errFAISSUnavailable
}

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Remove(ctx context.Context, id string) (bool, error) {
	return false, errFAISSUnavailable
}

func (f *FAISSIndex) Contains(id string) bool { return false }
func (f *FAISSIndex) IDs() []string           { return nil }
func (f *FAISSIndex) Size() int               { return 0 }
func (f *FAISSIndex) Dimensions() int         { return 0 }
func (f *FAISSIndex) Metric() Metric          { return MetricEuclidean }
func (f *FAISSIndex) Close() error            { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
