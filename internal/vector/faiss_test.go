//go:build faiss && cgo
// +build faiss,cgo

package vector

import "testing"

func faissFactory(t *testing.T, dims int, opts ...Option) VectorIndex {
	t.Helper()
	idx, err := NewFAISSIndex(dims, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestFAISSIndex_Suite(t *testing.T) {
	runIndexSuite(t, faissFactory)
}
