package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses exact brute-force search. It is the default.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeHNSW uses an approximate HNSW graph. Good for large corpora.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeFAISS uses a FAISS IndexFlatL2.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "flat" (default, alias "memory"), "hnsw", "faiss".
// FAISS requires building with -tags=faiss and having FAISS library installed.
func NewVectorIndex(indexType string, dimensions int, opts ...Option) (VectorIndex, error) {
	var (
		idx VectorIndex
		err error
	)
	switch IndexType(indexType) {
	case IndexTypeFlat, "memory", "":
		idx, err = NewMemoryIndex(dimensions, opts...)
	case IndexTypeHNSW:
		idx, err = NewHNSWIndex(dimensions, opts...)
	case IndexTypeFAISS:
		idx, err = NewFAISSIndex(dimensions, opts...)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, hnsw, faiss)", indexType)
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
