// Package storage defines the document store and its backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/hyperjump/tsrag/internal/models"
)

// Storage holds documents keyed by id.
//
// Implementations keep insertion order: ListIDs yields ids in the order their
// current version was stored, so a replaced document moves to the end.
type Storage interface {
	// Put inserts or replaces doc. An embedding of the wrong length fails with ErrInvalidDocument.
	Put(ctx context.Context, doc *models.Document) error
	// Get returns the document or an error matching ErrNotFound.
	Get(ctx context.Context, id string) (*models.Document, error)
	// Delete removes id and reports whether it existed. A missing id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// ListIDs snapshots the ids at call time and yields them lazily.
	// Call it again for a fresh snapshot.
	ListIDs(ctx context.Context) (iter.Seq[string], error)
	Count(ctx context.Context) (int, error)
	Dimensions() int
	// Persistent reports whether documents survive a restart.
	Persistent() bool
	Close() error
}

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
)

// NewStorage opens the backend at path. path is ignored for the memory backend.
func NewStorage(backend string, path string, dimensions int) (Storage, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	switch Backend(backend) {
	case BackendMemory, "":
		return NewMemoryStorage(dimensions), nil
	case BackendSQLite:
		s, err := NewSQLiteStorage(path, dimensions)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBolt:
		s, err := NewBoltStorage(path, dimensions)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, bolt)", backend)
	}
}

// validateDocument checks id, embedding shape and metadata encodability, and
// stamps CreatedAt when unset.
func validateDocument(doc *models.Document, dimensions int) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", models.ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: empty id", models.ErrInvalidDocument)
	}
	if err := models.CheckDimension(doc.Embedding, dimensions); err != nil {
		return fmt.Errorf("%w: document %q: %w", models.ErrInvalidDocument, doc.ID, err)
	}
	if _, err := json.Marshal(doc.Metadata); err != nil {
		return fmt.Errorf("%w: document %q metadata: %v", models.ErrInvalidDocument, doc.ID, err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return nil
}

func sliceSeq(ids []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}
