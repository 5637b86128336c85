package storage

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/hyperjump/tsrag/internal/models"
)

// MemoryStorage keeps documents in a map. Nothing survives a restart without a snapshot.
type MemoryStorage struct {
	dimensions int
	docs       map[string]*memoryEntry
	nextSeq    uint64
	mu         sync.RWMutex
}

type memoryEntry struct {
	doc *models.Document
	seq uint64
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage(dimensions int) *MemoryStorage {
	return &MemoryStorage{
		dimensions: dimensions,
		docs:       make(map[string]*memoryEntry),
	}
}

// Put inserts or replaces a document.
func (s *MemoryStorage) Put(ctx context.Context, doc *models.Document) error {
	if err := validateDocument(doc, s.dimensions); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = &memoryEntry{doc: doc.Clone(), seq: s.nextSeq}
	s.nextSeq++
	return nil
}

// Get returns a copy of the document with the given id.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[id]
	if !ok {
		return nil, models.NotFoundError(id)
	}
	return e.doc.Clone(), nil
}

// Delete removes a document.
func (s *MemoryStorage) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

// ListIDs returns the ids present at call time in insertion order.
func (s *MemoryStorage) ListIDs(ctx context.Context) (iter.Seq[string], error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.docs))
	for _, e := range s.docs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.doc.ID
	}
	return sliceSeq(ids), nil
}

// Count returns the number of documents.
func (s *MemoryStorage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Dimensions returns the embedding dimension the store accepts.
func (s *MemoryStorage) Dimensions() int {
	return s.dimensions
}

// Persistent is false for the memory backend.
func (s *MemoryStorage) Persistent() bool {
	return false
}

// Close is a no-op for MemoryStorage.
func (s *MemoryStorage) Close() error {
	return nil
}
