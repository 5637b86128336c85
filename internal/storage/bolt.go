package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/hyperjump/tsrag/internal/models"
)

var (
	bucketDocs  = []byte("documents")
	bucketOrder = []byte("order")
)

// BoltStorage implements Storage on a bbolt file. Documents are JSON values in
// the documents bucket; the order bucket maps big-endian sequence numbers to ids.
type BoltStorage struct {
	db         *bbolt.DB
	dimensions int
}

type boltRecord struct {
	models.Document
	Seq uint64 `json:"seq"`
}

// NewBoltStorage opens or creates the bbolt file at path.
func NewBoltStorage(path string, dimensions int) (*BoltStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt storage needs a database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketOrder} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db, dimensions: dimensions}, nil
}

// Put inserts or replaces a document. A replaced document moves to the end of the order.
func (s *BoltStorage) Put(ctx context.Context, doc *models.Document) error {
	if err := validateDocument(doc, s.dimensions); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs, order := tx.Bucket(bucketDocs), tx.Bucket(bucketOrder)
		if prev := docs.Get([]byte(doc.ID)); prev != nil {
			var old boltRecord
			if err := json.Unmarshal(prev, &old); err != nil {
				return fmt.Errorf("decode document %q: %w", doc.ID, err)
			}
			if err := order.Delete(uint64ToKey(old.Seq)); err != nil {
				return err
			}
		}
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(boltRecord{Document: *doc, Seq: seq})
		if err != nil {
			return err
		}
		if err := order.Put(uint64ToKey(seq), []byte(doc.ID)); err != nil {
			return err
		}
		return docs.Put([]byte(doc.ID), data)
	})
}

// Get returns a document by ID.
func (s *BoltStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	var rec boltRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return models.NotFoundError(id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	doc := rec.Document
	return &doc, nil
}

// Delete removes a document and its order entry.
func (s *BoltStorage) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		data := docs.Get([]byte(id))
		if data == nil {
			return nil
		}
		var rec boltRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode document %q: %w", id, err)
		}
		if err := tx.Bucket(bucketOrder).Delete(uint64ToKey(rec.Seq)); err != nil {
			return err
		}
		existed = true
		return docs.Delete([]byte(id))
	})
	return existed, err
}

// ListIDs walks the order bucket inside one read transaction.
func (s *BoltStorage) ListIDs(ctx context.Context) (iter.Seq[string], error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOrder).ForEach(func(_, v []byte) error {
			ids = append(ids, string(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sliceSeq(ids), nil
}

// Count returns the number of documents.
func (s *BoltStorage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDocs).Stats().KeyN
		return nil
	})
	return n, err
}

// Dimensions returns the embedding dimension the store accepts.
func (s *BoltStorage) Dimensions() int {
	return s.dimensions
}

// Persistent is true for bbolt.
func (s *BoltStorage) Persistent() bool {
	return true
}

// Close closes the bolt file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
