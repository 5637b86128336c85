package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/snapshot"
)

const rebuildBatchSize = 256

// Rebuild loads every stored document into the empty vector and metadata
// indexes, in stored insertion order. It is used at startup with a persistent store.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	const op = "engine.Rebuild"
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vectorIndex.Size() != 0 {
		return 0, models.WrapError(op, fmt.Errorf("%w: vector index is not empty", models.ErrInvalidArgument))
	}

	ids, err := e.storage.ListIDs(ctx)
	if err != nil {
		return 0, models.WrapError(op, err)
	}
	fp := e.embedder.Fingerprint()
	var (
		batchIDs  []string
		batchVecs [][]float32
		metadata  = make(map[string]map[string]interface{})
		total     int
	)
	flush := func() error {
		if len(batchIDs) == 0 {
			return nil
		}
		if err := e.vectorIndex.Add(ctx, batchIDs, batchVecs); err != nil {
			return err
		}
		if e.metadataIndex != nil {
			if err := e.metadataIndex.IndexBatch(ctx, metadata); err != nil {
				return fmt.Errorf("metadata index: %w", err)
			}
		}
		total += len(batchIDs)
		batchIDs, batchVecs = batchIDs[:0], batchVecs[:0]
		clear(metadata)
		return nil
	}

	for id := range ids {
		doc, err := e.storage.Get(ctx, id)
		if err != nil {
			return total, models.WrapError(op, err)
		}
		if doc.Fingerprint != "" && doc.Fingerprint != fp {
			return total, models.WrapError(op, fmt.Errorf(
				"%w: document %q was embedded with %q, engine uses %q; re-index the corpus",
				models.ErrInvalidDocument, id, doc.Fingerprint, fp))
		}
		batchIDs = append(batchIDs, doc.ID)
		batchVecs = append(batchVecs, doc.Embedding)
		metadata[doc.ID] = doc.Metadata
		if len(batchIDs) == rebuildBatchSize {
			if err := flush(); err != nil {
				return total, models.WrapError(op, err)
			}
		}
	}
	if err := flush(); err != nil {
		return total, models.WrapError(op, err)
	}
	e.logger.Info("vector index rebuilt", zap.Int("documents", total), zap.String("index", e.vectorIndex.Type()))
	return total, nil
}

// CheckConsistency verifies that the store and index hold exactly the same ids.
func (e *Engine) CheckConsistency(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seq, err := e.storage.ListIDs(ctx)
	if err != nil {
		return models.WrapError("engine.CheckConsistency", err)
	}
	stored := make(map[string]struct{})
	for id := range seq {
		stored[id] = struct{}{}
	}
	var orphans []string
	indexed := e.vectorIndex.IDs()
	for _, id := range indexed {
		if _, ok := stored[id]; !ok {
			orphans = append(orphans, id)
		}
		delete(stored, id)
	}
	if len(orphans) == 0 && len(stored) == 0 {
		return nil
	}
	unindexed := make([]string, 0, len(stored))
	for id := range stored {
		unindexed = append(unindexed, id)
	}
	slices.Sort(unindexed)
	return e.inconsistency("engine.CheckConsistency",
		"%d indexed ids missing from the store %v, %d stored ids missing from the index %v",
		len(orphans), firstN(orphans, 5), len(unindexed), firstN(unindexed, 5))
}

func firstN(ids []string, n int) []string {
	return ids[:min(n, len(ids))]
}

// Stats describes the engine state.
type Stats struct {
	Documents       int    `json:"documents"`
	Indexed         int    `json:"indexed"`
	Dimensions      int    `json:"dimensions"`
	Fingerprint     string `json:"fingerprint"`
	IndexType       string `json:"index_type"`
	Metric          string `json:"metric"`
	Persistent      bool   `json:"persistent"`
	DuplicatePolicy string `json:"duplicate_policy"`
	MetadataIndexed uint64 `json:"metadata_indexed,omitempty"`
}

// Stats returns document counts and the engine configuration.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	count, err := e.storage.Count(ctx)
	if err != nil {
		return nil, models.WrapError("engine.Stats", err)
	}
	stats := &Stats{
		Documents:       count,
		Indexed:         e.vectorIndex.Size(),
		Dimensions:      e.embedder.Dimensions(),
		Fingerprint:     e.embedder.Fingerprint(),
		IndexType:       e.vectorIndex.Type(),
		Metric:          string(e.vectorIndex.Metric()),
		Persistent:      e.storage.Persistent(),
		DuplicatePolicy: string(e.policy),
	}
	if e.metadataIndex != nil {
		if n, err := e.metadataIndex.DocCount(); err == nil {
			stats.MetadataIndexed = n
		}
	}
	return stats, nil
}

// Snapshot writes every document to w in insertion order and returns the count.
func (e *Engine) Snapshot(ctx context.Context, w io.Writer) (int, error) {
	const op = "engine.Snapshot"
	e.mu.RLock()
	defer e.mu.RUnlock()
	count, err := e.storage.Count(ctx)
	if err != nil {
		return 0, models.WrapError(op, err)
	}
	ids, err := e.storage.ListIDs(ctx)
	if err != nil {
		return 0, models.WrapError(op, err)
	}
	sw, err := snapshot.NewWriter(w, snapshot.Header{
		Fingerprint: e.embedder.Fingerprint(),
		Dimensions:  e.embedder.Dimensions(),
		Metric:      string(e.vectorIndex.Metric()),
		IndexType:   e.vectorIndex.Type(),
		Count:       count,
	})
	if err != nil {
		return 0, models.WrapError(op, err)
	}
	written := 0
	for id := range ids {
		if err := ctx.Err(); err != nil {
			return written, models.WrapError(op, err)
		}
		doc, err := e.storage.Get(ctx, id)
		if err != nil {
			return written, models.WrapError(op, err)
		}
		if err := sw.Write(doc); err != nil {
			return written, models.WrapError(op, err)
		}
		written++
	}
	if err := sw.Close(); err != nil {
		return written, models.WrapError(op, err)
	}
	e.logger.Info("snapshot written", zap.Int("documents", written))
	return written, nil
}

// Restore loads a snapshot into an empty engine and returns the number of
// documents restored. The snapshot must come from the same embedder configuration.
func (e *Engine) Restore(ctx context.Context, r io.Reader) (int, error) {
	const op = "engine.Restore"
	sr, err := snapshot.NewReader(r)
	if err != nil {
		return 0, models.WrapError(op, fmt.Errorf("%w: %w", models.ErrInvalidInput, err))
	}
	h := sr.Header()
	if h.Fingerprint != e.embedder.Fingerprint() {
		return 0, models.WrapError(op, fmt.Errorf("%w: snapshot was embedded with %q, engine uses %q",
			models.ErrInvalidDocument, h.Fingerprint, e.embedder.Fingerprint()))
	}
	if h.Dimensions != e.embedder.Dimensions() {
		return 0, models.WrapError(op, &models.DimensionError{Expected: e.embedder.Dimensions(), Got: h.Dimensions})
	}
	if h.Metric != string(e.vectorIndex.Metric()) {
		e.logger.Warn("snapshot metric differs from index metric",
			zap.String("snapshot", h.Metric), zap.String("index", string(e.vectorIndex.Metric())))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	count, err := e.storage.Count(ctx)
	if err != nil {
		return 0, models.WrapError(op, err)
	}
	if count != 0 || e.vectorIndex.Size() != 0 {
		return 0, models.WrapError(op, fmt.Errorf("%w: restore needs an empty engine, have %d documents", models.ErrInvalidArgument, count))
	}

	restored := 0
	for {
		doc, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return restored, models.WrapError(op, fmt.Errorf("%w: %w", models.ErrInvalidInput, err))
		}
		prepared, err := e.prepare(doc)
		if err != nil {
			return restored, models.WrapError(op, err)
		}
		if err := e.addLocked(ctx, op, prepared); err != nil {
			return restored, err
		}
		restored++
	}
	e.logger.Info("snapshot restored", zap.Int("documents", restored))
	return restored, nil
}
