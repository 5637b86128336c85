package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/models"
)

// undoStack records compensating actions for a multi-step write.
type undoStack []func(ctx context.Context) error

func (u *undoStack) push(f func(ctx context.Context) error) {
	*u = append(*u, f)
}

// rollback runs the recorded actions newest first. Failure to roll back leaves
// store and index out of sync and is reported as ErrInternalConsistency.
func (e *Engine) rollback(ctx context.Context, op string, cause error, undo undoStack) error {
	ctx = context.WithoutCancel(ctx)
	var failed []error
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return models.WrapError(op, cause)
	}
	err := models.WrapError(op, errors.Join(
		cause,
		fmt.Errorf("%w: rollback failed: %w", models.ErrInternalConsistency, errors.Join(failed...)),
	))
	e.logger.Error("rollback failed", zap.String("op", op), zap.Error(err))
	return err
}

// AddDocument validates doc and writes it to the store and index as one unit.
// If any step fails the earlier steps are undone.
func (e *Engine) AddDocument(ctx context.Context, doc *models.Document) error {
	const op = "engine.AddDocument"
	prepared, err := e.prepare(doc)
	if err != nil {
		return models.WrapError(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(ctx, op, prepared)
}

// AddSeries embeds in.Series and adds the resulting document. An empty id is
// replaced by a generated UUID.
func (e *Engine) AddSeries(ctx context.Context, in *models.DocumentInput) (*models.Document, error) {
	const op = "engine.AddSeries"
	if in == nil {
		return nil, models.WrapError(op, fmt.Errorf("%w: nil input", models.ErrInvalidInput))
	}
	vec, err := e.embedder.Embed(ctx, in.Series)
	if err != nil {
		return nil, models.WrapError(op, err)
	}
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	doc := &models.Document{
		ID:          id,
		Metadata:    in.Metadata,
		Embedding:   vec,
		Fingerprint: e.embedder.Fingerprint(),
	}
	if in.RetainData() {
		doc.Data = append([]float64(nil), in.Series...)
	}
	prepared, err := e.prepare(doc)
	if err != nil {
		return nil, models.WrapError(op, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.addLocked(ctx, op, prepared); err != nil {
		return nil, err
	}
	return prepared.Clone(), nil
}

func (e *Engine) prepare(doc *models.Document) (*models.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", models.ErrInvalidDocument)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: empty id", models.ErrInvalidDocument)
	}
	if err := models.CheckDimension(doc.Embedding, e.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("%w: document %q: %w", models.ErrInvalidDocument, doc.ID, err)
	}
	for i, v := range doc.Embedding {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: document %q: non-finite embedding value at %d", models.ErrInvalidDocument, doc.ID, i)
		}
	}
	fp := e.embedder.Fingerprint()
	if doc.Fingerprint != "" && doc.Fingerprint != fp {
		return nil, fmt.Errorf("%w: document %q was embedded with %q, engine uses %q",
			models.ErrInvalidDocument, doc.ID, doc.Fingerprint, fp)
	}
	out := doc.Clone()
	out.Fingerprint = fp
	return out, nil
}

func (e *Engine) addLocked(ctx context.Context, op string, doc *models.Document) error {
	existing, err := e.storage.Get(ctx, doc.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		existing = nil
		if e.vectorIndex.Contains(doc.ID) {
			return e.inconsistency(op, "document %q is indexed but not stored", doc.ID)
		}
	case err != nil:
		return models.WrapError(op, err)
	}
	if existing != nil && e.policy == PolicyReject {
		return models.WrapError(op, fmt.Errorf("document %q: %w", doc.ID, models.ErrAlreadyExists))
	}

	var undo undoStack
	if existing != nil {
		removed, err := e.vectorIndex.Remove(ctx, doc.ID)
		if removed {
			undo.push(func(ctx context.Context) error {
				return e.vectorIndex.Add(ctx, []string{existing.ID}, [][]float32{existing.Embedding})
			})
		}
		if err != nil {
			return e.rollback(ctx, op, err, undo)
		}
		if !removed {
			return e.inconsistency(op, "document %q is stored but not indexed", doc.ID)
		}
	}

	if err := e.storage.Put(ctx, doc); err != nil {
		return e.rollback(ctx, op, err, undo)
	}
	undo.push(func(ctx context.Context) error {
		if existing != nil {
			return e.storage.Put(ctx, existing)
		}
		_, err := e.storage.Delete(ctx, doc.ID)
		return err
	})

	if err := e.vectorIndex.Add(ctx, []string{doc.ID}, [][]float32{doc.Embedding}); err != nil {
		return e.rollback(ctx, op, err, undo)
	}
	undo.push(func(ctx context.Context) error {
		_, err := e.vectorIndex.Remove(ctx, doc.ID)
		return err
	})

	if e.metadataIndex != nil {
		if err := e.metadataIndex.Index(ctx, doc.ID, doc.Metadata); err != nil {
			return e.rollback(ctx, op, fmt.Errorf("metadata index: %w", err), undo)
		}
	}

	e.logger.Debug("document added",
		zap.String("id", doc.ID),
		zap.Bool("replaced", existing != nil),
		zap.Int("points", len(doc.Data)))
	return nil
}

// RemoveDocument removes id from the store and index as one unit and reports
// whether it existed. A missing id is not an error.
func (e *Engine) RemoveDocument(ctx context.Context, id string) (bool, error) {
	const op = "engine.RemoveDocument"
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(ctx, op, id)
}

func (e *Engine) removeLocked(ctx context.Context, op, id string) (bool, error) {
	existing, err := e.storage.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		if e.vectorIndex.Contains(id) {
			return false, e.inconsistency(op, "document %q is indexed but not stored", id)
		}
		return false, nil
	}
	if err != nil {
		return false, models.WrapError(op, err)
	}

	var undo undoStack
	removed, err := e.vectorIndex.Remove(ctx, id)
	if removed {
		undo.push(func(ctx context.Context) error {
			return e.vectorIndex.Add(ctx, []string{existing.ID}, [][]float32{existing.Embedding})
		})
	}
	if err != nil {
		return false, e.rollback(ctx, op, err, undo)
	}
	if !removed {
		return false, e.inconsistency(op, "document %q is stored but not indexed", id)
	}

	if _, err := e.storage.Delete(ctx, id); err != nil {
		return false, e.rollback(ctx, op, err, undo)
	}
	undo.push(func(ctx context.Context) error {
		return e.storage.Put(ctx, existing)
	})

	if e.metadataIndex != nil {
		if err := e.metadataIndex.Delete(ctx, id); err != nil {
			return false, e.rollback(ctx, op, fmt.Errorf("metadata index: %w", err), undo)
		}
	}
	e.logger.Debug("document removed", zap.String("id", id))
	return true, nil
}
