package vector

import (
	"fmt"

	"github.com/hyperjump/tsrag/internal/models"
)

func validateBatch(ids []string, vectors [][]float32, dimensions int, exists func(string) bool) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: ids and vectors length mismatch (%d vs %d)", models.ErrInvalidArgument, len(ids), len(vectors))
	}
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id at position %d", models.ErrInvalidArgument, i)
		}
		if err := models.CheckDimension(vectors[i], dimensions); err != nil {
			return fmt.Errorf("vector %q: %w", id, err)
		}
		if _, dup := seen[id]; dup || exists(id) {
			return fmt.Errorf("vector %q: %w", id, models.ErrAlreadyExists)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateQuery(query []float32, k, dimensions int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	if err := models.CheckDimension(query, dimensions); err != nil {
		return fmt.Errorf("%w: query: %w", models.ErrInvalidArgument, err)
	}
	return nil
}
