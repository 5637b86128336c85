package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/analytics"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/vector"
)

// Search returns the k documents nearest to the query, nearest first. A raw
// series is embedded with the engine's embedder. Searching an empty corpus
// returns no results and no error.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	const op = "engine.Search"
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, models.WrapError(op, err)
	}
	vec := query.Embedding
	if len(query.Series) > 0 {
		var err error
		if vec, err = e.embedder.Embed(ctx, query.Series); err != nil {
			return nil, models.WrapError(op, err)
		}
	}
	if query.MetadataQuery != "" && e.metadataIndex == nil {
		return nil, models.WrapError(op, fmt.Errorf("%w: metadata queries are not enabled", models.ErrInvalidArgument))
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var filter vector.Filter
	if query.MetadataQuery != "" {
		matches, err := e.metadataIndex.Match(ctx, query.MetadataQuery)
		if err != nil {
			return nil, models.WrapError(op, fmt.Errorf("%w: metadata query: %w", models.ErrInvalidArgument, err))
		}
		filter = func(id string) bool {
			_, ok := matches[id]
			return ok
		}
	}

	hits, err := e.vectorIndex.Search(ctx, vec, query.K, filter)
	if err != nil {
		return nil, models.WrapError(op, err)
	}

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(hits)),
		K:       query.K,
		Corpus:  e.vectorIndex.Size(),
	}
	for i, hit := range hits {
		doc, err := e.storage.Get(ctx, hit.ID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, e.inconsistency(op, "indexed document %q is missing from the store", hit.ID)
		}
		if err != nil {
			return nil, models.WrapError(op, err)
		}
		result := &models.SearchResult{
			ID:       hit.ID,
			Distance: hit.Distance,
			Metadata: doc.Metadata,
			Rank:     i + 1,
		}
		if query.IncludeData {
			result.Data = doc.Data
		}
		if query.IncludeAnalytics && len(doc.Data) > 0 {
			result.Analytics = analytics.Summarize(doc.Data, e.analytics)
		}
		response.Results = append(response.Results, result)
	}
	response.Total = len(response.Results)
	response.QueryTime = time.Since(startTime).Milliseconds()

	e.logger.Debug("search",
		zap.Int("k", query.K),
		zap.Int("results", response.Total),
		zap.Bool("filtered", filter != nil),
		zap.Int64("ms", response.QueryTime))
	return response, nil
}

// GetDocument returns a copy of the stored document or an error matching ErrNotFound.
func (e *Engine) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, err := e.storage.Get(ctx, id)
	if err != nil {
		return nil, models.WrapError("engine.GetDocument", err)
	}
	return doc, nil
}

// ListIDs returns the stored ids in insertion order, snapshotted at call time.
func (e *Engine) ListIDs(ctx context.Context) (iter.Seq[string], error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.storage.ListIDs(ctx)
}

// Count returns the number of stored documents.
func (e *Engine) Count(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.storage.Count(ctx)
}

// Analyze computes analytics for a stored document's retained series.
func (e *Engine) Analyze(ctx context.Context, id string) (*models.Analytics, error) {
	const op = "engine.Analyze"
	doc, err := e.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(doc.Data) == 0 {
		return nil, models.WrapError(op, fmt.Errorf("%w: document %q has no retained series", models.ErrInvalidArgument, id))
	}
	return analytics.Summarize(doc.Data, e.analytics), nil
}
