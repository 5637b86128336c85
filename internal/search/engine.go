// Package search provides the retrieval engine: the single writer of the
// document store, vector index and metadata index.
package search

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/analytics"
	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/internal/embedding"
	"github.com/hyperjump/tsrag/internal/keyword"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/storage"
	"github.com/hyperjump/tsrag/internal/vector"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// DuplicatePolicy decides what adding an existing id does.
type DuplicatePolicy string

const (
	// PolicyOverwrite replaces the document; the replacement takes a new insertion position.
	PolicyOverwrite DuplicatePolicy = "overwrite"
	// PolicyReject fails with ErrAlreadyExists.
	PolicyReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy parses a configured policy. Empty means overwrite.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case PolicyOverwrite, "":
		return PolicyOverwrite, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("%w: unknown duplicate policy %q", models.ErrInvalidArgument, s)
	}
}

// Engine embeds, stores, indexes and retrieves series documents.
//
// Store and index are treated as one resource: writers hold mu exclusively for
// the whole store+index mutation, so readers never observe a half-applied write.
type Engine struct {
	storage       storage.Storage
	embedder      embedding.Embedder
	vectorIndex   vector.VectorIndex
	metadataIndex keyword.MetadataIndex
	config        *config.SearchConfig
	policy        DuplicatePolicy
	analytics     analytics.Params
	logger        *zap.Logger
	mu            sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetadataIndex enables metadata queries through idx.
func WithMetadataIndex(idx keyword.MetadataIndex) Option {
	return func(e *Engine) { e.metadataIndex = idx }
}

// WithAnalytics sets the parameters used for result analytics.
func WithAnalytics(p analytics.Params) Option {
	return func(e *Engine) { e.analytics = p }
}

// NewEngine creates an engine over the given components. Their dimensions must agree.
// cfg may be nil for defaults.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	cfg *config.SearchConfig,
	opts ...Option,
) (*Engine, error) {
	if store == nil || embedder == nil || vectorIndex == nil {
		return nil, fmt.Errorf("%w: storage, embedder and vector index are required", models.ErrInvalidArgument)
	}
	dims := embedder.Dimensions()
	if store.Dimensions() != dims {
		return nil, fmt.Errorf("storage: %w", &models.DimensionError{Expected: dims, Got: store.Dimensions()})
	}
	if vectorIndex.Dimensions() != dims {
		return nil, fmt.Errorf("vector index: %w", &models.DimensionError{Expected: dims, Got: vectorIndex.Dimensions()})
	}
	if cfg == nil {
		cfg = &config.SearchConfig{DefaultK: models.DefaultK, MaxK: models.MaxK}
	}
	policy, err := ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		storage:     store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		config:      cfg,
		policy:      policy,
		analytics:   analytics.DefaultParams(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e, nil
}

// Dimensions returns the embedding dimension shared by every component.
func (e *Engine) Dimensions() int {
	return e.embedder.Dimensions()
}

// Fingerprint returns the embedder configuration fingerprint.
func (e *Engine) Fingerprint() string {
	return e.embedder.Fingerprint()
}

// Policy returns the duplicate id policy.
func (e *Engine) Policy() DuplicatePolicy {
	return e.policy
}

// inconsistency logs and returns an ErrInternalConsistency error.
func (e *Engine) inconsistency(op, format string, args ...interface{}) error {
	err := models.WrapError(op, fmt.Errorf("%w: %s", models.ErrInternalConsistency, fmt.Sprintf(format, args...)))
	e.logger.Error("store and index out of sync", zap.String("op", op), zap.Error(err))
	return err
}
