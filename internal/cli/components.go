package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/analytics"
	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/internal/embedding"
	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/indexer"
	"github.com/hyperjump/tsrag/internal/keyword"
	"github.com/hyperjump/tsrag/internal/search"
	"github.com/hyperjump/tsrag/internal/snapshot"
	"github.com/hyperjump/tsrag/internal/storage"
	"github.com/hyperjump/tsrag/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config        *config.Config
	Logger        *zap.Logger
	Storage       storage.Storage
	Embedder      embedding.Embedder
	VectorIndex   vector.VectorIndex
	MetadataIndex keyword.MetadataIndex
	Engine        *search.Engine
	Indexer       *indexer.Indexer
	// Snapshots is nil when neither snapshot_path nor an S3 bucket is configured.
	Snapshots *snapshot.Manager
}

// Close releases every component. Errors are logged.
func (c *Components) Close() {
	closers := []struct {
		name string
		fn   func() error
	}{
		{"storage", closerOf(c.Storage)},
		{"embedder", closerOf(c.Embedder)},
		{"vector index", closerOf(c.VectorIndex)},
		{"metadata index", closerOf(c.MetadataIndex)},
	}
	for _, cl := range closers {
		if cl.fn == nil {
			continue
		}
		if err := cl.fn(); err != nil {
			c.Logger.Warn("close failed", zap.String("component", cl.name), zap.Error(err))
		}
	}
}

func closerOf(v interface{ Close() error }) func() error {
	if v == nil {
		return nil
	}
	return v.Close
}

// Persist saves a snapshot when documents would otherwise be lost on exit,
// i.e. the store is in memory and snapshots are configured.
func (c *Components) Persist(ctx context.Context) error {
	if c.Storage.Persistent() || c.Snapshots == nil {
		return nil
	}
	_, err := c.Snapshots.Save(ctx)
	return err
}

// initializeComponents builds the engine from cfg. A persistent store is
// replayed into the vector index; an in-memory store is restored from the
// configured snapshot when one exists.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	features, err := embedding.ParseFeatures(cfg.Embedding.Features)
	if err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	embedder, err := embedding.NewResampleEmbedder(embedding.Config{
		TargetLength: cfg.Embedding.TargetLength,
		Features:     features,
		Normalize:    cfg.Embedding.Normalize,
	}, embedding.WithCache(cfg.Embedding.CacheSize))
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder
	dims := embedder.Dimensions()

	if cfg.Storage.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	c.Storage, err = storage.NewStorage(cfg.Storage.Backend, cfg.Storage.DatabasePath, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	indexOpts := []vector.Option{
		vector.WithMetric(vector.Metric(cfg.Index.Metric)),
		vector.WithCompaction(cfg.Index.CompactRatio, cfg.Index.CompactMinSlots),
		vector.WithHNSW(cfg.Index.HNSW.M, cfg.Index.HNSW.EfConstruction, cfg.Index.HNSW.EfSearch, cfg.Index.HNSW.Seed),
	}
	c.VectorIndex, err = vector.NewVectorIndex(cfg.Index.Type, dims, indexOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized",
		zap.String("type", c.VectorIndex.Type()),
		zap.String("metric", string(c.VectorIndex.Metric())),
		zap.Int("dimensions", dims),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	metaIdx, err := keyword.NewBleveIndex("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata index: %w", err)
	}
	c.MetadataIndex = metaIdx

	c.Engine, err = search.NewEngine(c.Storage, c.Embedder, c.VectorIndex, &cfg.Search,
		search.WithLogger(logger),
		search.WithMetadataIndex(metaIdx),
		search.WithAnalytics(analytics.Params{
			AnomalyWindow:    cfg.Analytics.AnomalyWindow,
			AnomalyThreshold: cfg.Analytics.AnomalyThreshold,
			MaxPeriod:        cfg.Analytics.MaxPeriod,
			PatternWindow:    cfg.Analytics.PatternWindow,
			Patterns:         cfg.Analytics.Patterns,
		}))
	if err != nil {
		return nil, err
	}

	idxOpts := []indexer.IndexerOption{}
	if cfg.Debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	c.Indexer = indexer.NewIndexer(c.Engine, extract.NewExtractor(), idxOpts...)

	c.Snapshots, err = newSnapshotManager(ctx, cfg, c.Engine, logger)
	if err != nil {
		return nil, err
	}

	if c.Storage.Persistent() {
		n, err := c.Engine.Rebuild(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild index: %w", err)
		}
		logger.Info("index rebuilt from storage", zap.Int("documents", n))
	} else if c.Snapshots != nil {
		if _, err := c.Snapshots.Load(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}
	return c, nil
}

// newSnapshotManager prefers S3 when a bucket is configured and falls back to
// storage.snapshot_path.
func newSnapshotManager(ctx context.Context, cfg *config.Config, src snapshot.Source, logger *zap.Logger) (*snapshot.Manager, error) {
	s3cfg := cfg.Snapshot.S3
	if s3cfg.Enabled() {
		sink, err := snapshot.NewS3Sink(ctx, snapshot.S3Config{
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 snapshots: %w", err)
		}
		name := snapshot.DefaultName
		if cfg.Storage.SnapshotPath != "" {
			name = filepath.Base(cfg.Storage.SnapshotPath)
		}
		return snapshot.NewManager(src, sink, name, logger), nil
	}
	if cfg.Storage.SnapshotPath == "" {
		return nil, nil
	}
	sink, err := snapshot.NewFileSink(filepath.Dir(cfg.Storage.SnapshotPath))
	if err != nil {
		return nil, err
	}
	return snapshot.NewManager(src, sink, filepath.Base(cfg.Storage.SnapshotPath), logger), nil
}
