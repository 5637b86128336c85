// Package indexer turns series files into engine documents.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/fileid"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// Engine is the part of the retrieval engine the indexer writes through.
type Engine interface {
	AddSeries(ctx context.Context, in *models.DocumentInput) (*models.Document, error)
	RemoveDocument(ctx context.Context, id string) (bool, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Indexer indexes series files. The document ID is derived from the absolute
// path, so re-indexing a file replaces its document.
type Indexer struct {
	engine    Engine
	extractor *extract.Extractor
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. extractor may be nil for the default extractor.
func NewIndexer(engine Engine, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{engine: engine, extractor: extractor}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
	metaKeyFileName    = "file_name"
	metaKeyColumn      = "column"
)

// IndexFile extracts the series in path and stores it. It reports false
// without re-indexing when the stored document has the same mtime and size.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := fileid.FileDocID(absPath)
	if idx.unchanged(ctx, absPath, docID, info) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return false, nil
	}

	series, err := idx.extractor.Extract(absPath)
	if err != nil {
		return false, fmt.Errorf("extract %s: %w", filepath.Base(absPath), err)
	}
	input := &models.DocumentInput{
		ID:     docID,
		Series: series.Values,
		Metadata: map[string]interface{}{
			metaKeySourcePath: absPath,
			metaKeyFileName:   filepath.Base(absPath),
			metaKeyColumn:     series.Column,
			// Stored as strings: UnixNano exceeds float64 precision after a JSON round trip.
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	if _, err := idx.engine.AddSeries(ctx, input); err != nil {
		return false, err
	}
	idx.logger.Debug("indexer file indexed",
		zap.String("path", absPath),
		zap.String("doc_id", docID),
		zap.Int("points", len(series.Values)),
		zap.Int("skipped_rows", series.Skipped))
	return true, nil
}

// RemoveFile removes the document of path and reports whether it existed.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	removed, err := idx.engine.RemoveDocument(ctx, fileid.FileDocID(absPath))
	if err != nil {
		return false, err
	}
	if removed {
		idx.logger.Debug("indexer file removed", zap.String("path", absPath))
	}
	return removed, nil
}

func (idx *Indexer) unchanged(ctx context.Context, absPath, docID string, info os.FileInfo) bool {
	doc, err := idx.engine.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return false
	}
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Summary counts the outcome of a directory run.
type Summary struct {
	Indexed   int
	Unchanged int
	Failed    int
}

// IndexDirectory indexes every file under dir matched by walker. Files that
// fail are logged and counted; the returned error joins their errors.
// progress, when non-nil, is called after each file.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, walker *extract.Walker, progress func(done, total int)) (Summary, error) {
	var sum Summary
	info, err := os.Stat(dir)
	if err != nil {
		return sum, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return sum, fmt.Errorf("not a directory: %s", dir)
	}
	if walker == nil {
		walker = extract.NewWalker(nil, nil)
	}
	files, err := walker.Walk(dir)
	if err != nil {
		return sum, fmt.Errorf("walk %s: %w", dir, err)
	}

	var errs []error
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		changed, err := idx.IndexFile(ctx, f.Path)
		switch {
		case err != nil:
			sum.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, err))
			idx.logger.Warn("indexer failed to index file", zap.String("path", f.Path), zap.Error(err))
		case changed:
			sum.Indexed++
		default:
			sum.Unchanged++
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}
	return sum, errors.Join(errs...)
}
