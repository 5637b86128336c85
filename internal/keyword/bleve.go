package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const matchPageSize = 1000

// BleveIndex implements MetadataIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps the index in memory.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newMetadataMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// newMetadataMapping indexes every metadata field dynamically. Strings use the
// standard analyzer (lowercase + tokenize, no stemming) so `sensor:temp` matches "Temp".
func newMetadataMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = true

	im.AddDocumentMapping("series", docMapping)
	im.DefaultType = "series"
	im.DefaultMapping = docMapping
	return im
}

func metadataDoc(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return map[string]interface{}{}
	}
	return metadata
}

// Index indexes the metadata of a document.
func (b *BleveIndex) Index(ctx context.Context, id string, metadata map[string]interface{}) error {
	return b.index.Index(id, metadataDoc(metadata))
}

// IndexBatch indexes many documents in a single Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs map[string]map[string]interface{}) error {
	batch := b.index.NewBatch()
	for id, metadata := range docs {
		if err := batch.Index(id, metadataDoc(metadata)); err != nil {
			return fmt.Errorf("batch index %q: %w", id, err)
		}
	}
	return b.index.Batch(batch)
}

// Match runs a query string query and pages through every hit.
func (b *BleveIndex) Match(ctx context.Context, query string) (map[string]struct{}, error) {
	q := bleve.NewQueryStringQuery(query)
	ids := make(map[string]struct{})
	for from := 0; ; from += matchPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := bleve.NewSearchRequestOptions(q, matchPageSize, from, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve metadata query failed: %w", err)
		}
		for _, hit := range res.Hits {
			ids[hit.ID] = struct{}{}
		}
		if len(res.Hits) < matchPageSize {
			return ids, nil
		}
	}
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
