// Package keyword indexes document metadata for query-string filtering of similarity search.
package keyword

import "context"

// MetadataIndex finds documents whose metadata matches a query string.
type MetadataIndex interface {
	// Index adds or replaces the metadata of id.
	Index(ctx context.Context, id string, metadata map[string]interface{}) error
	// IndexBatch indexes many documents in one batch.
	IndexBatch(ctx context.Context, docs map[string]map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	// Match returns every id whose metadata satisfies query.
	Match(ctx context.Context, query string) (map[string]struct{}, error)
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}
