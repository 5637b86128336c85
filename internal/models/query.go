package models

import "fmt"

const (
	// DefaultK is used when a query leaves K unset.
	DefaultK = 5
	// MaxK is the default limit on K for requests arriving over HTTP.
	MaxK = 100
)

// SearchQuery represents a similarity search over the indexed series.
// Exactly one of Series or Embedding must be set.
type SearchQuery struct {
	Series           []float64 `json:"series,omitempty"`
	Embedding        []float32 `json:"embedding,omitempty"`
	K                int       `json:"k,omitempty"`
	IncludeData      bool      `json:"include_data,omitempty"`
	IncludeAnalytics bool      `json:"include_analytics,omitempty"`
	// MetadataQuery is a query string evaluated against document metadata
	// (e.g. `sensor:temp* +site:berlin`); only matching documents are ranked.
	MetadataQuery string `json:"metadata_query,omitempty"`
}

// Validate checks the query and fills in K when unset. K is not capped here;
// the index clamps it to the corpus size.
// A negative K is rejected instead of being defaulted, so callers can tell a bad query from an empty result.
func (q *SearchQuery) Validate(defaultK int) error {
	if len(q.Series) == 0 && len(q.Embedding) == 0 {
		return fmt.Errorf("%w: query needs a series or an embedding", ErrInvalidInput)
	}
	if len(q.Series) > 0 && len(q.Embedding) > 0 {
		return fmt.Errorf("%w: query must not set both series and embedding", ErrInvalidInput)
	}
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if q.K < 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, q.K)
	}
	if q.K == 0 {
		q.K = defaultK
	}
	return nil
}
