package models

// SearchResult is a single nearest-neighbor hit joined with its stored metadata.
type SearchResult struct {
	ID       string                 `json:"id"`
	Distance float64                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata"`
	// Data is only populated when the query asks for it.
	Data      []float64  `json:"data,omitempty"`
	Analytics *Analytics `json:"analytics,omitempty"`
	Rank      int        `json:"rank"`
}

// Analytics is the contextual summary attached to a result or returned per document.
type Analytics struct {
	Features    map[string]float64 `json:"features"`
	Periods     []int              `json:"seasonal_periods,omitempty"`
	Anomalies   []Anomaly          `json:"anomalies,omitempty"`
	Patterns    []Pattern          `json:"patterns,omitempty"`
	SeriesCount int                `json:"length"`
}

// Anomaly is a flagged sample and its raw value.
type Anomaly struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Pattern is the mean shape of a cluster of z-normalized windows and the
// fraction of windows in that cluster.
type Pattern struct {
	Pattern   []float64 `json:"pattern"`
	Frequency float64   `json:"frequency"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	K         int             `json:"k"`
	Corpus    int             `json:"corpus_size"`
	QueryTime int64           `json:"query_time_ms"`
}
