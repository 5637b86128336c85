// Package models defines core data structures for series documents, queries, and search results.
package models

import "time"

// Document is a stored series with its metadata and embedding.
type Document struct {
	ID          string                 `json:"id" db:"id"`
	Data        []float64              `json:"data,omitempty" db:"data"`
	Metadata    map[string]interface{} `json:"metadata" db:"metadata"`
	Embedding   []float32              `json:"embedding,omitempty" db:"embedding"`
	Fingerprint string                 `json:"fingerprint,omitempty" db:"fingerprint"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// Clone returns a deep copy of the document so callers cannot mutate stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Data != nil {
		out.Data = append([]float64(nil), d.Data...)
	}
	if d.Embedding != nil {
		out.Embedding = append([]float32(nil), d.Embedding...)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// DocumentInput is the input for creating or replacing a document from a raw series.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Series   []float64              `json:"series"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// KeepData controls whether the raw series is retained with the document.
	KeepData *bool `json:"keep_data,omitempty"`
}

// RetainData reports whether the raw series should be stored (default true).
func (in *DocumentInput) RetainData() bool {
	return in.KeepData == nil || *in.KeepData
}
