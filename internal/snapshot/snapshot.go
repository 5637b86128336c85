// Package snapshot reads and writes engine snapshots: a snappy framed stream of
// JSON lines holding a header followed by one record per document.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"

	"github.com/hyperjump/tsrag/internal/models"
)

// Format identifies snapshot streams.
const (
	Format  = "tsrag-snapshot"
	Version = 1
)

// ErrBadSnapshot is returned for streams that are not snapshots or are truncated.
var ErrBadSnapshot = errors.New("bad snapshot")

// Header describes the embedding space of the documents that follow it.
type Header struct {
	Format      string    `json:"format"`
	Version     int       `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	Dimensions  int       `json:"dimensions"`
	Metric      string    `json:"metric"`
	IndexType   string    `json:"index_type,omitempty"`
	Count       int       `json:"count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Writer streams documents into a snapshot.
type Writer struct {
	sw      *snappy.Writer
	enc     *json.Encoder
	written int
	want    int
}

// NewWriter writes h to w and returns a Writer for the documents.
// h.Count documents must be written before Close.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	h.Format = Format
	h.Version = Version
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	sw := snappy.NewBufferedWriter(w)
	enc := json.NewEncoder(sw)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write snapshot header: %w", err)
	}
	return &Writer{sw: sw, enc: enc, want: h.Count}, nil
}

// Write appends doc to the snapshot.
func (w *Writer) Write(doc *models.Document) error {
	if err := w.enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write document %q: %w", doc.ID, err)
	}
	w.written++
	return nil
}

// Close flushes the stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.written != w.want {
		_ = w.sw.Close()
		return fmt.Errorf("%w: header declared %d documents, wrote %d", ErrBadSnapshot, w.want, w.written)
	}
	return w.sw.Close()
}

// Reader iterates the documents of a snapshot.
type Reader struct {
	dec    *json.Decoder
	header Header
	read   int
}

// NewReader reads and checks the snapshot header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := json.NewDecoder(bufio.NewReader(snappy.NewReader(r)))
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("%w: unknown format %q", ErrBadSnapshot, h.Format)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the snapshot header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next document, or io.EOF after the last one.
func (r *Reader) Next() (*models.Document, error) {
	var doc models.Document
	if err := r.dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			if r.read != r.header.Count {
				return nil, fmt.Errorf("%w: expected %d documents, got %d", ErrBadSnapshot, r.header.Count, r.read)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: document %d: %v", ErrBadSnapshot, r.read, err)
	}
	r.read++
	return &doc, nil
}
