// Package extract reads numeric series out of tabular files (CSV and XLSX).
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/tsrag/internal/models"
)

// Series is a column of values read from a file.
type Series struct {
	Values []float64
	// Column is the header of the selected column, or its 1-based position when there is no header.
	Column string
	// Skipped counts rows whose cell in the selected column was empty or not a number.
	Skipped int
}

// Extractor reads series from tabular files.
type Extractor struct {
	column string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithColumn selects the column by header name (case-insensitive). By default
// the first numeric column is used.
func WithColumn(name string) Option {
	return func(e *Extractor) { e.column = strings.TrimSpace(name) }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether ext (with leading dot) can be extracted.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".csv", ".tsv", ".txt", ".xlsx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its series.
func (e *Extractor) Extract(path string) (*Series, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts a series from content based on the given extension.
// ext should include the leading dot (e.g. ".csv").
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Series, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(ext) {
	case ".xlsx":
		rows, err = readExcel(content)
	case ".tsv":
		rows, err = readDelimited(content, '\t')
	case ".csv", ".txt", "":
		rows, err = readDelimited(content, 0)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return e.fromRows(rows)
}

func (e *Extractor) fromRows(rows [][]string) (*Series, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", models.ErrInvalidInput)
	}

	var header []string
	if !allNumeric(rows[0]) {
		header, rows = rows[0], rows[1:]
	}

	col := -1
	if e.column != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), e.column) {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("%w: column %q not found", models.ErrInvalidInput, e.column)
		}
	} else {
		col = firstNumericColumn(rows)
		if col < 0 {
			return nil, fmt.Errorf("%w: no numeric column", models.ErrInvalidInput)
		}
	}

	s := &Series{Column: strconv.Itoa(col + 1)}
	if col < len(header) && strings.TrimSpace(header[col]) != "" {
		s.Column = strings.TrimSpace(header[col])
	}
	for _, row := range rows {
		v, ok := cellFloat(row, col)
		if !ok {
			s.Skipped++
			continue
		}
		s.Values = append(s.Values, v)
	}
	if len(s.Values) == 0 {
		return nil, fmt.Errorf("%w: column %s has no numeric values", models.ErrInvalidInput, s.Column)
	}
	return s, nil
}

func cellFloat(row []string, col int) (float64, bool) {
	if col >= len(row) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// allNumeric reports whether every non-empty cell of row parses as a number.
func allNumeric(row []string) bool {
	for i, cell := range row {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		if _, ok := cellFloat(row, i); !ok {
			return false
		}
	}
	return true
}

// firstNumericColumn returns the first column whose first non-empty cell is a number.
func firstNumericColumn(rows [][]string) int {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for col := 0; col < width; col++ {
		for _, row := range rows {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			if _, ok := cellFloat(row, col); ok {
				return col
			}
			break
		}
	}
	return -1
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
