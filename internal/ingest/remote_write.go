// Package ingest turns external series sources into documents.
package ingest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// SeriesAdder stores a document built from a raw series.
type SeriesAdder interface {
	AddSeries(ctx context.Context, in *models.DocumentInput) (*models.Document, error)
}

// RemoteWriteResult summarizes one remote write request.
type RemoteWriteResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	IDs     []string `json:"ids"`
}

// RemoteWriter ingests Prometheus remote write requests. Every time series in a
// request becomes one document keyed by its label set.
type RemoteWriter struct {
	adder  SeriesAdder
	logger *zap.Logger
}

// NewRemoteWriter returns a RemoteWriter that adds documents through adder.
func NewRemoteWriter(adder SeriesAdder, logger *zap.Logger) *RemoteWriter {
	return &RemoteWriter{adder: adder, logger: utils.OrNop(logger)}
}

// DecodeRemoteWrite decodes a snappy compressed protobuf WriteRequest.
func DecodeRemoteWrite(body []byte) (*prompb.WriteRequest, error) {
	decoded, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", models.ErrInvalidInput, err)
	}
	var req prompb.WriteRequest
	if err := req.Unmarshal(decoded); err != nil {
		return nil, fmt.Errorf("%w: write request: %v", models.ErrInvalidInput, err)
	}
	return &req, nil
}

// Write decodes body and adds one document per time series. Series without
// finite samples are skipped.
func (w *RemoteWriter) Write(ctx context.Context, body []byte) (*RemoteWriteResult, error) {
	req, err := DecodeRemoteWrite(body)
	if err != nil {
		return nil, err
	}
	inputs, skipped := Inputs(req)
	result := &RemoteWriteResult{Skipped: skipped, IDs: make([]string, 0, len(inputs))}
	for _, in := range inputs {
		if _, err := w.adder.AddSeries(ctx, in); err != nil {
			return result, fmt.Errorf("series %s: %w", in.ID, err)
		}
		result.Added++
		result.IDs = append(result.IDs, in.ID)
	}
	w.logger.Debug("remote write ingested", zap.Int("added", result.Added), zap.Int("skipped", skipped))
	return result, nil
}

// Inputs converts a WriteRequest into document inputs and reports how many
// series were skipped. Samples are ordered by timestamp and NaN staleness
// markers are dropped.
func Inputs(req *prompb.WriteRequest) ([]*models.DocumentInput, int) {
	inputs := make([]*models.DocumentInput, 0, len(req.Timeseries))
	skipped := 0
	for i := range req.Timeseries {
		ts := &req.Timeseries[i]
		samples := make([]prompb.Sample, 0, len(ts.Samples))
		for _, s := range ts.Samples {
			if !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0) {
				samples = append(samples, s)
			}
		}
		if len(samples) == 0 {
			skipped++
			continue
		}
		sort.SliceStable(samples, func(a, b int) bool { return samples[a].Timestamp < samples[b].Timestamp })

		series := make([]float64, len(samples))
		for j, s := range samples {
			series[j] = s.Value
		}
		metadata := make(map[string]interface{}, len(ts.Labels)+3)
		for _, l := range ts.Labels {
			metadata[l.Name] = l.Value
		}
		metadata["source"] = "prometheus"
		metadata["start_ms"] = samples[0].Timestamp
		metadata["end_ms"] = samples[len(samples)-1].Timestamp
		inputs = append(inputs, &models.DocumentInput{
			ID:       SeriesID(ts.Labels),
			Series:   series,
			Metadata: metadata,
		})
	}
	return inputs, skipped
}

// SeriesID derives a stable document id from a label set, independent of label order.
func SeriesID(labels []prompb.Label) string {
	pairs := make([]string, len(labels))
	for i, l := range labels {
		pairs[i] = l.Name + "=" + strconv.Quote(l.Value)
	}
	sort.Strings(pairs)
	return "prom:" + strconv.FormatUint(xxhash.Sum64String(strings.Join(pairs, ",")), 16)
}
