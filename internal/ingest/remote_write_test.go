package ingest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"

	"github.com/hyperjump/tsrag/internal/models"
)

type recordingAdder struct {
	inputs []*models.DocumentInput
	err    error
}

func (r *recordingAdder) AddSeries(ctx context.Context, in *models.DocumentInput) (*models.Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.inputs = append(r.inputs, in)
	return &models.Document{ID: in.ID}, nil
}

func encode(t *testing.T, req *prompb.WriteRequest) []byte {
	t.Helper()
	data, err := req.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	return snappy.Encode(nil, data)
}

func testRequest() *prompb.WriteRequest {
	return &prompb.WriteRequest{
		Timeseries: []prompb.TimeSeries{
			{
				Labels: []prompb.Label{{Name: "__name__", Value: "cpu"}, {Name: "host", Value: "a"}},
				Samples: []prompb.Sample{
					{Value: 3, Timestamp: 3000},
					{Value: 1, Timestamp: 1000},
					{Value: math.NaN(), Timestamp: 4000},
					{Value: 2, Timestamp: 2000},
				},
			},
			{
				Labels:  []prompb.Label{{Name: "__name__", Value: "stale"}},
				Samples: []prompb.Sample{{Value: math.NaN(), Timestamp: 1}},
			},
		},
	}
}

func TestRemoteWriter_Write(t *testing.T) {
	adder := &recordingAdder{}
	w := NewRemoteWriter(adder, nil)
	res, err := w.Write(context.Background(), encode(t, testRequest()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 1 || res.Skipped != 1 || len(res.IDs) != 1 {
		t.Fatalf("result = %+v", res)
	}
	in := adder.inputs[0]
	if len(in.Series) != 3 || in.Series[0] != 1 || in.Series[2] != 3 {
		t.Errorf("series should be ordered by timestamp without NaN: %v", in.Series)
	}
	if in.Metadata["host"] != "a" || in.Metadata["__name__"] != "cpu" || in.Metadata["start_ms"] != int64(1000) {
		t.Errorf("metadata = %v", in.Metadata)
	}
}

func TestRemoteWriter_Errors(t *testing.T) {
	w := NewRemoteWriter(&recordingAdder{}, nil)
	if _, err := w.Write(context.Background(), []byte("not snappy")); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("garbage body = %v", err)
	}
	if _, err := w.Write(context.Background(), snappy.Encode(nil, []byte{0xff, 0xff})); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("bad protobuf = %v", err)
	}
	boom := errors.New("boom")
	w = NewRemoteWriter(&recordingAdder{err: boom}, nil)
	if _, err := w.Write(context.Background(), encode(t, testRequest())); !errors.Is(err, boom) {
		t.Errorf("adder error = %v", err)
	}
}

func TestSeriesID(t *testing.T) {
	a := SeriesID([]prompb.Label{{Name: "x", Value: "1"}, {Name: "y", Value: "2"}})
	b := SeriesID([]prompb.Label{{Name: "y", Value: "2"}, {Name: "x", Value: "1"}})
	c := SeriesID([]prompb.Label{{Name: "x", Value: "1"}, {Name: "y", Value: "3"}})
	if a != b {
		t.Errorf("label order should not matter: %s != %s", a, b)
	}
	if a == c {
		t.Error("different label sets should produce different ids")
	}
	if a[:5] != "prom:" {
		t.Errorf("id = %s", a)
	}
}
