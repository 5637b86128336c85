package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/internal/embedding"
	"github.com/hyperjump/tsrag/internal/keyword"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/storage"
	"github.com/hyperjump/tsrag/internal/vector"
)

var errBoom = errors.New("boom")

// flakyIndex fails the next Add, or every Remove, on demand.
type flakyIndex struct {
	vector.VectorIndex
	failAdd    bool
	failRemove bool
}

func (f *flakyIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if f.failAdd {
		f.failAdd = false
		return errBoom
	}
	return f.VectorIndex.Add(ctx, ids, vectors)
}

func (f *flakyIndex) Remove(ctx context.Context, id string) (bool, error) {
	if f.failRemove {
		return false, errBoom
	}
	return f.VectorIndex.Remove(ctx, id)
}

// flakyStore fails Put or Delete on demand.
type flakyStore struct {
	storage.Storage
	failPut    bool
	failDelete bool
}

func (f *flakyStore) Put(ctx context.Context, doc *models.Document) error {
	if f.failPut {
		return errBoom
	}
	return f.Storage.Put(ctx, doc)
}

func (f *flakyStore) Delete(ctx context.Context, id string) (bool, error) {
	if f.failDelete {
		return false, errBoom
	}
	return f.Storage.Delete(ctx, id)
}

type testEngine struct {
	*Engine
	store *flakyStore
	index *flakyIndex
	emb   *embedding.ResampleEmbedder
}

func newTestEngine(t *testing.T, policy string, opts ...Option) *testEngine {
	t.Helper()
	emb, err := embedding.NewResampleEmbedder(embedding.Config{TargetLength: 16, Features: embedding.DefaultFeatures})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewMemoryIndex(emb.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	store := &flakyStore{Storage: storage.NewMemoryStorage(emb.Dimensions())}
	index := &flakyIndex{VectorIndex: idx}
	cfg := &config.SearchConfig{DefaultK: 5, MaxK: 100, DuplicatePolicy: policy}
	e, err := NewEngine(store, emb, index, cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return &testEngine{Engine: e, store: store, index: index, emb: emb}
}

func sineSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
	}
	return out
}

func squareSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < n/2 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func (te *testEngine) mustAdd(t *testing.T, id string, series []float64, metadata map[string]interface{}) {
	t.Helper()
	if _, err := te.AddSeries(context.Background(), &models.DocumentInput{ID: id, Series: series, Metadata: metadata}); err != nil {
		t.Fatalf("AddSeries(%s): %v", id, err)
	}
}

func (te *testEngine) assertConsistent(t *testing.T) {
	t.Helper()
	if err := te.CheckConsistency(context.Background()); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
}

func resultIDs(resp *models.SearchResponse) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.ID
	}
	return ids
}

func TestNewEngine_DimensionMismatch(t *testing.T) {
	emb, _ := embedding.NewResampleEmbedder(embedding.Config{TargetLength: 4})
	idx, _ := vector.NewMemoryIndex(4)
	if _, err := NewEngine(storage.NewMemoryStorage(5), emb, idx, nil); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("store mismatch: %v", err)
	}
	idx5, _ := vector.NewMemoryIndex(5)
	if _, err := NewEngine(storage.NewMemoryStorage(4), emb, idx5, nil); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("index mismatch: %v", err)
	}
	if _, err := NewEngine(storage.NewMemoryStorage(4), emb, idx, &config.SearchConfig{DuplicatePolicy: "merge"}); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestEngine_SineSquareRanking(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	te.mustAdd(t, "A", sineSeries(64), map[string]interface{}{"shape": "sine"})
	te.mustAdd(t, "B", squareSeries(64), map[string]interface{}{"shape": "square"})

	query := sineSeries(64)
	for i := range query {
		query[i] += 0.01 * math.Cos(float64(i))
	}
	resp, err := te.Search(ctx, &models.SearchQuery{Series: query, K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(resp); !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("ranking = %v, want [A B]", got)
	}
	if resp.Results[0].Distance >= resp.Results[1].Distance {
		t.Errorf("distance(A)=%v should be below distance(B)=%v", resp.Results[0].Distance, resp.Results[1].Distance)
	}
	if resp.Results[0].Metadata["shape"] != "sine" || resp.Results[0].Rank != 1 {
		t.Errorf("result not enriched: %+v", resp.Results[0])
	}
	if resp.Results[0].Data != nil {
		t.Error("raw data should only be returned on request")
	}
	if resp.Corpus != 2 || resp.K != 2 || resp.Total != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestEngine_SelfRetrievalAndClamp(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		series := sineSeries(20 + i*10)
		for j := range series {
			series[j] *= float64(i + 1)
		}
		te.mustAdd(t, fmt.Sprint("doc", i), series, nil)
	}
	doc, err := te.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := te.Search(ctx, &models.SearchQuery{Embedding: doc.Embedding, K: 50, IncludeData: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("k should clamp to corpus size, got %d results", len(resp.Results))
	}
	if resp.Results[0].ID != "doc1" || resp.Results[0].Distance != 0 {
		t.Errorf("self retrieval = %+v", resp.Results[0])
	}
	if len(resp.Results[0].Data) != 40 {
		t.Errorf("IncludeData returned %d points", len(resp.Results[0].Data))
	}
}

func TestEngine_KAboveDefaultLimit(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	n := models.MaxK + 50
	for i := 0; i < n; i++ {
		te.mustAdd(t, fmt.Sprint("doc", i), []float64{float64(i), float64(2 * i), float64(i % 7)}, nil)
	}
	for _, k := range []int{n, n + 10} {
		resp, err := te.Search(ctx, &models.SearchQuery{Series: []float64{1, 2, 3}, K: k})
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != n {
			t.Errorf("k=%d: got %d results, want %d", k, len(resp.Results), n)
		}
	}
}

func TestEngine_EmptyCorpus(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	resp, err := te.Search(context.Background(), &models.SearchQuery{Series: []float64{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 || resp.K != 5 {
		t.Errorf("response = %+v", resp)
	}
}

func TestEngine_SearchValidation(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	te.mustAdd(t, "a", []float64{1, 2, 3}, nil)
	tests := []struct {
		name  string
		query *models.SearchQuery
		want  error
	}{
		{"nil", nil, models.ErrInvalidInput},
		{"empty", &models.SearchQuery{}, models.ErrInvalidInput},
		{"negative k", &models.SearchQuery{Series: []float64{1}, K: -2}, models.ErrInvalidArgument},
		{"bad embedding dimension", &models.SearchQuery{Embedding: []float32{1, 2}}, models.ErrInvalidArgument},
		{"non-finite series", &models.SearchQuery{Series: []float64{1, math.NaN()}}, models.ErrInvalidInput},
		{"series above float32 range", &models.SearchQuery{Series: []float64{1e39, 2e39}}, models.ErrInvalidInput},
		{"metadata query without index", &models.SearchQuery{Series: []float64{1}, MetadataQuery: "a:b"}, models.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := te.Search(ctx, tt.query); !errors.Is(err, tt.want) {
				t.Errorf("Search error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEngine_RemoveDocument(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	te.mustAdd(t, "A", sineSeries(32), nil)
	doc, _ := te.GetDocument(ctx, "A")

	removed, err := te.RemoveDocument(ctx, "A")
	if err != nil || !removed {
		t.Fatalf("RemoveDocument = %v, %v", removed, err)
	}
	resp, err := te.Search(ctx, &models.SearchQuery{Embedding: doc.Embedding, K: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("removed document still returned: %v", resultIDs(resp))
	}
	if removed, err := te.RemoveDocument(ctx, "A"); removed || err != nil {
		t.Errorf("second remove = %v, %v; want false, nil", removed, err)
	}
	if _, err := te.GetDocument(ctx, "A"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetDocument after remove = %v", err)
	}
	te.assertConsistent(t)
}

func TestEngine_DuplicatePolicy(t *testing.T) {
	ctx := context.Background()
	t.Run("overwrite", func(t *testing.T) {
		te := newTestEngine(t, "overwrite")
		te.mustAdd(t, "a", []float64{1, 2, 3}, map[string]interface{}{"v": 1.0})
		te.mustAdd(t, "b", []float64{3, 2, 1}, nil)
		te.mustAdd(t, "a", []float64{5, 5, 5}, map[string]interface{}{"v": 2.0})

		if n, _ := te.Count(ctx); n != 2 || te.index.Size() != 2 {
			t.Fatalf("count=%d index=%d after overwrite", n, te.index.Size())
		}
		doc, _ := te.GetDocument(ctx, "a")
		if doc.Metadata["v"] != 2.0 || doc.Data[0] != 5 {
			t.Errorf("document not replaced: %+v", doc)
		}
		seq, _ := te.ListIDs(ctx)
		if got := slices.Collect(seq); !slices.Equal(got, []string{"b", "a"}) {
			t.Errorf("replacement should move to the end, ids = %v", got)
		}
		te.assertConsistent(t)
	})
	t.Run("reject", func(t *testing.T) {
		te := newTestEngine(t, "reject")
		te.mustAdd(t, "a", []float64{1, 2, 3}, nil)
		_, err := te.AddSeries(ctx, &models.DocumentInput{ID: "a", Series: []float64{9}})
		if !errors.Is(err, models.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		doc, _ := te.GetDocument(ctx, "a")
		if doc.Data[0] != 1 {
			t.Error("rejected add must not modify the document")
		}
		te.assertConsistent(t)
	})
}

func TestEngine_AddDocumentValidation(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	dims := te.Dimensions()
	good := make([]float32, dims)
	nan := make([]float32, dims)
	nan[0] = float32(math.NaN())
	tests := []struct {
		name string
		doc  *models.Document
		want error
	}{
		{"nil", nil, models.ErrInvalidDocument},
		{"empty id", &models.Document{Embedding: good}, models.ErrInvalidDocument},
		{"short embedding", &models.Document{ID: "x", Embedding: good[:2]}, models.ErrDimensionMismatch},
		{"non-finite", &models.Document{ID: "x", Embedding: nan}, models.ErrInvalidDocument},
		{"other fingerprint", &models.Document{ID: "x", Embedding: good, Fingerprint: "resample-linear/v1;L=8"}, models.ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := te.AddDocument(ctx, tt.doc); !errors.Is(err, tt.want) {
				t.Errorf("AddDocument error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := te.AddDocument(ctx, &models.Document{ID: "ok", Embedding: good}); err != nil {
		t.Fatal(err)
	}
	doc, _ := te.GetDocument(ctx, "ok")
	if doc.Fingerprint != te.Fingerprint() {
		t.Errorf("fingerprint should be stamped, got %q", doc.Fingerprint)
	}
	if _, err := te.AddSeries(ctx, &models.DocumentInput{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty series: %v", err)
	}
}

func TestEngine_AddSeriesGeneratesID(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	keep := false
	doc, err := te.AddSeries(context.Background(), &models.DocumentInput{Series: []float64{1, 2}, KeepData: &keep})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.ID) != 36 {
		t.Errorf("expected a UUID id, got %q", doc.ID)
	}
	if doc.Data != nil {
		t.Error("series should not be retained when KeepData is false")
	}
	if _, err := te.Analyze(context.Background(), doc.ID); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Analyze without data = %v", err)
	}
}

func TestEngine_RollbackOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	t.Run("new document", func(t *testing.T) {
		te := newTestEngine(t, "overwrite")
		te.index.failAdd = true
		_, err := te.AddSeries(ctx, &models.DocumentInput{ID: "a", Series: []float64{1, 2, 3}})
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected index error, got %v", err)
		}
		if errors.Is(err, models.ErrInternalConsistency) {
			t.Error("a successful rollback is not an inconsistency")
		}
		if _, err := te.GetDocument(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("store write should be rolled back, Get = %v", err)
		}
		te.assertConsistent(t)
	})
	t.Run("overwrite restores previous version", func(t *testing.T) {
		te := newTestEngine(t, "overwrite")
		te.mustAdd(t, "a", []float64{1, 2, 3}, map[string]interface{}{"v": "old"})
		te.index.failAdd = true
		_, err := te.AddSeries(ctx, &models.DocumentInput{ID: "a", Series: []float64{7, 7}})
		if !errors.Is(err, errBoom) || errors.Is(err, models.ErrInternalConsistency) {
			t.Fatalf("expected index error, got %v", err)
		}
		doc, err := te.GetDocument(ctx, "a")
		if err != nil || doc.Metadata["v"] != "old" {
			t.Fatalf("previous version not restored: %+v %v", doc, err)
		}
		resp, err := te.Search(ctx, &models.SearchQuery{Embedding: doc.Embedding, K: 1})
		if err != nil || len(resp.Results) != 1 || resp.Results[0].Distance != 0 {
			t.Errorf("previous version not searchable: %+v %v", resp, err)
		}
		te.assertConsistent(t)
	})
	t.Run("restored version moves to the end of insertion order", func(t *testing.T) {
		te := newTestEngine(t, "overwrite")
		te.mustAdd(t, "a", []float64{1, 2, 3}, nil)
		te.mustAdd(t, "b", []float64{1, 2, 3}, nil)
		te.index.failAdd = true
		if _, err := te.AddSeries(ctx, &models.DocumentInput{ID: "a", Series: []float64{9, 9}}); !errors.Is(err, errBoom) {
			t.Fatalf("expected index error, got %v", err)
		}
		te.assertConsistent(t)
		resp, err := te.Search(ctx, &models.SearchQuery{Series: []float64{1, 2, 3}, K: 2})
		if err != nil {
			t.Fatal(err)
		}
		if got := resultIDs(resp); !slices.Equal(got, []string{"b", "a"}) {
			t.Errorf("tie order = %v, want [b a]", got)
		}
		seq, err := te.ListIDs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got := slices.Collect(seq); !slices.Equal(got, []string{"b", "a"}) {
			t.Errorf("store order = %v, want [b a]", got)
		}
	})
	t.Run("failed rollback is an inconsistency", func(t *testing.T) {
		te := newTestEngine(t, "overwrite")
		te.index.failAdd = true
		te.store.failDelete = true
		_, err := te.AddSeries(ctx, &models.DocumentInput{ID: "a", Series: []float64{1, 2, 3}})
		if !errors.Is(err, models.ErrInternalConsistency) || !errors.Is(err, errBoom) {
			t.Fatalf("expected inconsistency wrapping the cause, got %v", err)
		}
		if err := te.CheckConsistency(ctx); !errors.Is(err, models.ErrInternalConsistency) {
			t.Errorf("CheckConsistency = %v", err)
		}
	})
}

func TestEngine_RemoveRollback(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, "overwrite")
	te.mustAdd(t, "a", []float64{1, 2, 3}, nil)

	te.index.failRemove = true
	if _, err := te.RemoveDocument(ctx, "a"); !errors.Is(err, errBoom) {
		t.Fatalf("expected index error, got %v", err)
	}
	te.index.failRemove = false
	te.assertConsistent(t)

	te.store.failDelete = true
	if _, err := te.RemoveDocument(ctx, "a"); !errors.Is(err, errBoom) {
		t.Fatalf("expected store error, got %v", err)
	}
	te.store.failDelete = false
	if !te.index.Contains("a") {
		t.Error("index removal should be rolled back")
	}
	te.assertConsistent(t)
}

func TestEngine_DesyncDetected(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, "overwrite")
	te.mustAdd(t, "a", []float64{1, 2, 3}, nil)
	orphan := make([]float32, te.Dimensions())
	if err := te.index.VectorIndex.Add(ctx, []string{"orphan"}, [][]float32{orphan}); err != nil {
		t.Fatal(err)
	}
	_, err := te.Search(ctx, &models.SearchQuery{Embedding: orphan, K: 2})
	if !errors.Is(err, models.ErrInternalConsistency) {
		t.Errorf("Search over an orphan vector = %v", err)
	}
	if err := te.CheckConsistency(ctx); !errors.Is(err, models.ErrInternalConsistency) {
		t.Errorf("CheckConsistency = %v", err)
	}
	if _, err := te.RemoveDocument(ctx, "orphan"); !errors.Is(err, models.ErrInternalConsistency) {
		t.Errorf("RemoveDocument(orphan) = %v", err)
	}
}

func TestEngine_MetadataQuery(t *testing.T) {
	bleveIdx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer bleveIdx.Close()
	te := newTestEngine(t, "overwrite", WithMetadataIndex(bleveIdx))
	ctx := context.Background()
	te.mustAdd(t, "berlin-1", sineSeries(30), map[string]interface{}{"site": "berlin", "sensor": "temp"})
	te.mustAdd(t, "paris-1", sineSeries(30), map[string]interface{}{"site": "paris", "sensor": "temp"})
	te.mustAdd(t, "berlin-2", squareSeries(30), map[string]interface{}{"site": "berlin", "sensor": "humidity"})

	resp, err := te.Search(ctx, &models.SearchQuery{Series: sineSeries(30), K: 10, MetadataQuery: "site:berlin"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(resp); !slices.Equal(got, []string{"berlin-1", "berlin-2"}) {
		t.Errorf("filtered results = %v", got)
	}

	if _, err := te.RemoveDocument(ctx, "berlin-1"); err != nil {
		t.Fatal(err)
	}
	resp, _ = te.Search(ctx, &models.SearchQuery{Series: sineSeries(30), MetadataQuery: "sensor:temp"})
	if got := resultIDs(resp); !slices.Equal(got, []string{"paris-1"}) {
		t.Errorf("after remove = %v", got)
	}
	if _, err := te.Search(ctx, &models.SearchQuery{Series: sineSeries(30), MetadataQuery: `site:"berlin`}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("bad metadata query = %v", err)
	}
}

func TestEngine_Analytics(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	series := make([]float64, 240)
	for i := range series {
		series[i] = math.Sin(2 * math.Pi * float64(i) / 24)
	}
	te.mustAdd(t, "daily", series, nil)
	resp, err := te.Search(ctx, &models.SearchQuery{Series: series, IncludeAnalytics: true})
	if err != nil {
		t.Fatal(err)
	}
	a := resp.Results[0].Analytics
	if a == nil || a.SeriesCount != 240 || len(a.Periods) == 0 || a.Periods[0] != 24 {
		t.Fatalf("analytics = %+v", a)
	}
	direct, err := te.Analyze(ctx, "daily")
	if err != nil || direct.Periods[0] != 24 {
		t.Errorf("Analyze = %+v, %v", direct, err)
	}
}

func TestEngine_Concurrent(t *testing.T) {
	te := newTestEngine(t, "overwrite")
	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("w%d-%d", w, i%10)
				_, _ = te.AddSeries(ctx, &models.DocumentInput{ID: id, Series: sineSeries(10 + i)})
				if i%3 == 0 {
					_, _ = te.RemoveDocument(ctx, id)
				}
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := te.Search(ctx, &models.SearchQuery{Series: sineSeries(16), K: 3}); err != nil {
					t.Errorf("concurrent search: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	te.assertConsistent(t)
}

func TestEngine_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := newTestEngine(t, "overwrite")
	src.mustAdd(t, "a", sineSeries(20), map[string]interface{}{"k": "v"})
	src.mustAdd(t, "b", squareSeries(20), nil)
	src.mustAdd(t, "c", []float64{1, 1, 2}, nil)

	var buf bytes.Buffer
	n, err := src.Snapshot(ctx, &buf)
	if err != nil || n != 3 {
		t.Fatalf("Snapshot = %d, %v", n, err)
	}
	data := buf.Bytes()

	dst := newTestEngine(t, "overwrite")
	n, err = dst.Restore(ctx, bytes.NewReader(data))
	if err != nil || n != 3 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	seq, _ := dst.ListIDs(ctx)
	if got := slices.Collect(seq); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("restored order = %v", got)
	}
	doc, _ := dst.GetDocument(ctx, "a")
	if doc.Metadata["k"] != "v" || len(doc.Data) != 20 {
		t.Errorf("restored doc = %+v", doc)
	}
	dst.assertConsistent(t)

	if _, err := dst.Restore(ctx, bytes.NewReader(data)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("restore into non-empty engine = %v", err)
	}

	emb, _ := embedding.NewResampleEmbedder(embedding.Config{TargetLength: 11, Features: embedding.DefaultFeatures[:0]})
	idx, _ := vector.NewMemoryIndex(emb.Dimensions())
	other, _ := NewEngine(storage.NewMemoryStorage(emb.Dimensions()), emb, idx, nil)
	if _, err := other.Restore(ctx, bytes.NewReader(data)); !errors.Is(err, models.ErrInvalidDocument) {
		t.Errorf("restore with a different embedder = %v", err)
	}
	if _, err := dst.Restore(ctx, bytes.NewReader([]byte("junk"))); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("restore garbage = %v", err)
	}
}

func TestEngine_RebuildFromPersistentStore(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/docs.db"
	emb, _ := embedding.NewResampleEmbedder(embedding.Config{TargetLength: 8, Features: embedding.DefaultFeatures})
	dims := emb.Dimensions()

	store, err := storage.NewSQLiteStorage(path, dims)
	if err != nil {
		t.Fatal(err)
	}
	idx, _ := vector.NewMemoryIndex(dims)
	e, _ := NewEngine(store, emb, idx, nil)
	for i := 0; i < 300; i++ {
		if _, err := e.AddSeries(ctx, &models.DocumentInput{ID: fmt.Sprint(i), Series: []float64{float64(i), float64(i) + 1}}); err != nil {
			t.Fatal(err)
		}
	}
	store.Close()

	store, err = storage.NewSQLiteStorage(path, dims)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	hnsw, _ := vector.NewHNSWIndex(dims)
	e, _ = NewEngine(store, emb, hnsw, nil)
	n, err := e.Rebuild(ctx)
	if err != nil || n != 300 {
		t.Fatalf("Rebuild = %d, %v", n, err)
	}
	if err := e.CheckConsistency(ctx); err != nil {
		t.Fatal(err)
	}
	doc, _ := e.GetDocument(ctx, "42")
	resp, err := e.Search(ctx, &models.SearchQuery{Embedding: doc.Embedding, K: 1})
	if err != nil || resp.Results[0].ID != "42" {
		t.Errorf("search after rebuild = %+v, %v", resp, err)
	}
	if _, err := e.Rebuild(ctx); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("second Rebuild = %v", err)
	}
	stats, _ := e.Stats(ctx)
	if stats.Documents != 300 || stats.Indexed != 300 || stats.IndexType != "hnsw" || !stats.Persistent {
		t.Errorf("stats = %+v", stats)
	}
}
