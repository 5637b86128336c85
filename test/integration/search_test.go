// Package integration exercises the engine against real storage backends.
package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hyperjump/tsrag/internal/embedding"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/search"
	"github.com/hyperjump/tsrag/internal/storage"
	"github.com/hyperjump/tsrag/internal/vector"
	"github.com/hyperjump/tsrag/test/e2e"
)

type engineHandle struct {
	*search.Engine
	store storage.Storage
}

func (h *engineHandle) Close() {
	_ = h.store.Close()
}

func openEngine(t *testing.T, backend, path, indexType string) *engineHandle {
	t.Helper()
	emb, err := embedding.NewResampleEmbedder(embedding.Config{TargetLength: 32, Features: embedding.DefaultFeatures})
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewStorage(backend, path, emb.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewVectorIndex(indexType, emb.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	engine, err := search.NewEngine(store, emb, idx, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &engineHandle{Engine: engine, store: store}
}

type hit struct {
	id       string
	distance float64
}

func searchAll(t *testing.T, e *search.Engine, c *e2e.Corpus) [][]hit {
	t.Helper()
	out := make([][]hit, len(c.TestCases))
	for i, tc := range c.TestCases {
		resp, err := e.Search(context.Background(), &models.SearchQuery{Series: tc.Series, K: 4})
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range resp.Results {
			out[i] = append(out[i], hit{r.ID, r.Distance})
		}
	}
	return out
}

func TestIntegration_RestartRebuildsIndex(t *testing.T) {
	corpus := e2e.BuildCorpus(4, 11)
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "tsrag.db")

			first := openEngine(t, backend, path, "flat")
			for _, in := range corpus.ToDocumentInputs() {
				if _, err := first.AddSeries(ctx, in); err != nil {
					t.Fatal(err)
				}
			}
			removed := corpus.Series[0].ID
			if ok, err := first.RemoveDocument(ctx, removed); err != nil || !ok {
				t.Fatalf("remove: %v %v", ok, err)
			}
			before := searchAll(t, first.Engine, corpus)
			first.Close()

			second := openEngine(t, backend, path, "flat")
			defer second.Close()
			n, err := second.Rebuild(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != corpus.TotalDocs-1 {
				t.Errorf("rebuilt %d documents, want %d", n, corpus.TotalDocs-1)
			}
			if err := second.CheckConsistency(ctx); err != nil {
				t.Error(err)
			}
			if !slices.EqualFunc(before, searchAll(t, second.Engine, corpus), slices.Equal[[]hit]) {
				t.Error("results differ after restart")
			}
			if _, err := second.GetDocument(ctx, removed); err == nil {
				t.Errorf("%s should stay removed", removed)
			}
		})
	}
}

func TestIntegration_SnapshotIntoMemory(t *testing.T) {
	ctx := context.Background()
	corpus := e2e.BuildCorpus(3, 5)
	src := openEngine(t, "sqlite", filepath.Join(t.TempDir(), "src.db"), "flat")
	defer src.Close()
	for _, in := range corpus.ToDocumentInputs() {
		if _, err := src.AddSeries(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if _, err := src.Snapshot(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	dst := openEngine(t, "memory", "", "hnsw")
	defer dst.Close()
	n, err := dst.Restore(ctx, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != corpus.TotalDocs {
		t.Errorf("restored %d, want %d", n, corpus.TotalDocs)
	}

	want := searchAll(t, src.Engine, corpus)
	got := searchAll(t, dst.Engine, corpus)
	for i := range want {
		if want[i][0].id != got[i][0].id {
			t.Errorf("query %d: top hit %s after restore, want %s", i, got[i][0].id, want[i][0].id)
		}
	}

	srcIDs, _ := src.ListIDs(ctx)
	dstIDs, _ := dst.ListIDs(ctx)
	if !slices.Equal(slices.Collect(srcIDs), slices.Collect(dstIDs)) {
		t.Error("restore should keep insertion order")
	}
}
