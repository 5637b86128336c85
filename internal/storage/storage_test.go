package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hyperjump/tsrag/internal/models"
)

func openBackends(t *testing.T, dims int) map[string]Storage {
	t.Helper()
	dir := t.TempDir()
	out := make(map[string]Storage)
	for _, backend := range []string{"memory", "sqlite", "bolt"} {
		s, err := NewStorage(backend, filepath.Join(dir, backend+".db"), dims)
		if err != nil {
			t.Fatalf("NewStorage(%s): %v", backend, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		out[backend] = s
	}
	return out
}

func collect(t *testing.T, s Storage) []string {
	t.Helper()
	seq, err := s.ListIDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return slices.Collect(seq)
}

func TestStorage_CRUD(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t, 3) {
		t.Run(name, func(t *testing.T) {
			doc := &models.Document{
				ID:          "doc1",
				Data:        []float64{1, 2.5, 3},
				Metadata:    map[string]interface{}{"sensor": "temp", "floor": 2.0},
				Embedding:   []float32{0.5, 1, -2},
				Fingerprint: "fp",
			}
			if err := store.Put(ctx, doc); err != nil {
				t.Fatal(err)
			}
			if doc.CreatedAt.IsZero() {
				t.Error("CreatedAt should be set")
			}

			got, err := store.Get(ctx, "doc1")
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got.Embedding, doc.Embedding) || !slices.Equal(got.Data, doc.Data) {
				t.Errorf("round trip mismatch: %+v", got)
			}
			if got.Metadata["sensor"] != "temp" || got.Fingerprint != "fp" {
				t.Errorf("metadata/fingerprint mismatch: %+v", got)
			}

			if n, _ := store.Count(ctx); n != 1 {
				t.Errorf("Count = %d, want 1", n)
			}

			existed, err := store.Delete(ctx, "doc1")
			if err != nil || !existed {
				t.Fatalf("Delete = %v, %v", existed, err)
			}
			existed, err = store.Delete(ctx, "doc1")
			if err != nil || existed {
				t.Errorf("second Delete = %v, %v; want false, nil", existed, err)
			}
			if _, err := store.Get(ctx, "doc1"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("Get after delete: %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStorage_InvalidDocument(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t, 2) {
		t.Run(name, func(t *testing.T) {
			tests := map[string]*models.Document{
				"nil":           nil,
				"empty id":      {Embedding: []float32{1, 2}},
				"short vector":  {ID: "a", Embedding: []float32{1}},
				"bad metadata":  {ID: "b", Embedding: []float32{1, 2}, Metadata: map[string]interface{}{"x": math.NaN()}},
				"missing embed": {ID: "c"},
			}
			for label, doc := range tests {
				if err := store.Put(ctx, doc); !errors.Is(err, models.ErrInvalidDocument) {
					t.Errorf("%s: got %v, want ErrInvalidDocument", label, err)
				}
			}
			err := store.Put(ctx, &models.Document{ID: "d", Embedding: []float32{1, 2, 3}})
			if !errors.Is(err, models.ErrDimensionMismatch) {
				t.Errorf("dimension detail lost: %v", err)
			}
			if n, _ := store.Count(ctx); n != 0 {
				t.Errorf("invalid documents were stored: count %d", n)
			}
		})
	}
}

func TestStorage_ListIDsOrderAndSnapshot(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t, 1) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"c", "a", "b"} {
				if err := store.Put(ctx, &models.Document{ID: id, Embedding: []float32{1}}); err != nil {
					t.Fatal(err)
				}
			}
			// Replacing moves the id to the end.
			if err := store.Put(ctx, &models.Document{ID: "c", Embedding: []float32{2}}); err != nil {
				t.Fatal(err)
			}
			if got := collect(t, store); fmt.Sprint(got) != "[a b c]" {
				t.Errorf("ListIDs = %v, want [a b c]", got)
			}
			if n, _ := store.Count(ctx); n != 3 {
				t.Errorf("Count after replace = %d, want 3", n)
			}

			seq, err := store.ListIDs(ctx)
			if err != nil {
				t.Fatal(err)
			}
			_, _ = store.Delete(ctx, "a")
			_ = store.Put(ctx, &models.Document{ID: "z", Embedding: []float32{3}})
			if got := slices.Collect(seq); fmt.Sprint(got) != "[a b c]" {
				t.Errorf("snapshot changed after mutation: %v", got)
			}
			if got := collect(t, store); fmt.Sprint(got) != "[b c z]" {
				t.Errorf("fresh ListIDs = %v, want [b c z]", got)
			}

			var first []string
			for id := range seq {
				first = append(first, id)
				break
			}
			if len(first) != 1 {
				t.Error("early break should stop iteration")
			}
		})
	}
}

func TestStorage_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(dir, backend+".db")
			s, err := NewStorage(backend, path, 2)
			if err != nil {
				t.Fatal(err)
			}
			if !s.Persistent() {
				t.Error("expected persistent backend")
			}
			_ = s.Put(ctx, &models.Document{ID: "x", Embedding: []float32{1, 2}})
			_ = s.Put(ctx, &models.Document{ID: "y", Embedding: []float32{3, 4}})
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			reopened, err := NewStorage(backend, path, 2)
			if err != nil {
				t.Fatal(err)
			}
			defer reopened.Close()
			if got := collect(t, reopened); fmt.Sprint(got) != "[x y]" {
				t.Errorf("ids after reopen = %v", got)
			}
			doc, err := reopened.Get(ctx, "y")
			if err != nil || doc.Embedding[1] != 4 {
				t.Errorf("Get after reopen = %+v, %v", doc, err)
			}
		})
	}
}

func TestMemoryStorage_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(1)
	doc := &models.Document{ID: "a", Embedding: []float32{1}, Metadata: map[string]interface{}{"k": "v"}}
	_ = s.Put(ctx, doc)
	doc.Embedding[0] = 9
	got, _ := s.Get(ctx, "a")
	got.Metadata["k"] = "changed"
	again, _ := s.Get(ctx, "a")
	if again.Embedding[0] != 1 || again.Metadata["k"] != "v" {
		t.Errorf("stored document was mutated: %+v", again)
	}
	if s.Persistent() {
		t.Error("memory storage is not persistent")
	}
}

func TestNewStorage_Errors(t *testing.T) {
	if _, err := NewStorage("postgres", "", 2); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := NewStorage("memory", "", 0); err == nil {
		t.Error("expected error for zero dimensions")
	}
	if _, err := NewStorage("sqlite", "", 2); err == nil {
		t.Error("expected error for sqlite without path")
	}
}
