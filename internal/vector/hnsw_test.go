package vector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
)

func randomVectors(n, dims int, seed uint64) [][]float32 {
	r := rand.New(rand.NewPCG(seed, seed))
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
		for j := range out[i] {
			out[i][j] = float32(r.Float64())
		}
	}
	return out
}

func TestHNSWIndex_RecallAgainstFlat(t *testing.T) {
	ctx := context.Background()
	const n, dims, k = 500, 8, 10
	vecs := randomVectors(n, dims, 7)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	flat, _ := NewMemoryIndex(dims)
	graph, _ := NewHNSWIndex(dims, WithHNSW(16, 200, 100, 1))
	if err := flat.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if err := graph.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}

	queries := randomVectors(20, dims, 99)
	var hits, total int
	for _, q := range queries {
		exact, _ := flat.Search(ctx, q, k, nil)
		approx, err := graph.Search(ctx, q, k, nil)
		if err != nil {
			t.Fatal(err)
		}
		want := make(map[string]bool, k)
		for _, r := range exact {
			want[r.ID] = true
		}
		for _, r := range approx {
			if want[r.ID] {
				hits++
			}
		}
		total += k
	}
	if recall := float64(hits) / float64(total); recall < 0.9 {
		t.Errorf("recall@%d = %.2f, want >= 0.9", k, recall)
	}
}

func TestHNSWIndex_Deterministic(t *testing.T) {
	ctx := context.Background()
	vecs := randomVectors(100, 4, 3)
	ids := make([]string, len(vecs))
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	build := func() *HNSWIndex {
		idx, _ := NewHNSWIndex(4, WithHNSW(4, 20, 8, 5))
		_ = idx.Add(ctx, ids, vecs)
		return idx
	}
	a, b := build(), build()
	q := []float32{0.5, 0.5, 0.5, 0.5}
	ra, _ := a.Search(ctx, q, 5, nil)
	rb, _ := b.Search(ctx, q, 5, nil)
	if fmt.Sprint(resultIDs(ra)) != fmt.Sprint(resultIDs(rb)) {
		t.Errorf("same inserts gave different results: %v vs %v", resultIDs(ra), resultIDs(rb))
	}
}

func TestHNSWIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewHNSWIndex(2, WithCompaction(0.3, 10))
	for i := 0; i < 20; i++ {
		_ = idx.Add(ctx, []string{fmt.Sprint(i)}, [][]float32{{float32(i), 0}})
	}
	for i := 0; i < 10; i++ {
		_, _ = idx.Remove(ctx, fmt.Sprint(i))
	}
	idx.mu.RLock()
	nodes := len(idx.nodes)
	idx.mu.RUnlock()
	if nodes >= 20 {
		t.Errorf("graph was not rebuilt: %d nodes", nodes)
	}
	results, err := idx.Search(ctx, []float32{0, 0}, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(resultIDs(results)); got != "[10 11 12]" {
		t.Errorf("results after rebuild = %s", got)
	}
}
