package vector

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryIndex_Compaction(t *testing.T) {
	idx, err := NewMemoryIndex(1, WithCompaction(0.5, 4))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		_ = idx.Add(ctx, []string{fmt.Sprint(i)}, [][]float32{{float32(i)}})
	}
	for i := 0; i < 4; i++ {
		_, _ = idx.Remove(ctx, fmt.Sprint(i))
	}
	if idx.Slots() != 8 {
		t.Fatalf("Slots = %d before threshold, want 8", idx.Slots())
	}
	_, _ = idx.Remove(ctx, "4")
	if idx.Slots() != 3 {
		t.Errorf("Slots = %d after compaction, want 3", idx.Slots())
	}

	// Sequence numbers survive compaction, so ties still follow insertion order.
	_ = idx.Add(ctx, []string{"late"}, [][]float32{{5}})
	results, err := idx.Search(ctx, []float32{5}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(results); fmt.Sprint(got) != "[5 late]" {
		t.Errorf("order after compaction = %v", got)
	}
}

func TestMemoryIndex_CosineMetric(t *testing.T) {
	idx, _ := NewMemoryIndex(2, WithMetric(MetricCosine))
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"far", "parallel"}, [][]float32{{0.1, 0.1}, {10, 0}})
	results, err := idx.Search(ctx, []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "parallel" {
		t.Errorf("cosine nearest = %s, want parallel", results[0].ID)
	}
	if idx.Metric() != MetricCosine {
		t.Errorf("Metric = %s", idx.Metric())
	}
}

func TestMemoryIndex_CopiesInput(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	v := []float32{1, 1}
	_ = idx.Add(ctx, []string{"a"}, [][]float32{v})
	v[0] = 100
	results, _ := idx.Search(ctx, []float32{1, 1}, 1, nil)
	if results[0].Distance != 0 {
		t.Error("index should keep its own copy of the vector")
	}
}

func TestMemoryIndex_CanceledContext(t *testing.T) {
	idx, _ := NewMemoryIndex(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1}}); err == nil {
		t.Error("expected error for canceled context")
	}
}
