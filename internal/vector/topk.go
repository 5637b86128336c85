package vector

import (
	"container/heap"
	"sort"
)

// candidate is a scored slot. seq is the insertion sequence used to break distance ties.
type candidate struct {
	slot     int
	seq      uint64
	distance float64
}

func closer(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.seq < b.seq
}

// maxHeap keeps the worst candidate on top so it can be evicted in O(log k).
type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// topK collects the k closest candidates offered to it.
type topK struct {
	k int
	h maxHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(maxHeap, 0, k)}
}

func (t *topK) offer(c candidate) {
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if closer(c, t.h[0]) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// sorted returns the collected candidates nearest first.
func (t *topK) sorted() []candidate {
	out := append([]candidate(nil), t.h...)
	sortCandidates(out)
	return out
}

func sortCandidates(c []candidate) {
	sort.Slice(c, func(i, j int) bool { return closer(c[i], c[j]) })
}

// minHeap pops the closest candidate first.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return closer(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
