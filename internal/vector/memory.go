package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is an exact in-memory index using brute-force search.
//
// Vectors live in an append-only slot arena. Remove tombstones a slot and the
// arena is compacted synchronously inside Remove once tombstones exceed the
// configured ratio (see DefaultCompactRatio), so removals stay O(1) amortized
// and no single insertion ever rebuilds the arena.
type MemoryIndex struct {
	dimensions int
	opts       options
	slots      []memorySlot
	byID       map[string]int
	live       int
	nextSeq    uint64
	mu         sync.RWMutex
}

type memorySlot struct {
	id   string
	seq  uint64
	p    point
	dead bool
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int, opts ...Option) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		opts:       o,
		slots:      make([]memorySlot, 0),
		byID:       make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeFlat)
}

// Metric returns the distance metric.
func (m *MemoryIndex) Metric() Metric {
	return m.opts.metric
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends vectors with the given IDs.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := validateBatch(ids, vectors, m.dimensions, m.containsLocked); err != nil {
		return err
	}
	for i, id := range ids {
		m.byID[id] = len(m.slots)
		m.slots = append(m.slots, memorySlot{id: id, seq: m.nextSeq, p: newPoint(vectors[i])})
		m.nextSeq++
		m.live++
	}
	return nil
}

// Search returns the k nearest live vectors.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	if err := validateQuery(query, k, m.dimensions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.live == 0 {
		return []*VectorResult{}, nil
	}
	if k > m.live {
		k = m.live
	}
	q := newPoint(query)
	top := newTopK(k)
	for i := range m.slots {
		s := &m.slots[i]
		if s.dead || (filter != nil && !filter(s.id)) {
			continue
		}
		top.offer(candidate{slot: i, seq: s.seq, distance: m.opts.metric.distance(q, s.p)})
	}
	best := top.sorted()
	results := make([]*VectorResult, len(best))
	for i, c := range best {
		results[i] = &VectorResult{ID: m.slots[c.slot].id, Distance: c.distance}
	}
	return results, nil
}

// Remove tombstones the slot of id and compacts the arena when the tombstone threshold is crossed.
func (m *MemoryIndex) Remove(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	m.slots[i].dead = true
	m.slots[i].p = point{}
	delete(m.byID, id)
	m.live--
	if m.opts.shouldCompact(len(m.slots), m.live) {
		m.compactLocked()
	}
	return true, nil
}

// compactLocked drops tombstoned slots, preserving insertion order and sequence numbers.
func (m *MemoryIndex) compactLocked() {
	slots := make([]memorySlot, 0, m.live)
	for _, s := range m.slots {
		if s.dead {
			continue
		}
		m.byID[s.id] = len(slots)
		slots = append(slots, s)
	}
	m.slots = slots
}

// Contains reports whether id is indexed.
func (m *MemoryIndex) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.containsLocked(id)
}

func (m *MemoryIndex) containsLocked(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// IDs returns the live ids in insertion order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, m.live)
	for _, s := range m.slots {
		if !s.dead {
			ids = append(ids, s.id)
		}
	}
	return ids
}

// Size returns the number of live vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

// Slots returns the arena size including tombstones.
func (m *MemoryIndex) Slots() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
