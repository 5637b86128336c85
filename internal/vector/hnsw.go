package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

const hnswMaxLevel = 16

// HNSWIndex is an approximate index built on a Hierarchical Navigable Small World graph.
//
// Levels are drawn from a seeded generator, so the same sequence of operations
// always builds the same graph. Removed nodes are tombstoned and stay navigable;
// the graph is rebuilt from the live nodes inside Remove once tombstones cross
// the compaction threshold. When the graph walk cannot produce min(k, size)
// results, or a filter is given, Search falls back to an exact scan.
type HNSWIndex struct {
	dimensions int
	opts       options
	nodes      []*hnswNode
	byID       map[string]int
	entry      int
	maxLevel   int
	live       int
	nextSeq    uint64
	levelMult  float64
	rng        *rand.Rand
	mu         sync.RWMutex
}

type hnswNode struct {
	id        string
	seq       uint64
	p         point
	level     int
	neighbors [][]int
	dead      bool
}

// NewHNSWIndex creates an HNSW index with the given dimension.
func NewHNSWIndex(dimensions int, opts ...Option) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	h := &HNSWIndex{
		dimensions: dimensions,
		opts:       o,
		levelMult:  1.0 / math.Log(float64(o.m)),
	}
	h.resetLocked()
	return h, nil
}

func (h *HNSWIndex) resetLocked() {
	h.nodes = nil
	h.byID = make(map[string]int)
	h.entry = -1
	h.maxLevel = 0
	h.live = 0
	h.rng = rand.New(rand.NewPCG(h.opts.seed, h.opts.seed^0x9e3779b97f4a7c15))
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Metric returns the distance metric.
func (h *HNSWIndex) Metric() Metric {
	return h.opts.metric
}

// Dimensions returns the vector dimension.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Add inserts vectors into the graph.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := validateBatch(ids, vectors, h.dimensions, h.containsLocked); err != nil {
		return err
	}
	for i, id := range ids {
		h.insertLocked(id, h.nextSeq, newPoint(vectors[i]))
		h.nextSeq++
	}
	return nil
}

func (h *HNSWIndex) randomLevel() int {
	level := int(math.Floor(-math.Log(1-h.rng.Float64()) * h.levelMult))
	if level > hnswMaxLevel {
		level = hnswMaxLevel
	}
	return level
}

func (h *HNSWIndex) maxConn(level int) int {
	if level == 0 {
		return h.opts.m * 2
	}
	return h.opts.m
}

func (h *HNSWIndex) insertLocked(id string, seq uint64, p point) {
	level := h.randomLevel()
	node := &hnswNode{id: id, seq: seq, p: p, level: level, neighbors: make([][]int, level+1)}
	slot := len(h.nodes)
	h.nodes = append(h.nodes, node)
	h.byID[id] = slot
	h.live++

	if h.entry < 0 {
		h.entry = slot
		h.maxLevel = level
		return
	}

	ep := h.entry
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedy(p, ep, l)
	}
	for l := min(level, h.maxLevel); l >= 0; l-- {
		found := h.searchLayer(p, ep, h.opts.efConstruction, l)
		selected := found
		if len(selected) > h.opts.m {
			selected = selected[:h.opts.m]
		}
		for _, c := range selected {
			node.neighbors[l] = append(node.neighbors[l], c.slot)
			peer := h.nodes[c.slot]
			peer.neighbors[l] = append(peer.neighbors[l], slot)
			if len(peer.neighbors[l]) > h.maxConn(l) {
				peer.neighbors[l] = h.prune(peer, l)
			}
		}
		if len(found) > 0 {
			ep = found[0].slot
		}
	}
	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = slot
	}
}

// prune keeps the maxConn(level) neighbors of n closest to it.
func (h *HNSWIndex) prune(n *hnswNode, level int) []int {
	cands := make([]candidate, 0, len(n.neighbors[level]))
	for _, s := range n.neighbors[level] {
		peer := h.nodes[s]
		cands = append(cands, candidate{slot: s, seq: peer.seq, distance: h.opts.metric.distance(n.p, peer.p)})
	}
	sortCandidates(cands)
	keep := h.maxConn(level)
	if len(cands) > keep {
		cands = cands[:keep]
	}
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.slot
	}
	return out
}

// greedy walks level l from ep towards q and returns the closest node found.
func (h *HNSWIndex) greedy(q point, ep, l int) int {
	cur := ep
	curDist := h.opts.metric.distance(q, h.nodes[cur].p)
	for changed := true; changed; {
		changed = false
		for _, s := range h.nodes[cur].neighbors[l] {
			if d := h.opts.metric.distance(q, h.nodes[s].p); d < curDist {
				cur, curDist, changed = s, d, true
			}
		}
	}
	return cur
}

// searchLayer returns up to ef nodes of level l closest to q, nearest first.
// Tombstoned nodes are included so callers can keep navigating through them.
func (h *HNSWIndex) searchLayer(q point, ep, ef, l int) []candidate {
	visited := map[int]struct{}{ep: {}}
	start := candidate{slot: ep, seq: h.nodes[ep].seq, distance: h.opts.metric.distance(q, h.nodes[ep].p)}
	frontier := &minHeap{start}
	results := &maxHeap{start}

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(candidate)
		if results.Len() >= ef && closer((*results)[0], cur) {
			break
		}
		node := h.nodes[cur.slot]
		if l >= len(node.neighbors) {
			continue
		}
		for _, s := range node.neighbors[l] {
			if _, seen := visited[s]; seen {
				continue
			}
			visited[s] = struct{}{}
			peer := h.nodes[s]
			c := candidate{slot: s, seq: peer.seq, distance: h.opts.metric.distance(q, peer.p)}
			if results.Len() < ef || closer(c, (*results)[0]) {
				heap.Push(frontier, c)
				heap.Push(results, c)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	out := append([]candidate(nil), (*results)...)
	sortCandidates(out)
	return out
}

// Search returns the k nearest live vectors.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	if err := validateQuery(query, k, h.dimensions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.live == 0 {
		return []*VectorResult{}, nil
	}
	if k > h.live {
		k = h.live
	}
	q := newPoint(query)
	if filter != nil {
		return h.results(h.exact(q, k, filter)), nil
	}

	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedy(q, ep, l)
	}
	found := h.searchLayer(q, ep, max(h.opts.efSearch, k), 0)
	best := make([]candidate, 0, k)
	for _, c := range found {
		if h.nodes[c.slot].dead {
			continue
		}
		best = append(best, c)
		if len(best) == k {
			break
		}
	}
	if len(best) < k {
		best = h.exact(q, k, nil)
	}
	return h.results(best), nil
}

func (h *HNSWIndex) exact(q point, k int, filter Filter) []candidate {
	top := newTopK(k)
	for i, n := range h.nodes {
		if n.dead || (filter != nil && !filter(n.id)) {
			continue
		}
		top.offer(candidate{slot: i, seq: n.seq, distance: h.opts.metric.distance(q, n.p)})
	}
	return top.sorted()
}

func (h *HNSWIndex) results(best []candidate) []*VectorResult {
	out := make([]*VectorResult, len(best))
	for i, c := range best {
		out[i] = &VectorResult{ID: h.nodes[c.slot].id, Distance: c.distance}
	}
	return out
}

// Remove tombstones id and rebuilds the graph when the tombstone threshold is crossed.
func (h *HNSWIndex) Remove(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, ok := h.byID[id]
	if !ok {
		return false, nil
	}
	h.nodes[slot].dead = true
	delete(h.byID, id)
	h.live--
	if h.live == 0 {
		h.resetLocked()
		return true, nil
	}
	if h.opts.shouldCompact(len(h.nodes), h.live) {
		h.rebuildLocked()
	}
	return true, nil
}

// rebuildLocked reinserts the live nodes in insertion order into a fresh graph.
func (h *HNSWIndex) rebuildLocked() {
	old := h.nodes
	h.resetLocked()
	for _, n := range old {
		if !n.dead {
			h.insertLocked(n.id, n.seq, n.p)
		}
	}
}

// Contains reports whether id is indexed.
func (h *HNSWIndex) Contains(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.containsLocked(id)
}

func (h *HNSWIndex) containsLocked(id string) bool {
	_, ok := h.byID[id]
	return ok
}

// IDs returns the live ids in insertion order.
func (h *HNSWIndex) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, h.live)
	for _, n := range h.nodes {
		if !n.dead {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// Size returns the number of live vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live
}

// Close releases the graph.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
	return nil
}
