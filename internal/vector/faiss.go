//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/hyperjump/tsrag/pkg/utils"
)

// FAISSIndex is an exact index backed by a FAISS IndexFlatL2.
//
// FAISS labels are positions in the entries slice. Removal tombstones the entry
// and the FAISS index is reset and refilled from the live entries once
// tombstones cross the compaction threshold. Cosine distance is served by
// normalizing vectors and halving the squared L2 distance.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	opts       options
	entries    []faissEntry
	byID       map[string]int
	live       int
	nextSeq    uint64
	mu         sync.RWMutex
}

type faissEntry struct {
	id   string
	seq  uint64
	vec  []float32
	dead bool
}

// NewFAISSIndex creates a FAISS flat L2 index with the given dimension.
func NewFAISSIndex(dimensions int, opts ...Option) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var flat *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{
		index:      (*C.FaissIndex)(unsafe.Pointer(flat)),
		dimensions: dimensions,
		opts:       o,
		byID:       make(map[string]int),
	}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

func (f *FAISSIndex) prepare(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	if f.opts.metric == MetricCosine {
		utils.NormalizeL2(out)
	}
	return out
}

func (f *FAISSIndex) addLocked(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	flat := make([]float32, 0, len(vectors)*f.dimensions)
	for _, v := range vectors {
		flat = append(flat, v...)
	}
	ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Add appends vectors with the given IDs.
func (f *FAISSIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := validateBatch(ids, vectors, f.dimensions, f.containsLocked); err != nil {
		return err
	}
	prepared := make([][]float32, len(vectors))
	for i, v := range vectors {
		prepared[i] = f.prepare(v)
	}
	if err := f.addLocked(prepared); err != nil {
		return err
	}
	for i, id := range ids {
		f.byID[id] = len(f.entries)
		f.entries = append(f.entries, faissEntry{id: id, seq: f.nextSeq, vec: prepared[i]})
		f.nextSeq++
		f.live++
	}
	return nil
}

// Search returns the k nearest live vectors.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	if err := validateQuery(query, k, f.dimensions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.live == 0 {
		return []*VectorResult{}, nil
	}
	if k > f.live {
		k = f.live
	}

	ntotal := len(f.entries)
	fetch := k + (ntotal - f.live)
	if filter != nil || fetch > ntotal {
		fetch = ntotal
	}
	q := f.prepare(query)
	distances := make([]float32, fetch)
	labels := make([]int64, fetch)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(fetch),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	cands := make([]candidate, 0, k)
	for i, label := range labels {
		if label < 0 || int(label) >= ntotal {
			continue
		}
		e := f.entries[label]
		if e.dead || (filter != nil && !filter(e.id)) {
			continue
		}
		cands = append(cands, candidate{slot: int(label), seq: e.seq, distance: f.fromSquared(distances[i])})
	}
	sortCandidates(cands)
	if len(cands) > k {
		cands = cands[:k]
	}
	results := make([]*VectorResult, len(cands))
	for i, c := range cands {
		results[i] = &VectorResult{ID: f.entries[c.slot].id, Distance: c.distance}
	}
	return results, nil
}

func (f *FAISSIndex) fromSquared(d float32) float64 {
	if f.opts.metric == MetricCosine {
		return float64(d) / 2
	}
	return math.Sqrt(float64(d))
}

// Remove tombstones id and refills the FAISS index when the tombstone threshold is crossed.
func (f *FAISSIndex) Remove(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	f.entries[i].dead = true
	delete(f.byID, id)
	f.live--
	if f.opts.shouldCompact(len(f.entries), f.live) {
		if err := f.compactLocked(); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (f *FAISSIndex) compactLocked() error {
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	entries := make([]faissEntry, 0, f.live)
	vectors := make([][]float32, 0, f.live)
	for _, e := range f.entries {
		if e.dead {
			continue
		}
		f.byID[e.id] = len(entries)
		entries = append(entries, e)
		vectors = append(vectors, e.vec)
	}
	f.entries = entries
	return f.addLocked(vectors)
}

// Contains reports whether id is indexed.
func (f *FAISSIndex) Contains(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.containsLocked(id)
}

func (f *FAISSIndex) containsLocked(id string) bool {
	_, ok := f.byID[id]
	return ok
}

// IDs returns the live ids in insertion order.
func (f *FAISSIndex) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, f.live)
	for _, e := range f.entries {
		if !e.dead {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// Size returns the number of live vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the distance metric.
func (f *FAISSIndex) Metric() Metric {
	return f.opts.metric
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
