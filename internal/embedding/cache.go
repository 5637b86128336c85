package embedding

import (
	"container/list"
	"encoding/binary"
	"math"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// EmbeddingCache is an LRU cache for embeddings keyed by the series contents.
type EmbeddingCache struct {
	capacity int
	cache    map[uint64]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key    uint64
	series []float64
	value  []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[uint64]*list.Element),
		lru:      list.New(),
	}
}

// SeriesKey hashes the exact bit pattern of every sample.
func SeriesKey(series []float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range series {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Get returns a copy of the cached embedding for series if present.
func (c *EmbeddingCache) Get(series []float64) ([]float32, bool) {
	key := SeriesKey(series)
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if !slices.Equal(entry.series, series) {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return slices.Clone(entry.value), true
}

// Set stores the embedding for series, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(series []float64, value []float32) {
	key := SeriesKey(series)
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.series = slices.Clone(series)
		entry.value = slices.Clone(value)
		return
	}

	entry := &cacheEntry{key: key, series: slices.Clone(series), value: slices.Clone(value)}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
