package vector

// Compaction defaults. A removal-heavy index rebuilds its slot arena once the
// share of tombstoned slots exceeds DefaultCompactRatio and the arena holds at
// least DefaultCompactMinSlots slots.
const (
	DefaultCompactRatio    = 0.25
	DefaultCompactMinSlots = 64
)

// HNSW defaults.
const (
	DefaultHNSWM              = 16
	DefaultHNSWEfConstruction = 200
	DefaultHNSWEfSearch       = 64
	DefaultHNSWSeed           = 42
)

type options struct {
	metric          Metric
	compactRatio    float64
	compactMinSlots int
	m               int
	efConstruction  int
	efSearch        int
	seed            uint64
}

func defaultOptions() options {
	return options{
		metric:          MetricEuclidean,
		compactRatio:    DefaultCompactRatio,
		compactMinSlots: DefaultCompactMinSlots,
		m:               DefaultHNSWM,
		efConstruction:  DefaultHNSWEfConstruction,
		efSearch:        DefaultHNSWEfSearch,
		seed:            DefaultHNSWSeed,
	}
}

// Option configures an index.
type Option func(*options)

// WithMetric sets the distance metric.
func WithMetric(m Metric) Option {
	return func(o *options) {
		if m != "" {
			o.metric = m
		}
	}
}

// WithCompaction sets the tombstone ratio and minimum arena size that trigger compaction.
func WithCompaction(ratio float64, minSlots int) Option {
	return func(o *options) {
		if ratio > 0 {
			o.compactRatio = ratio
		}
		if minSlots > 0 {
			o.compactMinSlots = minSlots
		}
	}
}

// WithHNSW sets the graph parameters of an HNSW index. Zero values keep the defaults.
func WithHNSW(m, efConstruction, efSearch int, seed uint64) Option {
	return func(o *options) {
		if m > 1 {
			o.m = m
		}
		if efConstruction > 0 {
			o.efConstruction = efConstruction
		}
		if efSearch > 0 {
			o.efSearch = efSearch
		}
		if seed != 0 {
			o.seed = seed
		}
	}
}

func (o options) shouldCompact(slots, live int) bool {
	if slots < o.compactMinSlots {
		return false
	}
	return float64(slots-live) > o.compactRatio*float64(slots)
}
