package vector

import (
	"fmt"

	"github.com/viant/vec/search"
)

// Metric selects the distance function of an index. It is fixed for the lifetime of the index.
type Metric string

const (
	// MetricEuclidean is the L2 distance. It is the default.
	MetricEuclidean Metric = "euclidean"
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"
)

// ParseMetric returns the metric named s; the empty string selects euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricEuclidean, "l2":
		return MetricEuclidean, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown metric: %s (supported: euclidean, cosine)", s)
	}
}

// point is a stored vector with its magnitude cached to detect zero vectors.
type point struct {
	vec []float32
	mag float32
}

func newPoint(vec []float32) point {
	v := make([]float32, len(vec))
	copy(v, vec)
	return point{vec: v, mag: search.Float32s(v).Magnitude()}
}

// distance returns the distance between two points under m.
func (m Metric) distance(a, b point) float64 {
	switch m {
	case MetricCosine:
		if a.mag == 0 || b.mag == 0 {
			if a.mag == b.mag {
				return 0
			}
			return 1
		}
		return float64(search.Float32s(a.vec).CosineDistance(b.vec))
	default:
		return float64(search.Float32s(a.vec).EuclideanDistance(b.vec))
	}
}

// Distance computes the distance between two vectors of equal length under m.
func Distance(m Metric, a, b []float32) float64 {
	return m.distance(newPoint(a), newPoint(b))
}
