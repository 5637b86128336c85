package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}

// AllFinite reports whether every sample is a finite number. The index of the
// first offending sample is returned when it is not.
func AllFinite(x []float64) (int, bool) {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, false
		}
	}
	return -1, true
}

// Mean returns the arithmetic mean of x, or 0 for an empty slice. The sum is
// rescaled by the largest magnitude when it overflows, so the mean of finite
// samples is finite.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / float64(len(x))
	}
	scale := maxAbs(x)
	sum = 0
	for _, v := range x {
		sum += v / scale
	}
	return sum / float64(len(x)) * scale
}

// StdDev returns the population standard deviation of x around mean. Like
// Mean it rescales when the squared deviations overflow.
func StdDev(x []float64, mean float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var ss float64
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	if !math.IsInf(ss, 0) && !math.IsNaN(ss) {
		return math.Sqrt(ss / float64(len(x)))
	}
	scale := max(maxAbs(x), math.Abs(mean))
	ss = 0
	for _, v := range x {
		d := v/scale - mean/scale
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(x))) * scale
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		m = max(m, math.Abs(v))
	}
	return m
}

// MinMax returns the smallest and largest values of x. Both are 0 for an empty slice.
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// ZNormalize returns (x - mean) / std. A constant series is only centered.
func ZNormalize(x []float64) []float64 {
	mean := Mean(x)
	std := StdDev(x, mean)
	out := make([]float64, len(x))
	for i, v := range x {
		if std > 0 {
			out[i] = v/std - mean/std
		} else {
			out[i] = v - mean
		}
	}
	return out
}
