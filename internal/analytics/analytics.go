// Package analytics computes contextual statistics for stored series: shape
// features, seasonal periods, recurring patterns and anomalous samples.
package analytics

import (
	"math"
	"sort"

	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// Defaults match hourly data: a one-day anomaly window and a one-week period search.
const (
	DefaultAnomalyWindow    = 24
	DefaultAnomalyThreshold = 3.0
	DefaultMaxPeriod        = 168
	DefaultPatternWindow    = 24
	DefaultPatterns         = 5
	entropyBins             = 10
	minPeakStrength         = 0.1
)

// Params tunes Summarize.
type Params struct {
	AnomalyWindow    int
	AnomalyThreshold float64
	MaxPeriod        int
	PatternWindow    int
	Patterns         int
}

// DefaultParams returns the default analytics parameters.
func DefaultParams() Params {
	return Params{
		AnomalyWindow:    DefaultAnomalyWindow,
		AnomalyThreshold: DefaultAnomalyThreshold,
		MaxPeriod:        DefaultMaxPeriod,
		PatternWindow:    DefaultPatternWindow,
		Patterns:         DefaultPatterns,
	}
}

func (p Params) withDefaults() Params {
	if p.AnomalyWindow <= 0 {
		p.AnomalyWindow = DefaultAnomalyWindow
	}
	if p.AnomalyThreshold <= 0 {
		p.AnomalyThreshold = DefaultAnomalyThreshold
	}
	if p.MaxPeriod <= 0 {
		p.MaxPeriod = DefaultMaxPeriod
	}
	if p.PatternWindow <= 0 {
		p.PatternWindow = DefaultPatternWindow
	}
	if p.Patterns <= 0 {
		p.Patterns = DefaultPatterns
	}
	return p
}

// Summarize computes features, seasonal periods, patterns and anomalies of series.
func Summarize(series []float64, p Params) *models.Analytics {
	p = p.withDefaults()
	seasons := DetectSeasonality(series, p.MaxPeriod)
	periods := make([]int, len(seasons))
	for i, s := range seasons {
		periods[i] = s.Period
	}
	return &models.Analytics{
		Features:    Features(series, p.MaxPeriod),
		Periods:     periods,
		Anomalies:   DetectAnomalies(series, p.AnomalyWindow, p.AnomalyThreshold),
		Patterns:    ExtractPatterns(series, p.PatternWindow, p.Patterns),
		SeriesCount: len(series),
	}
}

// Features returns mean, std, min, max, skewness, excess kurtosis, trend (least
// squares slope per sample), seasonality_strength and entropy (bits, 10-bin histogram).
func Features(series []float64, maxPeriod int) map[string]float64 {
	n := len(series)
	out := map[string]float64{}
	if n == 0 {
		return out
	}
	mean := utils.Mean(series)
	std := utils.StdDev(series, mean)
	lo, hi := utils.MinMax(series)

	var m3, m4 float64
	for _, v := range series {
		d := v - mean
		m3 += d * d * d
		m4 += d * d * d * d
	}
	var skew, kurt float64
	if std > 0 {
		variance := std * std
		skew = (m3 / float64(n)) / (variance * std)
		kurt = (m4/float64(n))/(variance*variance) - 3
	}

	strength := 0.0
	if seasons := DetectSeasonality(series, maxPeriod); len(seasons) > 0 {
		strength = seasons[0].Strength
	}

	out["mean"] = mean
	out["std"] = std
	out["min"] = lo
	out["max"] = hi
	out["skewness"] = skew
	out["kurtosis"] = kurt
	out["trend"] = Trend(series)
	out["seasonality_strength"] = strength
	out["entropy"] = Entropy(series, entropyBins)
	return out
}

// Trend returns the least squares slope of series against its sample index.
func Trend(series []float64) float64 {
	n := float64(len(series))
	if len(series) < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range series {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Entropy returns the Shannon entropy in bits of a histogram of series.
func Entropy(series []float64, bins int) float64 {
	if len(series) == 0 || bins <= 0 {
		return 0
	}
	lo, hi := utils.MinMax(series)
	if hi == lo {
		return 0
	}
	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range series {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}
	var h float64
	total := float64(len(series))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

// Seasonality is a candidate period and its autocorrelation.
type Seasonality struct {
	Period   int     `json:"period"`
	Strength float64 `json:"strength"`
}

// Autocorrelation returns the normalized autocorrelation of series for lags
// 0..maxLag (acf[0] == 1). A constant series yields all zeros past lag 0.
func Autocorrelation(series []float64, maxLag int) []float64 {
	n := len(series)
	if n == 0 {
		return nil
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	z := utils.ZNormalize(series)
	acf := make([]float64, maxLag+1)
	var denom float64
	for _, v := range z {
		denom += v * v
	}
	if denom == 0 {
		acf[0] = 1
		return acf
	}
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += z[i] * z[i+lag]
		}
		acf[lag] = sum / denom
	}
	return acf
}

// DetectSeasonality returns the local maxima of the autocorrelation up to
// maxPeriod whose strength exceeds 0.1, strongest first.
func DetectSeasonality(series []float64, maxPeriod int) []Seasonality {
	acf := Autocorrelation(series, maxPeriod)
	var out []Seasonality
	for lag := 2; lag < len(acf)-1; lag++ {
		if acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] && acf[lag] > minPeakStrength {
			out = append(out, Seasonality{Period: lag, Strength: acf[lag]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// DetectAnomalies z-normalizes series and flags the samples whose distance
// from the trailing rolling mean exceeds threshold. The first window-1 samples
// are compared against the first full window.
func DetectAnomalies(series []float64, window int, threshold float64) []models.Anomaly {
	n := len(series)
	if n == 0 || window <= 0 {
		return nil
	}
	if window > n {
		window = n
	}
	z := utils.ZNormalize(series)
	rolling := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += z[i]
		if i >= window {
			sum -= z[i-window]
		}
		if i >= window-1 {
			rolling[i] = sum / float64(window)
		}
	}
	for i := 0; i < window-1; i++ {
		rolling[i] = rolling[window-1]
	}

	var out []models.Anomaly
	for i := range z {
		if math.Abs(z[i]-rolling[i]) > threshold {
			out = append(out, models.Anomaly{Index: i, Value: series[i]})
		}
	}
	return out
}

const (
	// maxPatternWindows bounds the windows clustered by ExtractPatterns; longer
	// series are sampled with a larger stride.
	maxPatternWindows = 1024
	kmeansIterations  = 50
)

// ExtractPatterns slides a window over the z-normalized series, clusters the
// windows with k-means into at most nPatterns groups and returns each group's
// mean window with the fraction of windows it holds, most frequent first.
// Centroids are seeded by farthest-point selection from the first window, so
// the result is deterministic. Series shorter than window have no patterns.
func ExtractPatterns(series []float64, window, nPatterns int) []models.Pattern {
	n := len(series)
	if window <= 0 || nPatterns <= 0 || n < window {
		return nil
	}
	z := utils.ZNormalize(series)
	count := n - window + 1
	stride := (count + maxPatternWindows - 1) / maxPatternWindows
	windows := make([][]float64, 0, count/stride+1)
	for start := 0; start < count; start += stride {
		windows = append(windows, z[start:start+window])
	}

	centroids := seedCentroids(windows, min(nPatterns, len(windows)))
	assign := make([]int, len(windows))
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, w := range windows {
			if c := nearestCentroid(centroids, w); c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(centroids, windows, assign)
	}

	sizes := make([]int, len(centroids))
	first := make([]int, len(centroids))
	for c := range first {
		first[c] = -1
	}
	for i, c := range assign {
		if first[c] < 0 {
			first[c] = i
		}
		sizes[c]++
	}
	order := make([]int, 0, len(centroids))
	for c, size := range sizes {
		if size > 0 {
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := order[a], order[b]
		if sizes[ca] != sizes[cb] {
			return sizes[ca] > sizes[cb]
		}
		return first[ca] < first[cb]
	})
	out := make([]models.Pattern, len(order))
	for i, c := range order {
		out[i] = models.Pattern{
			Pattern:   centroids[c],
			Frequency: float64(sizes[c]) / float64(len(windows)),
		}
	}
	return out
}

// seedCentroids picks up to k windows, each the farthest from those already
// chosen. It stops early when every remaining window duplicates a centroid.
func seedCentroids(windows [][]float64, k int) [][]float64 {
	centroids := [][]float64{append([]float64(nil), windows[0]...)}
	nearest := make([]float64, len(windows))
	for i, w := range windows {
		nearest[i] = squaredDistance(w, centroids[0])
	}
	for len(centroids) < k {
		best, bestDist := -1, 0.0
		for i, d := range nearest {
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			break
		}
		c := append([]float64(nil), windows[best]...)
		centroids = append(centroids, c)
		for i, w := range windows {
			nearest[i] = min(nearest[i], squaredDistance(w, c))
		}
	}
	return centroids
}

func nearestCentroid(centroids [][]float64, w []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(w, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// updateCentroids moves each centroid to the mean of its windows. A centroid
// without windows stays where it is.
func updateCentroids(centroids, windows [][]float64, assign []int) {
	sums := make([][]float64, len(centroids))
	sizes := make([]int, len(centroids))
	for i, w := range windows {
		c := assign[i]
		if sums[c] == nil {
			sums[c] = make([]float64, len(w))
		}
		sizes[c]++
		for j, v := range w {
			sums[c][j] += v
		}
	}
	for c, size := range sizes {
		if size == 0 {
			continue
		}
		for j, v := range sums[c] {
			centroids[c][j] = v / float64(size)
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
