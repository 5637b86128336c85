package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// ResampleEmbedder resamples a series onto a fixed grid by linear interpolation
// and appends statistics of the original series.
type ResampleEmbedder struct {
	cfg   Config
	dims  int
	fp    string
	cache *EmbeddingCache
}

// Option configures a ResampleEmbedder.
type Option func(*ResampleEmbedder)

// WithCache enables an LRU cache of the given capacity. Zero or negative disables it.
func WithCache(capacity int) Option {
	return func(e *ResampleEmbedder) {
		if capacity > 0 {
			e.cache = NewEmbeddingCache(capacity)
		}
	}
}

// NewResampleEmbedder validates cfg and returns an embedder for it.
func NewResampleEmbedder(cfg Config, opts ...Option) (*ResampleEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	cfg.Features = append([]Feature(nil), cfg.Features...)
	e := &ResampleEmbedder{
		cfg:  cfg,
		dims: cfg.Dimensions(),
		fp:   cfg.Fingerprint(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding of series. Empty input, non-finite samples and
// samples whose embedding does not fit in a float32 fail with ErrInvalidInput.
func (e *ResampleEmbedder) Embed(ctx context.Context, series []float64) ([]float32, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: series is empty", models.ErrInvalidInput)
	}
	if i, ok := utils.AllFinite(series); !ok {
		return nil, fmt.Errorf("%w: sample %d is not finite (%v)", models.ErrInvalidInput, i, series[i])
	}
	if e.cache != nil {
		if v, ok := e.cache.Get(series); ok {
			return v, nil
		}
	}

	values := Resample(series, e.cfg.TargetLength)
	if e.cfg.Normalize {
		values = utils.ZNormalize(values)
	}
	emb := make([]float32, 0, e.dims)
	for _, v := range values {
		emb = append(emb, float32(v))
	}
	emb = append(emb, e.features(series)...)
	for i, v := range emb {
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("%w: embedding value %d (%s) is out of float32 range", models.ErrInvalidInput, i, e.describe(i))
		}
	}

	if e.cache != nil {
		e.cache.Set(series, emb)
	}
	return emb, nil
}

// EmbedBatch calls Embed for each series.
func (e *ResampleEmbedder) EmbedBatch(ctx context.Context, series [][]float64) ([][]float32, error) {
	embeddings := make([][]float32, len(series))
	for i, s := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (e *ResampleEmbedder) features(series []float64) []float32 {
	mean := utils.Mean(series)
	lo, hi := utils.MinMax(series)
	out := make([]float32, len(e.cfg.Features))
	for i, f := range e.cfg.Features {
		var v float64
		switch f {
		case FeatureMean:
			v = mean
		case FeatureStd:
			v = utils.StdDev(series, mean)
		case FeatureMin:
			v = lo
		case FeatureMax:
			v = hi
		case FeatureCount:
			v = float64(len(series))
		}
		out[i] = float32(v)
	}
	return out
}

// describe names embedding position i.
func (e *ResampleEmbedder) describe(i int) string {
	if i < e.cfg.TargetLength {
		return fmt.Sprintf("resampled point %d", i)
	}
	return "feature " + string(e.cfg.Features[i-e.cfg.TargetLength])
}

// Dimensions returns the embedding dimension.
func (e *ResampleEmbedder) Dimensions() int {
	return e.dims
}

// Fingerprint returns the configuration fingerprint.
func (e *ResampleEmbedder) Fingerprint() string {
	return e.fp
}

// Config returns a copy of the embedder configuration.
func (e *ResampleEmbedder) Config() Config {
	cfg := e.cfg
	cfg.Features = append([]Feature(nil), e.cfg.Features...)
	return cfg
}

// Close is a no-op for ResampleEmbedder.
func (e *ResampleEmbedder) Close() error {
	return nil
}

// Resample maps series onto n points spaced uniformly over [0, 1] using linear
// interpolation. A single-sample series resamples to a constant.
func Resample(series []float64, n int) []float64 {
	out := make([]float64, n)
	if len(series) == 0 || n <= 0 {
		return out
	}
	if len(series) == 1 || n == 1 {
		for i := range out {
			out[i] = series[0]
		}
		return out
	}
	last := float64(len(series) - 1)
	step := last / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		if i == n-1 {
			pos = last
		}
		lo := int(math.Floor(pos))
		if lo >= len(series)-1 {
			out[i] = series[len(series)-1]
			continue
		}
		frac := pos - float64(lo)
		a, b := series[lo], series[lo+1]
		out[i] = a + (b-a)*frac
		if math.IsInf(out[i], 0) {
			out[i] = a*(1-frac) + b*frac
		}
	}
	return out
}
