package embedding

import (
	"fmt"
	"strconv"
	"strings"
)

// Feature is a statistic of the raw series appended after the resampled values.
type Feature string

const (
	FeatureMean  Feature = "mean"
	FeatureStd   Feature = "std"
	FeatureMin   Feature = "min"
	FeatureMax   Feature = "max"
	FeatureCount Feature = "count"
)

// DefaultTargetLength is the resampled length used when none is configured.
const DefaultTargetLength = 256

// DefaultFeatures is the feature set appended when none is configured.
var DefaultFeatures = []Feature{FeatureMean, FeatureStd, FeatureMin, FeatureMax, FeatureCount}

const algorithmVersion = "resample-linear/v1"

// Config describes an embedder. Two embedders with equal configs produce identical output.
type Config struct {
	TargetLength int
	Features     []Feature
	// Normalize z-normalizes the resampled values. Features always use the raw series.
	Normalize bool
}

// DefaultConfig returns the default embedder configuration.
func DefaultConfig() Config {
	return Config{
		TargetLength: DefaultTargetLength,
		Features:     append([]Feature(nil), DefaultFeatures...),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TargetLength <= 0 {
		return fmt.Errorf("target length must be positive, got %d", c.TargetLength)
	}
	seen := make(map[Feature]bool, len(c.Features))
	for _, f := range c.Features {
		switch f {
		case FeatureMean, FeatureStd, FeatureMin, FeatureMax, FeatureCount:
		default:
			return fmt.Errorf("unknown feature %q", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Dimensions returns the length of every embedding produced under this config.
func (c Config) Dimensions() int {
	return c.TargetLength + len(c.Features)
}

// Fingerprint renders the config as a stable string stored alongside embeddings.
func (c Config) Fingerprint() string {
	names := make([]string, len(c.Features))
	for i, f := range c.Features {
		names[i] = string(f)
	}
	return algorithmVersion + ";L=" + strconv.Itoa(c.TargetLength) +
		";f=" + strings.Join(names, ",") + ";z=" + strconv.FormatBool(c.Normalize)
}

// ParseFeatures converts configured names into features, lower-casing and trimming them.
func ParseFeatures(names []string) ([]Feature, error) {
	out := make([]Feature, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, Feature(n))
	}
	cfg := Config{TargetLength: 1, Features: out}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
