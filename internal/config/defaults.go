package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 50758
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Embedding.TargetLength == 0 {
		cfg.Embedding.TargetLength = 256
	}
	if cfg.Embedding.Features == nil {
		cfg.Embedding.Features = []string{"mean", "std", "min", "max", "count"}
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "euclidean"
	}
	if cfg.Index.CompactRatio == 0 {
		cfg.Index.CompactRatio = 0.25
	}
	if cfg.Index.CompactMinSlots == 0 {
		cfg.Index.CompactMinSlots = 64
	}
	if cfg.Index.HNSW.M == 0 {
		cfg.Index.HNSW.M = 16
	}
	if cfg.Index.HNSW.EfConstruction == 0 {
		cfg.Index.HNSW.EfConstruction = 200
	}
	if cfg.Index.HNSW.EfSearch == 0 {
		cfg.Index.HNSW.EfSearch = 64
	}
	if cfg.Index.HNSW.Seed == 0 {
		cfg.Index.HNSW.Seed = 42
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Search.DuplicatePolicy == "" {
		cfg.Search.DuplicatePolicy = "overwrite"
	}
	if cfg.Snapshot.S3.Region == "" {
		cfg.Snapshot.S3.Region = "us-east-1"
	}
	if cfg.Watch.Patterns == nil {
		cfg.Watch.Patterns = []string{"**/*.csv", "**/*.xlsx"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	if cfg.Analytics.AnomalyWindow == 0 {
		cfg.Analytics.AnomalyWindow = 24
	}
	if cfg.Analytics.AnomalyThreshold == 0 {
		cfg.Analytics.AnomalyThreshold = 3
	}
	if cfg.Analytics.MaxPeriod == 0 {
		cfg.Analytics.MaxPeriod = 168
	}
	if cfg.Analytics.PatternWindow == 0 {
		cfg.Analytics.PatternWindow = 24
	}
	if cfg.Analytics.Patterns == 0 {
		cfg.Analytics.Patterns = 5
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
