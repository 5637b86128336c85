// Package config provides configuration loading and structs for the tsrag server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Watch     WatchConfig     `yaml:"watch"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the document store backend and its paths.
// DatabasePath is ignored by the memory backend.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// EmbeddingConfig holds resample embedder settings.
type EmbeddingConfig struct {
	TargetLength int      `yaml:"target_length"`
	Features     []string `yaml:"features"`
	Normalize    bool     `yaml:"normalize"`
	CacheSize    int      `yaml:"cache_size"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Type            string     `yaml:"type"`
	Metric          string     `yaml:"metric"`
	CompactRatio    float64    `yaml:"compact_ratio"`
	CompactMinSlots int        `yaml:"compact_min_slots"`
	HNSW            HNSWConfig `yaml:"hnsw"`
}

// HNSWConfig holds graph parameters for the hnsw index type.
type HNSWConfig struct {
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
	Seed           uint64 `yaml:"seed"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	DefaultK        int    `yaml:"default_k"`
	// MaxK limits k on HTTP search requests. The engine itself does not cap k.
	MaxK            int    `yaml:"max_k"`
	DuplicatePolicy string `yaml:"duplicate_policy"`
}

// SnapshotConfig holds remote snapshot settings. An empty bucket disables S3.
type SnapshotConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures an S3 (or S3 compatible) snapshot target.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Enabled reports whether an S3 bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Patterns    []string `yaml:"patterns"`
	Exclude     []string `yaml:"exclude"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// AnalyticsConfig tunes anomaly, seasonality and pattern detection.
type AnalyticsConfig struct {
	AnomalyWindow    int     `yaml:"anomaly_window"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold"`
	MaxPeriod        int     `yaml:"max_period"`
	PatternWindow    int     `yaml:"pattern_window"`
	Patterns         int     `yaml:"patterns"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects unknown backend, index, metric and policy values and
// out-of-range numbers.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "bolt":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required for backend %q", c.Storage.Backend)
	}
	switch c.Index.Type {
	case "flat", "hnsw", "faiss":
	default:
		return fmt.Errorf("index.type: unknown index type %q", c.Index.Type)
	}
	switch c.Index.Metric {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("index.metric: unknown metric %q", c.Index.Metric)
	}
	if c.Index.CompactRatio <= 0 || c.Index.CompactRatio > 1 {
		return fmt.Errorf("index.compact_ratio must be in (0, 1], got %v", c.Index.CompactRatio)
	}
	switch c.Search.DuplicatePolicy {
	case "overwrite", "reject":
	default:
		return fmt.Errorf("search.duplicate_policy: unknown policy %q", c.Search.DuplicatePolicy)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)", c.Search.DefaultK, c.Search.MaxK)
	}
	if c.Embedding.TargetLength < 1 {
		return fmt.Errorf("embedding.target_length must be positive")
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir,
// "~/" is the home directory, and other relative paths are relative to the home directory.
// Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
