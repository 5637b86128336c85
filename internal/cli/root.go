// Package cli implements the tsrag command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "/usr/local/etc/tsrag/config.yaml"

var (
	cfgFile   string
	debugFlag bool
	version   = "dev"

	cfg            *config.Config
	resolvedConfig string
)

var rootCmd = &cobra.Command{
	Use:   "tsrag",
	Short: "Time-series similarity search",
	Long: `tsrag embeds numeric series into fixed-length vectors and retrieves the
most similar stored series for a query series.

Example usage:
  tsrag server                      # Start the HTTP API
  tsrag add --id load load.csv      # Store a series
  tsrag index ./metrics             # Index every CSV/XLSX file under a directory
  tsrag search query.csv -k 3       # Find the 3 nearest series`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, resolvedConfig, err = loadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debugFlag {
			cfg.Debug = true
		}
		return nil
	},
}

// Execute runs the root command with the given build version.
func Execute(v string) {
	if v != "" {
		version = v
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+DefaultConfigPath+", then ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// loadConfig loads path when given. Otherwise it tries the default path and
// ./config.yaml, and falls back to built-in defaults when neither exists.
// It returns the path that was loaded, or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		c, err := config.Load(path)
		return c, path, err
	}
	candidates := []string{DefaultConfigPath}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append([]string{filepath.Join(cwd, "config.yaml")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			c, err := config.Load(p)
			return c, p, err
		}
	}
	return config.Default(), "", nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
