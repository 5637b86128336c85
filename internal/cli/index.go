package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hyperjump/tsrag/internal/extract"
)

var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index every series file under a directory",
	Long: `Index the CSV, TSV and XLSX files under a directory, one document per
file. Files are matched by watch.patterns and watch.exclude. Unchanged files
are skipped, so running it again only picks up new and modified files.

Examples:
  tsrag index .
  tsrag index /data/metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	components, err := initializeComponents(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	fmt.Printf("Scanning %s...\n", path)
	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)
	progress := func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = newProgressBar(total)
		}
		_ = bar.Set(done)
		if elapsed := time.Since(startTime); done > 0 && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	walker := extract.NewWalker(cfg.Watch.Patterns, cfg.Watch.Exclude)
	summary, indexErr := components.Indexer.IndexDirectory(cmd.Context(), path, walker, progress)
	if err := components.Persist(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files indexed:  %d\n", summary.Indexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", summary.Unchanged)
	fmt.Printf("  Files failed:   %d\n", summary.Failed)
	if indexErr != nil {
		fmt.Printf("\nWarnings:\n  %v\n", indexErr)
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}
