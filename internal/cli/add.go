package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/models"
)

var (
	addID       string
	addColumn   string
	addMetadata string
	addNoData   bool
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Store the series in a file",
	Long: `Store the series in a CSV, TSV or XLSX file as one document.
Without --id a random id is generated.

Examples:
  tsrag add --id berlin-load load.csv
  tsrag add --metadata '{"site":"berlin"}' --column load meter.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "document id (default: random)")
	addCmd.Flags().StringVar(&addColumn, "column", "", "column to read (default: first numeric column)")
	addCmd.Flags().StringVar(&addMetadata, "metadata", "", "metadata as a JSON object")
	addCmd.Flags().BoolVar(&addNoData, "no-data", false, "store only the embedding, not the raw series")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	metadata := map[string]interface{}{}
	if addMetadata != "" {
		if err := json.Unmarshal([]byte(addMetadata), &metadata); err != nil {
			return fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
	}
	series, err := extract.NewExtractor(extract.WithColumn(addColumn)).Extract(args[0])
	if err != nil {
		return err
	}
	metadata["file_name"] = filepath.Base(args[0])
	if series.Column != "" {
		metadata["column"] = series.Column
	}
	keep := !addNoData

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

	doc, err := components.Engine.AddSeries(cmd.Context(), &models.DocumentInput{
		ID:       addID,
		Series:   series.Values,
		Metadata: metadata,
		KeepData: &keep,
	})
	if err != nil {
		return err
	}
	if err := components.Persist(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Document stored: %s (%d points", doc.ID, len(series.Values))
	if series.Skipped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d rows skipped", series.Skipped)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ")")
	return nil
}
