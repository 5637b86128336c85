package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tsrag/internal/fileid"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id|path>",
	Short: "Delete a document",
	Long: `Delete a document by id. When no document has that id, the argument is
treated as the path of an indexed file and that file's document is deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	removed, err := deleteDocument(cmd.Context(), components, args[0])
	if err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}
	if !removed {
		return fmt.Errorf("document not found: %s", args[0])
	}
	if err := components.Persist(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", args[0])
	return nil
}

// deleteDocument removes target as a document id, falling back to the
// document indexed from target as a file path.
func deleteDocument(ctx context.Context, c *Components, target string) (bool, error) {
	removed, err := c.Engine.RemoveDocument(ctx, target)
	if err != nil || removed || fileid.IsFileDocID(target) {
		return removed, err
	}
	return c.Indexer.RemoveFile(ctx, target)
}
