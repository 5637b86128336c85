package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save or load the configured snapshot",
	Long: `Snapshots go to snapshot.s3 when a bucket is configured, otherwise to
storage.snapshot_path.`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write every document to the snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshots(cmd, func(c *Components) error {
			n, err := c.Snapshots.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d documents to %s\n", n, c.Snapshots.Location())
			return nil
		})
	},
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Restore the snapshot into an empty persistent store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshots(cmd, func(c *Components) error {
			if !c.Storage.Persistent() {
				return errors.New("the memory backend restores its snapshot automatically; configure sqlite or bolt to load into")
			}
			n, err := c.Snapshots.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d documents from %s\n", n, c.Snapshots.Location())
			return nil
		})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func withSnapshots(cmd *cobra.Command, fn func(*Components) error) error {
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
	if components.Snapshots == nil {
		return errors.New("no snapshot configured: set storage.snapshot_path or snapshot.s3.bucket")
	}
	return fn(components)
}
