package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperjump/tsrag/internal/search"
	"github.com/hyperjump/tsrag/internal/storage"
)

var (
	statusServer string
	statusOutput string
)

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	Engine         *search.Stats `json:"engine"`
	Backend        string        `json:"storage_backend"`
	DatabasePath   string        `json:"database_path,omitempty"`
	Snapshot       string        `json:"snapshot,omitempty"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine, storage and index status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:50758", `server URL (empty = read the store directly)`)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", string(OutputText), "output format: text or json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := ParseOutputFormat(statusOutput)
	if err != nil {
		return err
	}
	var status statusResponse
	if statusServer != "" {
		if err := getJSON(cmd.Context(), statusServer+"/api/v1/status", &status); err != nil {
			return err
		}
	} else {
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
		if status.Engine, err = components.Engine.Stats(cmd.Context()); err != nil {
			return err
		}
		status.Backend = cfg.Storage.Backend
		status.DatabasePath = cfg.Storage.DatabasePath
		if components.Snapshots != nil {
			status.Snapshot = components.Snapshots.Location()
		}
		paths := append(storage.SidecarPaths(cfg.Storage.DatabasePath), cfg.Storage.SnapshotPath)
		if n, err := storage.DiskUsageBytes(paths...); err == nil && n > 0 {
			status.DiskUsageBytes = &n
		}
	}
	if format == OutputJSON {
		return printJSON(status)
	}
	writeStatusText(cmd.OutOrStdout(), &status)
	return nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	if s.Engine != nil {
		fmt.Fprintf(w, "Documents:        %d\n", s.Engine.Documents)
		fmt.Fprintf(w, "Indexed vectors:  %d\n", s.Engine.Indexed)
		fmt.Fprintf(w, "Index:            %s (%s)\n", s.Engine.IndexType, s.Engine.Metric)
		fmt.Fprintf(w, "Dimensions:       %d\n", s.Engine.Dimensions)
		fmt.Fprintf(w, "Embedder:         %s\n", s.Engine.Fingerprint)
		fmt.Fprintf(w, "Duplicate policy: %s\n", s.Engine.DuplicatePolicy)
	}
	fmt.Fprintf(w, "Storage:          %s", s.Backend)
	if s.DatabasePath != "" {
		fmt.Fprintf(w, " (%s)", s.DatabasePath)
	}
	fmt.Fprintln(w)
	if s.Snapshot != "" {
		fmt.Fprintf(w, "Snapshot:         %s\n", s.Snapshot)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:       %s\n", formatBytes(*s.DiskUsageBytes))
	}
}
