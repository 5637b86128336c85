package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/models"
)

var (
	searchK             int
	searchServer        string
	searchOutput        string
	searchColumn        string
	searchIncludeData   bool
	searchWithAnalytics bool
	searchMetadata      string
)

var searchCmd = &cobra.Command{
	Use:   "search <file>",
	Short: "Find the stored series most similar to the series in a file",
	Long: `Search with the series in a CSV, TSV or XLSX file. The series is read
locally and sent to the running server; pass --server "" to search the
configured store directly.

Examples:
  tsrag search query.csv
  tsrag search -k 10 --column load query.xlsx
  tsrag search --metadata "site:berlin" --output json query.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringVar(&searchServer, "server", "http://localhost:50758", `server URL (empty = search the store directly)`)
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", string(OutputText), "output format: text or json")
	searchCmd.Flags().StringVar(&searchColumn, "column", "", "column to read (default: first numeric column)")
	searchCmd.Flags().BoolVar(&searchIncludeData, "data", false, "include the stored series in results")
	searchCmd.Flags().BoolVar(&searchWithAnalytics, "analytics", false, "include analytics in results")
	searchCmd.Flags().StringVar(&searchMetadata, "metadata", "", "metadata query restricting the candidates")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := ParseOutputFormat(searchOutput)
	if err != nil {
		return err
	}
	series, err := extract.NewExtractor(extract.WithColumn(searchColumn)).Extract(args[0])
	if err != nil {
		return err
	}
	query := &models.SearchQuery{
		Series:           series.Values,
		K:                searchK,
		IncludeData:      searchIncludeData,
		IncludeAnalytics: searchWithAnalytics,
		MetadataQuery:    searchMetadata,
	}

	var response *models.SearchResponse
	if searchServer != "" {
		response, err = searchViaHTTP(cmd.Context(), searchServer, query)
	} else {
		response, err = searchDirect(cmd.Context(), query)
	}
	if err != nil {
		return err
	}
	return WriteSearchResults(cmd.OutOrStdout(), response, format)
}

func searchDirect(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	logger.Debug("searching store directly", zap.String("backend", cfg.Storage.Backend))
	return components.Engine.Search(ctx, query)
}

func searchViaHTTP(ctx context.Context, serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := postJSON(ctx, serverURL+"/api/v1/search", query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func postJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
}

func getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func doJSON(req *http.Request, out interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
