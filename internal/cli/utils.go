package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d of %d series in %dms (k=%d)\n\n",
		response.Total, response.Corpus, response.QueryTime, response.K)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", result.Rank, result.Distance)
	fmt.Fprintf(w, "ID: %s\n", result.ID)
	if meta := formatMetadata(result.Metadata); meta != "" {
		fmt.Fprintf(w, "Metadata: %s\n", utils.Truncate(meta, 200))
	}
	if len(result.Data) > 0 {
		fmt.Fprintf(w, "Series: %s (%d points)\n", Sparkline(result.Data, 60), len(result.Data))
	}
	if a := result.Analytics; a != nil {
		fmt.Fprintf(w, "Mean %.3f | Std %.3f | Trend %.4f",
			a.Features["mean"], a.Features["std"], a.Features["trend"])
		if len(a.Periods) > 0 {
			fmt.Fprintf(w, " | Period %d", a.Periods[0])
		}
		fmt.Fprintf(w, " | Anomalies %d\n", len(a.Anomalies))
		if len(a.Patterns) > 0 {
			p := a.Patterns[0]
			fmt.Fprintf(w, "Top pattern: %s (%.0f%% of windows)\n", Sparkline(p.Pattern, 24), p.Frequency*100)
		}
	}
	fmt.Fprintln(w)
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, " ")
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws series with at most width block characters. Longer series
// are downsampled by bucket means.
func Sparkline(series []float64, width int) string {
	if len(series) == 0 || width <= 0 {
		return ""
	}
	if len(series) > width {
		buckets := make([]float64, width)
		for i := range buckets {
			lo, hi := i*len(series)/width, (i+1)*len(series)/width
			buckets[i] = utils.Mean(series[lo:hi])
		}
		series = buckets
	}
	lo, hi := utils.MinMax(series)
	var b strings.Builder
	for _, v := range series {
		i := 0
		if hi > lo {
			i = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkTicks)-1)))
		}
		b.WriteRune(sparkTicks[i])
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
