package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// PrintReport outputs a human-readable summary of one run.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Database Churn Results ---")
	if stats.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", stats.RunID)
	}
	fmt.Fprintf(w, "Total Operations:  %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Success Rate:      %.1f%%\n", stats.SuccessRate*100)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput:        %.2f ops/s\n", stats.OpsPerSec)

	fmt.Fprintf(w, "\nLatency (last %d ops):\n", stats.SampleSize)
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if stats.HistCount > 0 {
		fmt.Fprintln(w, "\nLatency (whole run):")
		fmt.Fprintf(w, "  P50:             %.1fms\n", stats.HistP50Ms)
		fmt.Fprintf(w, "  P90:             %.1fms\n", stats.HistP90Ms)
		fmt.Fprintf(w, "  P99:             %.1fms\n", stats.HistP99Ms)
		fmt.Fprintf(w, "  Samples:         %d\n", stats.HistCount)
	}

	if len(stats.Reasons) > 0 {
		fmt.Fprintln(w, "\nFailure Reasons:")
		writeReasons(w, stats.Reasons, "  ")
	}

	if len(stats.SQLStates) > 0 {
		fmt.Fprintln(w, "\nSQLSTATE Breakdown:")
		for _, row := range metrics.FlattenSQLStates(stats.SQLStates) {
			fmt.Fprintf(w, "  %s %s: %d\n", row.Code, row.Label, row.Count)
		}
	}

	if len(stats.WorkerOps) > 0 {
		fmt.Fprintln(w, "\nPer-Worker Operations:")
		for id, ops := range stats.WorkerOps {
			fmt.Fprintf(w, "  worker %d: %d\n", id, ops)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// ReasonRow pairs a friendly failure reason with its occurrence count.
type ReasonRow struct {
	Name  string
	Count int
}

// reasonRows converts the raw failure-reason map into display rows sorted
// by descending count, then name.
func reasonRows(reasons map[string]int) []ReasonRow {
	rows := make([]ReasonRow, 0, len(reasons))
	for name, count := range reasons {
		rows = append(rows, ReasonRow{Name: metrics.FriendlyReasonName(name), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

func writeReasons(w io.Writer, reasons map[string]int, indent string) {
	for _, r := range reasonRows(reasons) {
		fmt.Fprintf(w, "%s- %s: %d\n", indent, r.Name, r.Count)
	}
}
