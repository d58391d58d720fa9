package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

func TestPrintReportBasic(t *testing.T) {
	stats := metrics.Stats{
		Total:       100,
		Successes:   95,
		Failures:    5,
		SuccessRate: 0.95,
		OpsPerSec:   50.0,
		Elapsed:     2 * time.Second,
		SampleSize:  100,
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	for _, want := range []string{
		"Total Operations:  100",
		"Successful:        95",
		"Failed:            5",
		"Success Rate:      95.0%",
		"Throughput:        50.00 ops/s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
}

func TestPrintReportRunID(t *testing.T) {
	stats := metrics.Stats{Total: 1, RunID: "01HZX5W9K3T4R8V2M6N7P9Q0S1"}

	var buf bytes.Buffer
	PrintReport(&buf, stats)
	if !strings.Contains(buf.String(), "Run ID:            01HZX5W9K3T4R8V2M6N7P9Q0S1") {
		t.Errorf("expected run ID line:\n%s", buf.String())
	}

	buf.Reset()
	stats.RunID = ""
	PrintReport(&buf, stats)
	if strings.Contains(buf.String(), "Run ID:") {
		t.Errorf("run ID line should be omitted when empty:\n%s", buf.String())
	}
}

func TestPrintReportWholeRunSection(t *testing.T) {
	stats := metrics.Stats{
		Total:     1000,
		HistP50Ms: 12.5,
		HistP90Ms: 40.0,
		HistP99Ms: 95.5,
		HistCount: 1000,
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	if !strings.Contains(output, "Latency (whole run):") {
		t.Errorf("expected whole-run latency section:\n%s", output)
	}
	if !strings.Contains(output, "P50:             12.5ms") {
		t.Errorf("expected histogram p50:\n%s", output)
	}
	if !strings.Contains(output, "Samples:         1000") {
		t.Errorf("expected histogram sample count:\n%s", output)
	}

	buf.Reset()
	stats.HistCount = 0
	PrintReport(&buf, stats)
	if strings.Contains(buf.String(), "Latency (whole run):") {
		t.Errorf("whole-run section should be omitted without samples:\n%s", buf.String())
	}
}

func TestPrintReportFailureReasons(t *testing.T) {
	stats := metrics.Stats{
		Total:    100,
		Failures: 12,
		Reasons: map[string]int{
			"*pgconn.PgError":     10,
			"*runner.NoKeysError": 2,
		},
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	if !strings.Contains(output, "Failure Reasons:") {
		t.Fatalf("expected failure reasons section:\n%s", output)
	}
	if !strings.Contains(output, "- PostgreSQL server error: 10") {
		t.Errorf("expected friendly reason name:\n%s", output)
	}
	if !strings.Contains(output, "- Empty key sample: 2") {
		t.Errorf("expected friendly reason name:\n%s", output)
	}

	// Higher counts come first.
	first := strings.Index(output, "PostgreSQL server error")
	second := strings.Index(output, "Empty key sample")
	if first == -1 || second == -1 || first > second {
		t.Errorf("reasons not sorted by count:\n%s", output)
	}
}

func TestPrintReportSQLStates(t *testing.T) {
	stats := metrics.Stats{
		Total:    100,
		Failures: 5,
		SQLStates: map[string]int{
			"40P01": 3,
			"57014": 2,
		},
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	if !strings.Contains(output, "SQLSTATE Breakdown:") {
		t.Fatalf("expected SQLSTATE section:\n%s", output)
	}
	if !strings.Contains(output, "40P01 deadlock detected: 3") {
		t.Errorf("expected labeled deadlock row:\n%s", output)
	}
	if !strings.Contains(output, "57014 query canceled: 2") {
		t.Errorf("expected labeled cancel row:\n%s", output)
	}
}

func TestPrintReportWorkerOps(t *testing.T) {
	stats := metrics.Stats{
		Total:     30,
		WorkerOps: []int64{10, 12, 8},
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	if !strings.Contains(output, "Per-Worker Operations:") {
		t.Fatalf("expected per-worker section:\n%s", output)
	}
	if !strings.Contains(output, "worker 0: 10") || !strings.Contains(output, "worker 2: 8") {
		t.Errorf("expected worker rows:\n%s", output)
	}
}

func TestPrintJSONReport(t *testing.T) {
	stats := metrics.Stats{
		Total:       100,
		Successes:   100,
		SuccessRate: 1.0,
		OpsPerSec:   50.0,
		SQLStates:   map[string]int{"40001": 1},
	}

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, stats); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded["total"].(float64) != 100 {
		t.Errorf("total = %v, want 100", decoded["total"])
	}
	if !strings.Contains(buf.String(), `"sqlstates"`) {
		t.Errorf("expected sqlstates in JSON output:\n%s", buf.String())
	}
}

func TestReasonRowsOrdering(t *testing.T) {
	rows := reasonRows(map[string]int{
		"*net.OpError":        3,
		"*pgconn.PgError":     3,
		"*runner.NoKeysError": 7,
	})

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Name != "Empty key sample" || rows[0].Count != 7 {
		t.Errorf("rows[0] = %+v, want highest count first", rows[0])
	}
	// Equal counts tie-break alphabetically.
	if rows[1].Name > rows[2].Name {
		t.Errorf("tied counts not sorted by name: %q before %q", rows[1].Name, rows[2].Name)
	}
}
