package output

import (
	"fmt"
	"io"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// Sink mirrors the runner's sample sink so output types can be stacked
// without importing the engine.
type Sink interface {
	Progress(metrics.Stats)
	Final(metrics.Stats)
}

// TextSink renders interim samples as one rewritten status line and the
// final sample as the full results block. The runner guarantees Progress
// and Final never run concurrently.
type TextSink struct {
	w           io.Writer
	sawProgress bool
}

// NewTextSink creates a text sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	if w == nil {
		w = io.Discard
	}
	return &TextSink{w: w}
}

// Progress rewrites the in-place status line.
func (t *TextSink) Progress(stats metrics.Stats) {
	t.sawProgress = true
	fmt.Fprintf(t.w, "\rOps: %d | Success: %.1f%% | Throughput: %.1f ops/s | Latency: avg=%.1fms, p95=%.1fms | Runtime: %.1fs",
		stats.Total,
		stats.SuccessRate*100,
		stats.OpsPerSec,
		stats.MeanLatencyMs,
		stats.P95LatencyMs,
		stats.ElapsedSeconds,
	)
}

// Final terminates the status line and prints the results block.
func (t *TextSink) Final(stats metrics.Stats) {
	if t.sawProgress {
		fmt.Fprintln(t.w)
	}
	PrintReport(t.w, stats)
}

// JSONSink suppresses interim samples and emits the final sample as
// indented JSON, keeping stdout machine-readable.
type JSONSink struct {
	w io.Writer
}

// NewJSONSink creates a JSON sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONSink{w: w}
}

// Progress is a no-op in JSON mode.
func (j *JSONSink) Progress(metrics.Stats) {}

// Final writes the sample as JSON.
func (j *JSONSink) Final(stats metrics.Stats) {
	_ = PrintJSONReport(j.w, stats)
}
