package metrics_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector(0)

	// Record deterministic latencies.
	c.RecordAttempt(0, 10*time.Millisecond, nil)
	c.RecordAttempt(0, 20*time.Millisecond, nil)
	c.RecordAttempt(0, 30*time.Millisecond, nil)
	c.RecordAttempt(0, 40*time.Millisecond, nil)
	c.RecordAttempt(0, 50*time.Millisecond, nil)

	stats := c.Stats(0)

	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.Successes != 5 {
		t.Errorf("expected successes 5, got %d", stats.Successes)
	}
	if stats.Failures != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
	// Nearest rank over 5 samples: ceil(0.95*5) = 5 -> the 50ms sample.
	if stats.P95Latency != 50*time.Millisecond {
		t.Errorf("expected p95 50ms, got %s", stats.P95Latency)
	}
	if stats.P99Latency != 50*time.Millisecond {
		t.Errorf("expected p99 50ms, got %s", stats.P99Latency)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", stats.SuccessRate)
	}
}

func TestNearestRankPercentiles(t *testing.T) {
	c := metrics.NewCollector(0)

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordAttempt(0, time.Duration(i)*time.Millisecond, nil)
	}

	stats := c.Stats(0)

	if stats.P95Latency != 95*time.Millisecond {
		t.Errorf("expected p95 95ms, got %s", stats.P95Latency)
	}
	if stats.P99Latency != 99*time.Millisecond {
		t.Errorf("expected p99 99ms, got %s", stats.P99Latency)
	}
}

func TestSingleSamplePercentiles(t *testing.T) {
	c := metrics.NewCollector(0)
	c.RecordAttempt(0, 7*time.Millisecond, nil)

	stats := c.Stats(0)
	if stats.P95Latency != 7*time.Millisecond {
		t.Errorf("expected p95 to equal the only sample, got %s", stats.P95Latency)
	}
	if stats.MeanLatency != 7*time.Millisecond {
		t.Errorf("expected mean to equal the only sample, got %s", stats.MeanLatency)
	}
}

func TestWindowStatsCoversRecentOutcomesOnly(t *testing.T) {
	c := metrics.NewCollector(0)

	// 150 slow attempts followed by 100 fast ones; the window only sees
	// the fast tail while the full stats still see both populations.
	for i := 0; i < 150; i++ {
		c.RecordAttempt(0, 100*time.Millisecond, nil)
	}
	for i := 0; i < 100; i++ {
		c.RecordAttempt(0, time.Millisecond, nil)
	}

	window := c.WindowStats(time.Second)
	if window.SampleSize != metrics.ReportWindow {
		t.Fatalf("expected window of %d, got %d", metrics.ReportWindow, window.SampleSize)
	}
	if window.MaxLatency != time.Millisecond {
		t.Errorf("expected window max 1ms, got %s", window.MaxLatency)
	}
	if window.Total != 250 {
		t.Errorf("expected cumulative total 250, got %d", window.Total)
	}

	full := c.Stats(time.Second)
	if full.SampleSize != 250 {
		t.Errorf("expected full sample of 250, got %d", full.SampleSize)
	}
	if full.MaxLatency != 100*time.Millisecond {
		t.Errorf("expected full max 100ms, got %s", full.MaxLatency)
	}
}

func TestCountersInvariantUnderConcurrency(t *testing.T) {
	c := metrics.NewCollector(0)

	var wg sync.WaitGroup
	workers := 10
	recordsPerWorker := 200

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				var err error
				if j%2 == 0 {
					err = errors.New("boom")
				}
				c.RecordAttempt(id, time.Millisecond, err)
			}
		}(i)
	}
	wg.Wait()

	total, successes, failures := c.Totals()
	expected := int64(workers * recordsPerWorker)
	if total != expected {
		t.Errorf("expected total %d, got %d", expected, total)
	}
	if successes+failures != total {
		t.Errorf("counter invariant broken: %d + %d != %d", successes, failures, total)
	}
	if failures != expected/2 {
		t.Errorf("expected failures %d, got %d", expected/2, failures)
	}
}

func TestThroughputAndElapsed(t *testing.T) {
	c := metrics.NewCollector(0)
	for i := 0; i < 40; i++ {
		c.RecordAttempt(0, time.Millisecond, nil)
	}

	stats := c.Stats(2 * time.Second)
	if stats.OpsPerSec != 20 {
		t.Errorf("expected 20 ops/sec, got %f", stats.OpsPerSec)
	}
	if stats.ElapsedSeconds != 2 {
		t.Errorf("expected elapsed 2s, got %f", stats.ElapsedSeconds)
	}
}

func TestZeroAttemptsStats(t *testing.T) {
	c := metrics.NewCollector(0)
	stats := c.Stats(time.Second)

	if stats.Total != 0 {
		t.Errorf("expected total 0, got %d", stats.Total)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("expected success rate 0, got %f", stats.SuccessRate)
	}
	if stats.OpsPerSec != 0 {
		t.Errorf("expected 0 ops/sec, got %f", stats.OpsPerSec)
	}
	if stats.P95Latency != 0 {
		t.Errorf("expected zero p95 with no samples, got %s", stats.P95Latency)
	}
}

type sqlstateError struct{ code string }

func (e *sqlstateError) Error() string    { return "server rejected query" }
func (e *sqlstateError) SQLState() string { return e.code }

func TestFailureBuckets(t *testing.T) {
	c := metrics.NewCollector(0)

	c.RecordAttempt(0, time.Millisecond, nil)
	c.RecordAttempt(0, time.Millisecond, &sqlstateError{code: "40001"})
	c.RecordAttempt(0, time.Millisecond, &sqlstateError{code: "40001"})
	c.RecordAttempt(0, time.Millisecond, errors.New("boom"))

	stats := c.Stats(time.Second)
	if stats.Failures != 3 {
		t.Fatalf("expected 3 failures, got %d", stats.Failures)
	}
	if len(stats.Reasons) != 2 {
		t.Fatalf("expected 2 reason buckets, got %v", stats.Reasons)
	}
	if stats.SQLStates["40001"] != 2 {
		t.Errorf("expected 2 failures under SQLSTATE 40001, got %v", stats.SQLStates)
	}

	reasons := c.FailureReasons()
	if reasons["*metrics_test.sqlstateError"] != 2 {
		t.Errorf("expected typed error bucket, got %v", reasons)
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector(0)

	c.RecordAttempt(0, 15*time.Millisecond, nil)
	c.RecordAttempt(1, 25*time.Millisecond, nil)

	stats := c.Stats(100 * time.Millisecond)

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{"total", "successes", "failures", "success_rate", "ops_per_sec", "min_latency_ms", "max_latency_ms", "mean_latency_ms", "p95_latency_ms", "p99_latency_ms", "elapsed_seconds", "sample_size"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}
