package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-attempt metrics in a thread-safe manner. Counters
// are atomic so workers never serialize on them; the outcome ring keeps the
// most recent attempts for windowed latency figures; the histogram keeps a
// compressed whole-run latency distribution that survives ring eviction.
type Collector struct {
	ring *OutcomeRing

	total     int64
	successes int64
	failures  int64

	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	reasons   map[string]int64
	sqlstates map[string]int64
}

// Stats represents aggregated metrics for one sample. Interim samples
// compute the latency fields from the most recent ReportWindow outcomes;
// the final sample computes them over the entire retained ring.
type Stats struct {
	Total     int64 `json:"total"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`

	SuccessRate float64 `json:"success_rate"`
	OpsPerSec   float64 `json:"ops_per_sec"`

	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P95Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	Elapsed     time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinLatencyMs   float64 `json:"min_latency_ms"`
	MaxLatencyMs   float64 `json:"max_latency_ms"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	P95LatencyMs   float64 `json:"p95_latency_ms"`
	P99LatencyMs   float64 `json:"p99_latency_ms"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// SampleSize is how many outcomes the latency fields were computed from.
	SampleSize int `json:"sample_size"`

	// Whole-run distribution from the HDR histogram. Unlike the latency
	// fields above it is not bounded by the ring capacity.
	HistP50Ms float64 `json:"hist_p50_ms,omitempty"`
	HistP90Ms float64 `json:"hist_p90_ms,omitempty"`
	HistP99Ms float64 `json:"hist_p99_ms,omitempty"`
	HistCount int64   `json:"hist_count,omitempty"`

	Reasons   map[string]int `json:"failure_reasons,omitempty"`
	SQLStates map[string]int `json:"sqlstates,omitempty"`

	RunID     string  `json:"run_id,omitempty"`
	WorkerOps []int64 `json:"worker_ops,omitempty"`
}

// NewCollector creates a collector whose outcome ring retains at most
// ringCapacity attempts. Non-positive capacities use DefaultRingCapacity.
func NewCollector(ringCapacity int) *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		ring:      NewOutcomeRing(ringCapacity),
		hist:      h,
		reasons:   make(map[string]int64),
		sqlstates: make(map[string]int64),
	}
}

// Ring exposes the underlying outcome ring.
func (c *Collector) Ring() *OutcomeRing {
	return c.ring
}

// sqlStater matches pgconn.PgError without importing the driver here.
type sqlStater interface {
	SQLState() string
}

// RecordAttempt records a single attempt's latency and error state.
func (c *Collector) RecordAttempt(workerID int, latency time.Duration, err error) {
	c.ring.Append(Outcome{
		Success:   err == nil,
		Duration:  latency,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	})

	atomic.AddInt64(&c.total, 1)
	if err == nil {
		atomic.AddInt64(&c.successes, 1)
	} else {
		atomic.AddInt64(&c.failures, 1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}

	if err != nil {
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		c.reasons[errorType]++

		var coded sqlStater
		if errors.As(err, &coded) {
			if code := coded.SQLState(); code != "" {
				c.sqlstates[code]++
			}
		}
	}
}

// Totals returns the current counter values.
func (c *Collector) Totals() (total, successes, failures int64) {
	return atomic.LoadInt64(&c.total),
		atomic.LoadInt64(&c.successes),
		atomic.LoadInt64(&c.failures)
}

// WindowStats computes an interim sample: counters and throughput are
// cumulative, latency figures cover only the most recent ReportWindow
// outcomes.
func (c *Collector) WindowStats(elapsed time.Duration) Stats {
	return c.statsFrom(c.ring.Snapshot(ReportWindow), elapsed, false)
}

// Stats computes the final sample over the entire retained ring, including
// the failure breakdown and whole-run histogram percentiles.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	return c.statsFrom(c.ring.Snapshot(0), elapsed, true)
}

func (c *Collector) statsFrom(outcomes []Outcome, elapsed time.Duration, final bool) Stats {
	total, successes, failures := c.Totals()

	stats := Stats{
		Total:      total,
		Successes:  successes,
		Failures:   failures,
		Elapsed:    elapsed,
		SampleSize: len(outcomes),
	}
	if total > 0 {
		stats.SuccessRate = float64(successes) / float64(total)
	}
	if elapsed > 0 && total > 0 {
		stats.OpsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(outcomes) > 0 {
		durations := make([]time.Duration, len(outcomes))
		var sum time.Duration
		for i, o := range outcomes {
			durations[i] = o.Duration
			sum += o.Duration
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		stats.MinLatency = durations[0]
		stats.MaxLatency = durations[len(durations)-1]
		stats.MeanLatency = sum / time.Duration(len(durations))
		stats.P95Latency = nearestRank(durations, 95)
		stats.P99Latency = nearestRank(durations, 99)
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P95LatencyMs = float64(stats.P95Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)
	stats.ElapsedSeconds = elapsed.Seconds()

	if final {
		c.mu.Lock()
		if c.hist.TotalCount() > 0 {
			stats.HistP50Ms = float64(c.hist.ValueAtQuantile(50)) / 1000
			stats.HistP90Ms = float64(c.hist.ValueAtQuantile(90)) / 1000
			stats.HistP99Ms = float64(c.hist.ValueAtQuantile(99)) / 1000
			stats.HistCount = c.hist.TotalCount()
		}
		if len(c.reasons) > 0 {
			stats.Reasons = make(map[string]int, len(c.reasons))
			for k, v := range c.reasons {
				stats.Reasons[k] = int(v)
			}
		}
		if len(c.sqlstates) > 0 {
			stats.SQLStates = make(map[string]int, len(c.sqlstates))
			for k, v := range c.sqlstates {
				stats.SQLStates[k] = int(v)
			}
		}
		c.mu.Unlock()
	}

	return stats
}

// nearestRank returns the value at the given percentile of a sorted slice
// using the nearest-rank method: the element at rank ceil(p/100 * n).
func nearestRank(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(pct / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// FailureReasons returns a map of failure reason buckets to their counts.
func (c *Collector) FailureReasons() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.reasons {
		result[k] = int(v)
	}
	return result
}

// SQLStates returns a map of SQLSTATE codes to their counts.
func (c *Collector) SQLStates() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]int)
	for k, v := range c.sqlstates {
		result[k] = int(v)
	}
	return result
}
