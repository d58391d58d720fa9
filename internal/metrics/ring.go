package metrics

import (
	"sync"
	"time"
)

// DefaultRingCapacity is the number of recent outcomes retained when no
// explicit capacity is configured.
const DefaultRingCapacity = 1000

// ReportWindow is how many of the most recent outcomes interim samples
// compute their latency figures from.
const ReportWindow = 100

// Outcome records a single completed read-modify-write attempt.
type Outcome struct {
	Success   bool
	Duration  time.Duration
	Timestamp time.Time
	WorkerID  int
}

// OutcomeRing is a fixed-capacity ring buffer of attempt outcomes. Once
// full, each append evicts the oldest entry, so the ring always holds the
// most recent outcomes in insertion order.
type OutcomeRing struct {
	mu    sync.Mutex
	buf   []Outcome
	head  int // next write position
	count int
}

// NewOutcomeRing creates a ring retaining at most capacity outcomes.
// Non-positive capacities fall back to DefaultRingCapacity.
func NewOutcomeRing(capacity int) *OutcomeRing {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &OutcomeRing{buf: make([]Outcome, capacity)}
}

// Append stores one outcome, evicting the oldest when the ring is full.
func (r *OutcomeRing) Append(o Outcome) {
	r.mu.Lock()
	r.buf[r.head] = o
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Len reports how many outcomes are currently retained.
func (r *OutcomeRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap reports the fixed capacity.
func (r *OutcomeRing) Cap() int {
	return len(r.buf)
}

// Snapshot copies out the most recent limit outcomes in insertion order.
// A limit of zero or less returns everything retained. The returned slice
// is independent of the ring; callers may sort or mutate it freely.
func (r *OutcomeRing) Snapshot(limit int) []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}

	out := make([]Outcome, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
