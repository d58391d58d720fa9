package metrics_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

func TestRingRetainsOnlyNewest(t *testing.T) {
	r := metrics.NewOutcomeRing(5)

	for i := 1; i <= 8; i++ {
		r.Append(metrics.Outcome{Duration: time.Duration(i) * time.Millisecond})
	}

	if r.Len() != 5 {
		t.Fatalf("expected len 5, got %d", r.Len())
	}
	snap := r.Snapshot(0)
	if len(snap) != 5 {
		t.Fatalf("expected snapshot of 5, got %d", len(snap))
	}
	// Oldest three were evicted; 4ms..8ms remain in insertion order.
	for i, o := range snap {
		want := time.Duration(i+4) * time.Millisecond
		if o.Duration != want {
			t.Errorf("snapshot[%d]: expected %s, got %s", i, want, o.Duration)
		}
	}
}

func TestRingBelowCapacity(t *testing.T) {
	r := metrics.NewOutcomeRing(10)
	r.Append(metrics.Outcome{Duration: time.Millisecond})
	r.Append(metrics.Outcome{Duration: 2 * time.Millisecond})

	if r.Len() != 2 {
		t.Fatalf("expected len 2, got %d", r.Len())
	}
	snap := r.Snapshot(0)
	if len(snap) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(snap))
	}
	if snap[0].Duration != time.Millisecond || snap[1].Duration != 2*time.Millisecond {
		t.Errorf("snapshot out of order: %v", snap)
	}
}

func TestRingSnapshotLimit(t *testing.T) {
	r := metrics.NewOutcomeRing(10)
	for i := 1; i <= 10; i++ {
		r.Append(metrics.Outcome{Duration: time.Duration(i) * time.Millisecond})
	}

	snap := r.Snapshot(3)
	if len(snap) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(snap))
	}
	// Limit selects the most recent entries.
	for i, o := range snap {
		want := time.Duration(i+8) * time.Millisecond
		if o.Duration != want {
			t.Errorf("snapshot[%d]: expected %s, got %s", i, want, o.Duration)
		}
	}
}

func TestRingSnapshotIsIndependentCopy(t *testing.T) {
	r := metrics.NewOutcomeRing(4)
	r.Append(metrics.Outcome{Duration: time.Millisecond})

	snap := r.Snapshot(0)
	snap[0].Duration = time.Hour

	again := r.Snapshot(0)
	if again[0].Duration != time.Millisecond {
		t.Fatalf("mutating a snapshot leaked into the ring: got %s", again[0].Duration)
	}
}

func TestRingConcurrentAppends(t *testing.T) {
	const capacity = 100
	const writers = 8
	const perWriter = 500

	r := metrics.NewOutcomeRing(capacity)

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.Append(metrics.Outcome{WorkerID: id, Duration: time.Microsecond})
			}
		}(w)
	}
	wg.Wait()

	if r.Len() != capacity {
		t.Fatalf("expected len %d after %d appends, got %d", capacity, writers*perWriter, r.Len())
	}
	if got := len(r.Snapshot(0)); got != capacity {
		t.Fatalf("expected snapshot of %d, got %d", capacity, got)
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	r := metrics.NewOutcomeRing(0)
	if r.Cap() != metrics.DefaultRingCapacity {
		t.Fatalf("expected default capacity %d, got %d", metrics.DefaultRingCapacity, r.Cap())
	}
}
