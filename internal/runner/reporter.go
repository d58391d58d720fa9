package runner

import (
	"sync/atomic"
	"time"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// reporter emits interim samples to the sink at a fixed cadence.
type reporter struct {
	collector *metrics.Collector
	sink      Sink
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	active    int32
	start     time.Time
	runID     string
}

func newReporter(collector *metrics.Collector, sink Sink, interval time.Duration, start time.Time, runID string) *reporter {
	return &reporter{
		collector: collector,
		sink:      sink,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		start:     start,
		runID:     runID,
	}
}

// Start begins emitting samples in a background goroutine. Calling Start
// more than once has no effect.
func (p *reporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts emission and blocks until the reporter goroutine has exited.
// After Stop returns, no further samples reach the sink. Safe to call more
// than once.
func (p *reporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *reporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			// A tick that raced with Stop is suppressed.
			select {
			case <-p.done:
				return
			default:
			}
			stats := p.collector.WindowStats(time.Since(p.start))
			stats.RunID = p.runID
			p.sink.Progress(stats)
		case <-p.done:
			return
		}
	}
}
