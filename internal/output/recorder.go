package output

import (
	"sync"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// Recorder passes samples through to the wrapped sink while retaining the
// interim history and the final sample, so thresholds and the HTML report
// can be evaluated after the run without a second final emission.
type Recorder struct {
	mu      sync.Mutex
	next    Sink
	history []metrics.Stats
	final   *metrics.Stats
}

// NewRecorder wraps next. A nil next records without forwarding.
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Progress(stats metrics.Stats) {
	r.mu.Lock()
	r.history = append(r.history, stats)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Progress(stats)
	}
}

func (r *Recorder) Final(stats metrics.Stats) {
	r.mu.Lock()
	r.final = &stats
	r.mu.Unlock()
	if r.next != nil {
		r.next.Final(stats)
	}
}

// History returns a copy of the interim samples seen so far.
func (r *Recorder) History() []metrics.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.Stats(nil), r.history...)
}

// FinalStats returns the final sample, if the run got that far.
func (r *Recorder) FinalStats() (metrics.Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		return metrics.Stats{}, false
	}
	return *r.final, true
}
