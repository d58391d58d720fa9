package output

import (
	"testing"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

type captureSink struct {
	progress []metrics.Stats
	final    []metrics.Stats
}

func (c *captureSink) Progress(stats metrics.Stats) { c.progress = append(c.progress, stats) }
func (c *captureSink) Final(stats metrics.Stats)    { c.final = append(c.final, stats) }

func TestRecorderCapturesHistory(t *testing.T) {
	rec := NewRecorder(nil)

	rec.Progress(metrics.Stats{Total: 10})
	rec.Progress(metrics.Stats{Total: 20})
	rec.Final(metrics.Stats{Total: 25})

	history := rec.History()
	if len(history) != 2 {
		t.Fatalf("got %d history entries, want 2", len(history))
	}
	if history[0].Total != 10 || history[1].Total != 20 {
		t.Errorf("history totals = %d, %d; want 10, 20", history[0].Total, history[1].Total)
	}

	final, ok := rec.FinalStats()
	if !ok {
		t.Fatal("expected final stats to be recorded")
	}
	if final.Total != 25 {
		t.Errorf("final total = %d, want 25", final.Total)
	}
}

func TestRecorderForwards(t *testing.T) {
	next := &captureSink{}
	rec := NewRecorder(next)

	rec.Progress(metrics.Stats{Total: 1})
	rec.Final(metrics.Stats{Total: 2})

	if len(next.progress) != 1 || next.progress[0].Total != 1 {
		t.Errorf("progress not forwarded: %+v", next.progress)
	}
	if len(next.final) != 1 || next.final[0].Total != 2 {
		t.Errorf("final not forwarded: %+v", next.final)
	}
}

func TestRecorderNoFinal(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Progress(metrics.Stats{Total: 1})

	if _, ok := rec.FinalStats(); ok {
		t.Error("FinalStats should report absence before Final is called")
	}
}

func TestRecorderHistoryIsACopy(t *testing.T) {
	rec := NewRecorder(nil)
	rec.Progress(metrics.Stats{Total: 10})

	history := rec.History()
	history[0].Total = 999

	if got := rec.History()[0].Total; got != 10 {
		t.Errorf("mutating the returned slice changed internal state: %d", got)
	}
}
