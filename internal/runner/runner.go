package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Run lifecycle states.
const (
	stateIdle int32 = iota
	stateRunning
	stateDraining
	stateReported
	stateClosed
)

// ErrRunConsumed is returned when Run is called on a Runner that already ran.
var ErrRunConsumed = errors.New("runner: run already consumed")

// Result captures the execution summary.
type Result struct {
	Total     int64
	Failures  int64
	Duration  time.Duration
	WorkerOps []int64 // attempts per worker, indexed by worker id
}

// Runner coordinates a fixed population of workers churning the store for a
// bounded duration, with interim samples along the way and exactly one
// final sample when the run drains.
type Runner struct {
	opt   Options
	state int32
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run drives the full lifecycle: start workers and the interim reporter,
// wait for the duration to expire or ctx to be cancelled, drain workers,
// stop the reporter, then emit the final sample. A Runner runs at most
// once; later calls return ErrRunConsumed. Cancelling ctx repeatedly
// behaves the same as cancelling it once.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !atomic.CompareAndSwapInt32(&r.state, stateIdle, stateRunning) {
		return Result{}, ErrRunConsumed
	}
	start := time.Now()

	stop, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.opt.Duration > 0 {
		deadlineStop, deadlineCancel := context.WithTimeout(stop, r.opt.Duration)
		stop = deadlineStop
		defer deadlineCancel()
	}

	rep := newReporter(r.opt.Collector, r.opt.Sink, r.opt.ReportInterval, start, r.opt.RunID)
	rep.Start()

	ops := make([]int64, r.opt.Workers)
	var wg sync.WaitGroup
	wg.Add(r.opt.Workers)
	for i := 0; i < r.opt.Workers; i++ {
		go func(id int) {
			defer wg.Done()
			ops[id] = r.runWorker(ctx, stop, id)
		}(i)
	}

	<-stop.Done()
	atomic.StoreInt32(&r.state, stateDraining)
	wg.Wait()

	// The reporter must be silent before the final sample goes out.
	rep.Stop()

	elapsed := time.Since(start)
	stats := r.opt.Collector.Stats(elapsed)
	stats.RunID = r.opt.RunID
	stats.WorkerOps = append([]int64(nil), ops...)

	atomic.StoreInt32(&r.state, stateReported)
	r.opt.Sink.Final(stats)
	atomic.StoreInt32(&r.state, stateClosed)

	return Result{
		Total:     stats.Total,
		Failures:  stats.Failures,
		Duration:  elapsed,
		WorkerOps: ops,
	}, nil
}
