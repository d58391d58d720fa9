package runner

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runWorker executes attempts back to back until stop is cancelled. Attempts
// run under attemptCtx, which stays live past the run deadline so an
// in-flight operation can finish instead of being cut off mid-write.
// Returns the number of attempts this worker performed.
func (r *Runner) runWorker(attemptCtx, stop context.Context, id int) int64 {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	payload := make([]byte, r.opt.PayloadSize)

	var ops int64
	for stop.Err() == nil {
		r.attempt(attemptCtx, id, rnd, payload)
		ops++
	}
	return ops
}

// attempt performs one read-modify-write cycle: sample a key, read its row,
// generate a fresh payload, write it back. Duration is measured from the
// key sample to write completion. There is deliberately no locking between
// read and write; concurrent writers race and the last write wins.
func (r *Runner) attempt(ctx context.Context, id int, rnd *rand.Rand, payload []byte) {
	start := time.Now()

	ctx, span := r.opt.Tracer.Start(ctx, "attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("churn.worker_id", id)),
	)

	err := func() error {
		key, err := r.opt.Store.RandomKey(ctx)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("churn.key", key))
		span.AddEvent("key sampled")

		if _, err := r.opt.Store.Read(ctx, key); err != nil {
			return err
		}
		span.AddEvent("row read")

		fillPayload(rnd, payload)
		if err := r.opt.Store.Write(ctx, key, payload); err != nil {
			return err
		}
		span.AddEvent("row written")
		return nil
	}()

	r.opt.Collector.RecordAttempt(id, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if r.opt.FailureLogger != nil {
			r.opt.FailureLogger.LogFailure(err)
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// fillPayload overwrites buf with fresh pseudo-random bytes. The content is
// opaque load-shape data, so a worker-local source is all it needs.
func fillPayload(rnd *rand.Rand, buf []byte) {
	// rand.Rand.Read never returns an error.
	_, _ = rnd.Read(buf)
}
