// Package runner provides the core churn execution engine for pgchurn.
//
// The runner package orchestrates a fixed population of workers performing
// read-modify-write attempts against a [Store] as fast as the store allows.
// There is no pacing and no retry: the point of a run is to find out what
// sustained throughput the datastore can absorb, so every attempt starts the
// moment the previous one finishes and every failure is recorded as-is.
//
// # Basic Usage
//
//	opts := runner.Options{
//		Workers:  10,
//		Duration: time.Minute,
//		Store:    myStore,
//		Sink:     mySink,
//	}
//	r := runner.New(opts)
//	result, err := r.Run(ctx)
//
// # Store Interface
//
// The [Store] interface defines the three calls of one attempt:
//
//	type Store interface {
//		RandomKey(ctx context.Context) (string, error)
//		Read(ctx context.Context, key string) (*Record, error)
//		Write(ctx context.Context, key string, payload []byte) error
//	}
//
// An empty table surfaces as [NoKeysError], a row deleted between sampling
// and reading as [KeyVanishedError]. Workers treat every non-nil error the
// same way: the attempt is recorded as failed and the loop continues.
//
// # Lifecycle
//
// Run moves through Idle, Running, Draining, Reported and Closed. Draining
// begins when the duration expires or the caller's context is cancelled;
// workers finish their in-flight attempt, the interim reporter is stopped,
// and exactly one final sample is emitted through the [Sink]. A Runner can
// run only once.
package runner
