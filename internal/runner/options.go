package runner

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/pgchurn/pgchurn/internal/metrics"
)

// DefaultPayloadSize is the number of random bytes written back per attempt.
const DefaultPayloadSize = 1024

// DefaultReportInterval is the cadence of interim samples.
const DefaultReportInterval = 10 * time.Second

// Record is the row image returned by Store.Read.
type Record struct {
	Key     string
	Brand   string
	Payload []byte
}

// Store abstracts the keyed datastore a churn run hammers. Implementations
// must be safe for concurrent use by all workers.
type Store interface {
	// RandomKey samples one existing key uniformly at random.
	RandomKey(ctx context.Context) (string, error)
	// Read fetches the record for key.
	Read(ctx context.Context, key string) (*Record, error)
	// Write replaces the record's payload and bumps its modification time.
	Write(ctx context.Context, key string, payload []byte) error
}

// NoKeysError is returned by RandomKey when the table holds no rows.
type NoKeysError struct {
	Table string
}

func (e *NoKeysError) Error() string {
	if e.Table == "" {
		return "no keys available"
	}
	return fmt.Sprintf("no keys available in %q", e.Table)
}

// KeyVanishedError is returned by Read when the sampled key no longer
// exists, typically because another session deleted the row in between.
type KeyVanishedError struct {
	Key string
}

func (e *KeyVanishedError) Error() string {
	return fmt.Sprintf("key %q vanished before read", e.Key)
}

// Sink receives interim and final samples from a run.
type Sink interface {
	Progress(metrics.Stats)
	Final(metrics.Stats)
}

type discardSink struct{}

func (discardSink) Progress(metrics.Stats) {}
func (discardSink) Final(metrics.Stats)    {}

// FailureLogger logs failed attempts.
type FailureLogger interface {
	LogFailure(err error)
}

// Options configure the Runner.
type Options struct {
	Workers        int                // number of worker goroutines
	Duration       time.Duration      // overall time limit (0 means run until cancelled)
	ReportInterval time.Duration      // interim sample cadence
	PayloadSize    int                // bytes written back per attempt
	Store          Store              // datastore under test (required)
	Collector      *metrics.Collector // attempt recording
	Sink           Sink               // sample destination (nil discards)
	FailureLogger  FailureLogger      // optional per-failure logging
	Tracer         trace.Tracer       // optional per-attempt spans
	RunID          string             // stamped on every emitted sample
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.ReportInterval <= 0 {
		o.ReportInterval = DefaultReportInterval
	}
	if o.PayloadSize <= 0 {
		o.PayloadSize = DefaultPayloadSize
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector(0)
	}
	if o.Sink == nil {
		o.Sink = discardSink{}
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("pgchurn")
	}
}
