// Package metrics provides real-time metrics collection and aggregation for
// database churn runs.
//
// The metrics package collects attempt latencies, success/failure counts,
// and failure breakdowns while workers hammer the datastore. Counters are
// atomic; the rest of the state sits behind a single mutex.
//
// # Collector
//
// The central [Collector] type aggregates outcomes from all workers:
//
//	collector := metrics.NewCollector(1000)
//
//	// Record one completed attempt
//	collector.RecordAttempt(workerID, latency, err)
//
//	// Interim sample: latency figures over the last ReportWindow outcomes
//	stats := collector.WindowStats(elapsed)
//
//	// Final sample: latency figures over the whole retained ring
//	stats = collector.Stats(elapsed)
//
// # Outcome Ring
//
// Every attempt lands in an [OutcomeRing], a fixed-capacity buffer that
// evicts the oldest entry once full. Percentiles are computed exactly from
// ring snapshots using the nearest-rank method, so a sample of
// [10,20,30,40,50]ms reports p95 = 50ms. The HDR histogram carried alongside
// covers the entire run and is reported separately in the final sample.
//
// # Failure Breakdown
//
// Failures are bucketed by error type the way the output layer expects, and
// PostgreSQL errors additionally by SQLSTATE code (see [FlattenSQLStates]).
//
// # Thread Safety
//
// RecordAttempt is safe to call from any number of worker goroutines.
package metrics
