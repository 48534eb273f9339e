// Package parallel provides a bounded-concurrency streaming executor.
//
// An Executor applies a worker function to a lazy sequence of inputs using a
// fixed-size pool of concurrent workers, and yields (input, outcome) pairs as
// tasks complete rather than waiting for full batches. The pool is topped up
// the moment any slot frees, so one slow task never stalls throughput for its
// siblings.
//
// Failures are data: each outcome carries the worker's error (or a timeout),
// and the stream keeps flowing unless the executor is configured to abort on
// the first failure.
package parallel
