package parallel

import "errors"

var (
	// ErrInvalidConcurrency is returned when maxConcurrency is <= 0.
	ErrInvalidConcurrency = errors.New("max concurrency must be greater than 0")

	// ErrTaskTimeout marks an outcome whose task exceeded the per-task timeout.
	// The worker goroutine is abandoned, not killed; cleanup is the worker's job.
	ErrTaskTimeout = errors.New("task timed out")

	// ErrWorkerPanic marks an outcome whose worker panicked.
	ErrWorkerPanic = errors.New("worker panicked")

	// ErrAborted is reported by Stream.Err when the abort-all policy triggered.
	// Outcomes produced before the abort are still emitted.
	ErrAborted = errors.New("execution aborted after task failure")
)
