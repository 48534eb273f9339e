package parallel

import "errors"

// Outcome pairs an input with the result of running the worker on it.
// Exactly one outcome is emitted per input drawn from the source, in
// completion order.
type Outcome[I, O any] struct {
	Input I
	Value O
	Err   error
}

// Failed reports whether the task produced an error of any kind.
func (o Outcome[I, O]) Failed() bool {
	return o.Err != nil
}

// TimedOut reports whether the task failed because it exceeded the
// configured per-task timeout, as opposed to a worker-returned error.
func (o Outcome[I, O]) TimedOut() bool {
	return errors.Is(o.Err, ErrTaskTimeout)
}
