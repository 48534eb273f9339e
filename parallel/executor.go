// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package parallel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// Worker is the caller-supplied operation invoked once per input. It must be
// safe to run concurrently with other invocations of itself; the executor
// never shares state between invocations.
type Worker[I, O any] func(ctx context.Context, input I) (O, error)

// Executor runs workers over input sequences with a fixed concurrency limit.
// An Executor holds only configuration and may be reused for multiple runs.
type Executor[I, O any] struct {
	limit int
	cfg   config
}

// New creates an executor with the given concurrency limit.
// Returns ErrInvalidConcurrency if maxConcurrency is zero or negative.
func New[I, O any](maxConcurrency int, opts ...Option) (*Executor[I, O], error) {
	if maxConcurrency <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrency)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor[I, O]{
		limit: maxConcurrency,
		cfg:   cfg,
	}, nil
}

// Run applies worker to every input and returns a stream of outcomes in
// completion order. Inputs are drawn lazily, at most once per element, so the
// sequence may be unbounded; at most maxConcurrency inputs are in flight at
// any time, topped up as slots free. Canceling ctx stops dispatch; in-flight
// tasks run to completion.
func (e *Executor[I, O]) Run(ctx context.Context, worker Worker[I, O], inputs iter.Seq[I]) *Stream[I, O] {
	return e.run(ctx, worker, inputs, TotalUnknown)
}

// RunSlice is Run for eager input slices. The known length is reported to
// the progress callback.
func (e *Executor[I, O]) RunSlice(ctx context.Context, worker Worker[I, O], inputs []I) *Stream[I, O] {
	return e.run(ctx, worker, slices.Values(inputs), len(inputs))
}

func (e *Executor[I, O]) run(ctx context.Context, worker Worker[I, O], inputs iter.Seq[I], total int) *Stream[I, O] {
	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream[I, O]{
		results: make(chan Outcome[I, O]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
		cfg:     e.cfg,
		total:   total,
	}

	go s.dispatch(runCtx, e.limit, worker, inputs)

	return s
}

// Stream is the consumer-facing side of a run: a lazy, completion-ordered
// sequence of outcomes. Every input drawn from the source appears exactly
// once unless the consumer abandons the stream early.
type Stream[I, O any] struct {
	results chan Outcome[I, O]
	stop    chan struct{} // closed when the consumer walks away
	done    chan struct{} // closed once dispatch has fully drained
	cancel  context.CancelFunc
	cfg     config
	total   int

	completed  atomic.Int64
	aborted    atomic.Bool
	abandoned  atomic.Bool
	stopOnce   sync.Once
	progressMu sync.Mutex

	errMu sync.Mutex
	err   error
}

// dispatch is the single coordinator: it alone touches the input cursor.
// Slot accounting lives in the ants pool, whose blocking Submit provides the
// "wait for any, refill one" suspension point.
func (s *Stream[I, O]) dispatch(ctx context.Context, limit int, worker Worker[I, O], inputs iter.Seq[I]) {
	defer close(s.done)
	defer s.cancel()
	defer close(s.results)

	pool, err := ants.NewPool(limit)
	if err != nil {
		s.setErr(err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for input := range inputs {
		if ctx.Err() != nil || s.aborted.Load() {
			break
		}

		in := input
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			s.runTask(ctx, worker, in)
		}); err != nil {
			wg.Done()
			s.setErr(err)
			break
		}
	}

	// Drain: all dispatched tasks report before the stream is terminated.
	wg.Wait()

	switch {
	case s.aborted.Load():
		s.setErr(ErrAborted)
	case !s.abandoned.Load() && ctx.Err() != nil:
		s.setErr(ctx.Err())
	}
}

// runTask executes one task inside its worker slot and emits the outcome.
func (s *Stream[I, O]) runTask(ctx context.Context, worker Worker[I, O], in I) {
	if ctx.Err() != nil || s.aborted.Load() {
		// The run is shutting down; this input was drawn but its worker never
		// starts. It may have been parked in Submit while the abort happened.
		return
	}

	out := Outcome[I, O]{Input: in}
	out.Value, out.Err = s.invoke(ctx, worker, in)

	if out.Err != nil && s.cfg.policy == AbortAll {
		if s.aborted.CompareAndSwap(false, true) {
			s.cfg.logger.Warn("aborting run after task failure", "err", out.Err)
		}
	}

	if s.cfg.progress != nil {
		// Increment under the mutex so the serialized callbacks also see the
		// counts in order.
		s.progressMu.Lock()
		s.cfg.progress(int(s.completed.Add(1)), s.total)
		s.progressMu.Unlock()
	} else {
		s.completed.Add(1)
	}

	select {
	case s.results <- out:
	case <-s.stop:
	}
}

// invoke calls the worker, applying the per-task timeout if configured.
func (s *Stream[I, O]) invoke(ctx context.Context, worker Worker[I, O], in I) (O, error) {
	if s.cfg.taskTimeout <= 0 {
		return safeInvoke(ctx, worker, in)
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.taskTimeout)
	defer cancel()

	type result struct {
		value O
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		value, err := safeInvoke(taskCtx, worker, in)
		ch <- result{value: value, err: err}
	}()

	select {
	case r := <-ch:
		// A cooperative worker may observe the deadline itself and hand back
		// the context error; classify that as a timeout, not a worker failure.
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return r.value, fmt.Errorf("%w after %s", ErrTaskTimeout, s.cfg.taskTimeout)
		}
		return r.value, r.err
	case <-taskCtx.Done():
		// The slot is reclaimed; the worker goroutine is abandoned and its
		// eventual return value discarded via the buffered channel.
		var zero O
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %s", ErrTaskTimeout, s.cfg.taskTimeout)
		}
		return zero, ctx.Err()
	}
}

// safeInvoke converts worker panics into failed outcomes so a single bad
// input cannot take down its sibling tasks.
func safeInvoke[I, O any](ctx context.Context, worker Worker[I, O], in I) (value O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()
	return worker(ctx, in)
}

// All returns the outcomes in completion order. Breaking out of the loop
// abandons the stream: no new tasks are dispatched, in-flight tasks run to
// completion and their outcomes are discarded.
func (s *Stream[I, O]) All() iter.Seq[Outcome[I, O]] {
	return func(yield func(Outcome[I, O]) bool) {
		for out := range s.results {
			if !yield(out) {
				s.abandon()
				return
			}
		}
	}
}

// ForEach consumes the stream, calling fn for each outcome. It stops on the
// first error from fn (abandoning the stream) and otherwise returns Err.
func (s *Stream[I, O]) ForEach(fn func(Outcome[I, O]) error) error {
	for out := range s.All() {
		if err := fn(out); err != nil {
			return err
		}
	}
	return s.Err()
}

// Collect consumes the stream fully and returns all outcomes plus Err.
func (s *Stream[I, O]) Collect() ([]Outcome[I, O], error) {
	var outcomes []Outcome[I, O]
	for out := range s.All() {
		outcomes = append(outcomes, out)
	}
	return outcomes, s.Err()
}

// Err reports how the run ended: nil for a full run, ErrAborted if the
// abort-all policy triggered, or the context error if the run was canceled.
// Valid once the stream has been fully consumed.
func (s *Stream[I, O]) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream[I, O]) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream[I, O]) abandon() {
	s.stopOnce.Do(func() {
		s.abandoned.Store(true)
		close(s.stop)
		s.cancel()
	})
}
