package parallel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityWorker(ctx context.Context, n int) (int, error) {
	return n, nil
}

func inputsOf(outcomes []Outcome[int, int]) []int {
	ins := make([]int, len(outcomes))
	for i, out := range outcomes {
		ins[i] = out.Input
	}
	return ins
}

func TestNew_InvalidConcurrency(t *testing.T) {
	for _, limit := range []int{0, -1, -100} {
		ex, err := New[int, int](limit)
		require.ErrorIs(t, err, ErrInvalidConcurrency, "limit %d should be rejected", limit)
		assert.Nil(t, ex)
	}
}

func TestRun_EmptyInputs(t *testing.T) {
	started := atomic.Int32{}
	worker := func(ctx context.Context, n int) (int, error) {
		started.Add(1)
		return n, nil
	}

	ex, err := New[int, int](4)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, nil).Collect()
	require.NoError(t, err)
	assert.Empty(t, outcomes, "empty input should yield an empty stream")
	assert.Zero(t, started.Load(), "no workers should be started")
}

func TestRun_ExactlyOnceAccounting(t *testing.T) {
	for _, limit := range []int{1, 2, 3, 7, 50} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			inputs := make([]int, 25)
			for i := range inputs {
				inputs[i] = i
			}

			ex, err := New[int, int](limit)
			require.NoError(t, err)

			outcomes, err := ex.RunSlice(context.Background(), identityWorker, inputs).Collect()
			require.NoError(t, err)
			require.Len(t, outcomes, len(inputs), "no loss, no duplication")

			assert.ElementsMatch(t, inputs, inputsOf(outcomes))
			for _, out := range outcomes {
				assert.False(t, out.Failed())
				assert.Equal(t, out.Input, out.Value)
			}
		})
	}
}

func TestRun_SequentialAtLimitOne(t *testing.T) {
	inputs := []int{5, 3, 9, 1, 7, 2}

	ex, err := New[int, int](1)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), identityWorker, inputs).Collect()
	require.NoError(t, err)
	assert.Equal(t, inputs, inputsOf(outcomes), "limit 1 must preserve input order")
}

func TestRun_CompletionOrderNotSubmissionOrder(t *testing.T) {
	// Each task sleeps proportionally to its input, so with all three running
	// concurrently the fastest finishes first.
	worker := func(ctx context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * 50 * time.Millisecond)
		return n, nil
	}

	ex, err := New[int, int](3)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, []int{3, 1, 2}).Collect()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, inputsOf(outcomes))
}

func TestRun_FullConcurrencyWhenLimitExceedsInputs(t *testing.T) {
	const n = 5
	started := atomic.Int32{}
	gate := make(chan struct{})

	// Every task blocks on the gate, so all n must be dispatched
	// concurrently before any outcome is produced.
	worker := func(ctx context.Context, i int) (int, error) {
		started.Add(1)
		<-gate
		return i, nil
	}

	ex, err := New[int, int](100)
	require.NoError(t, err)

	stream := ex.RunSlice(context.Background(), worker, []int{0, 1, 2, 3, 4})

	require.Eventually(t, func() bool {
		return started.Load() == n
	}, 2*time.Second, time.Millisecond, "all tasks should be dispatched before any result")
	close(gate)

	outcomes, err := stream.Collect()
	require.NoError(t, err)
	assert.Len(t, outcomes, n)
}

func TestRun_ConcurrencyLimitNeverExceeded(t *testing.T) {
	const limit = 3
	inFlight := atomic.Int32{}
	peak := atomic.Int32{}

	worker := func(ctx context.Context, n int) (int, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return n, nil
	}

	inputs := make([]int, 30)
	ex, err := New[int, int](limit)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, inputs).Collect()
	require.NoError(t, err)
	require.Len(t, outcomes, len(inputs))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, int32(limit), peak.Load(), "executor should top up to the full limit")
}

func TestRun_ContinueOnError(t *testing.T) {
	wantErr := errors.New("bad input")
	worker := func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			return 0, wantErr
		}
		return n * 10, nil
	}

	ex, err := New[int, int](2)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, []int{1, 2, 3, 4, 5}).Collect()
	require.NoError(t, err, "failures are data under the continue policy")
	require.Len(t, outcomes, 5)

	failures := 0
	for _, out := range outcomes {
		if out.Failed() {
			failures++
			assert.Equal(t, 3, out.Input)
			assert.ErrorIs(t, out.Err, wantErr)
			assert.False(t, out.TimedOut(), "worker failure must not read as a timeout")
		}
	}
	assert.Equal(t, 1, failures)
}

func TestRun_AbortAllStopsDispatch(t *testing.T) {
	dispatched := atomic.Int32{}
	worker := func(ctx context.Context, n int) (int, error) {
		dispatched.Add(1)
		time.Sleep(10 * time.Millisecond)
		if n == 0 {
			return 0, errors.New("first task fails")
		}
		return n, nil
	}

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	ex, err := New[int, int](2, WithErrorPolicy(AbortAll))
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, inputs).Collect()
	require.ErrorIs(t, err, ErrAborted)

	// The failing task and anything already in flight still report, but the
	// remaining inputs are never dispatched.
	assert.NotEmpty(t, outcomes)
	assert.Less(t, int(dispatched.Load()), len(inputs))
	assert.Len(t, outcomes, int(dispatched.Load()), "in-flight tasks drain into the stream")
}

func TestRun_AbortAllDropsQueuedTask(t *testing.T) {
	// With one slot, the second input is parked in Submit while the first
	// task runs. When the first task fails it must not get a turn.
	var laterRan atomic.Bool
	worker := func(ctx context.Context, n int) (int, error) {
		if n == 1 {
			return 0, errors.New("first task fails")
		}
		laterRan.Store(true)
		return n, nil
	}

	ex, err := New[int, int](1, WithErrorPolicy(AbortAll))
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, []int{1, 2, 3}).Collect()
	require.ErrorIs(t, err, ErrAborted)

	require.Len(t, outcomes, 1, "only the failing task's outcome is emitted")
	assert.Equal(t, 1, outcomes[0].Input)
	assert.False(t, laterRan.Load(), "a task waiting for a slot must not run after the abort")
}

func TestRun_TaskTimeout(t *testing.T) {
	worker := func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			return 0, ctx.Err()
		}
		return n, nil
	}

	ex, err := New[int, int](3, WithTaskTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	outcomes, err := ex.RunSlice(context.Background(), worker, []int{1, 2, 3}).Collect()
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Less(t, time.Since(start), 2*time.Second, "slot must be reclaimed on timeout, not held")

	for _, out := range outcomes {
		if out.Input == 2 {
			assert.True(t, out.TimedOut())
			assert.ErrorIs(t, out.Err, ErrTaskTimeout)
		} else {
			assert.False(t, out.Failed())
		}
	}
}

func TestRun_WorkerPanicBecomesFailure(t *testing.T) {
	worker := func(ctx context.Context, n int) (int, error) {
		if n == 1 {
			panic("boom")
		}
		return n, nil
	}

	ex, err := New[int, int](2)
	require.NoError(t, err)

	outcomes, err := ex.RunSlice(context.Background(), worker, []int{0, 1, 2}).Collect()
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for _, out := range outcomes {
		if out.Input == 1 {
			assert.ErrorIs(t, out.Err, ErrWorkerPanic)
		} else {
			assert.False(t, out.Failed())
		}
	}
}

func TestRun_LazyUnboundedSource(t *testing.T) {
	naturals := func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}

	ex, err := New[int, int](4)
	require.NoError(t, err)

	stream := ex.Run(context.Background(), identityWorker, iter.Seq[int](naturals))

	var got []int
	for out := range stream.All() {
		got = append(got, out.Input)
		if len(got) == 10 {
			break
		}
	}
	assert.Len(t, got, 10, "abandoning must not require exhausting the source")
}

func TestRun_EarlyAbandonmentStopsDispatch(t *testing.T) {
	dispatched := atomic.Int32{}
	worker := func(ctx context.Context, n int) (int, error) {
		dispatched.Add(1)
		return n, nil
	}

	inputs := make([]int, 1000)
	ex, err := New[int, int](2)
	require.NoError(t, err)

	stream := ex.RunSlice(context.Background(), worker, inputs)
	for range stream.All() {
		break
	}

	// Wait for the coordinator to wind down, then confirm it stopped early.
	stream.Err()
	assert.Less(t, int(dispatched.Load()), len(inputs))
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := func(ctx context.Context, n int) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return n, nil
	}

	inputs := make([]int, 1000)
	ex, err := New[int, int](2)
	require.NoError(t, err)

	stream := ex.RunSlice(ctx, worker, inputs)

	consumed := 0
	for range stream.All() {
		consumed++
		if consumed == 3 {
			cancel()
		}
	}

	assert.ErrorIs(t, stream.Err(), context.Canceled)
	assert.Less(t, consumed, len(inputs))
}

func TestRun_ProgressCallback(t *testing.T) {
	var calls []int
	var totals []int

	ex, err := New[int, int](3, WithProgress(func(completed, total int) {
		calls = append(calls, completed)
		totals = append(totals, total)
	}))
	require.NoError(t, err)

	inputs := []int{1, 2, 3, 4, 5}
	_, err = ex.RunSlice(context.Background(), identityWorker, inputs).Collect()
	require.NoError(t, err)

	require.Len(t, calls, len(inputs), "one call per completed task")
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)
	for _, total := range totals {
		assert.Equal(t, len(inputs), total)
	}
}

func TestRun_ProgressCountsInOrder(t *testing.T) {
	var calls []int

	ex, err := New[int, int](8, WithProgress(func(completed, total int) {
		calls = append(calls, completed)
	}))
	require.NoError(t, err)

	inputs := make([]int, 200)
	for i := range inputs {
		inputs[i] = i
	}

	_, err = ex.RunSlice(context.Background(), identityWorker, inputs).Collect()
	require.NoError(t, err)

	require.Len(t, calls, len(inputs))
	for i, completed := range calls {
		assert.Equal(t, i+1, completed, "completed counts must arrive in order")
	}
}

func TestRun_ProgressTotalUnknownForLazySource(t *testing.T) {
	var totals []int

	ex, err := New[int, int](2, WithProgress(func(completed, total int) {
		totals = append(totals, total)
	}))
	require.NoError(t, err)

	three := func(yield func(int) bool) {
		for i := range 3 {
			if !yield(i) {
				return
			}
		}
	}

	_, err = ex.Run(context.Background(), identityWorker, iter.Seq[int](three)).Collect()
	require.NoError(t, err)

	require.Len(t, totals, 3)
	for _, total := range totals {
		assert.Equal(t, TotalUnknown, total)
	}
}

func TestStream_ForEach(t *testing.T) {
	ex, err := New[int, int](2)
	require.NoError(t, err)

	var seen []int
	err = ex.RunSlice(context.Background(), identityWorker, []int{1, 2, 3}).ForEach(func(out Outcome[int, int]) error {
		seen = append(seen, out.Input)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestStream_ForEachStopsOnCallbackError(t *testing.T) {
	stopErr := errors.New("stop")

	ex, err := New[int, int](2)
	require.NoError(t, err)

	inputs := make([]int, 100)
	count := 0
	err = ex.RunSlice(context.Background(), identityWorker, inputs).ForEach(func(out Outcome[int, int]) error {
		count++
		if count == 5 {
			return stopErr
		}
		return nil
	})
	require.ErrorIs(t, err, stopErr)
	assert.Equal(t, 5, count)
}
