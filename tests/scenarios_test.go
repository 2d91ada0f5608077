package tests

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/collective"
)

func TestPool_AddsTwo(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		out, err := collective.PoolProc(context.Background(), e, add2, []int{1, 2, 3, 4})
		require.NoError(t, err)
		require.Equal(t, []int{3, 4, 5, 6}, out)
	})
}

func TestBranch_PairsFunctionsWithArguments(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		out, err := collective.BranchProc(context.Background(), e, addN, []int{1, 2, 3, 4})
		require.NoError(t, err)
		require.Equal(t, []int{1, 3, 5, 7}, out)
	})
}

func TestRun_PreservesOrderWhenCompletionIsReversed(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		in := []int{150, 100, 50, 0}
		out, err := collective.PoolProc(context.Background(), e, sleepy, in)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}, collective.WithMaxWorkers(4))
}

func TestRun_ArityMismatchHasNoSideEffects(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		var calls atomic.Int32
		count := func(x int) int { calls.Add(1); return x }

		_, err := collective.Run[int, int](context.Background(), e,
			[]func(int) int{count, count, count}, []int{1, 2, 3, 4})
		if !errors.Is(err, collective.ErrArityMismatch) {
			t.Fatalf("expected ErrArityMismatch, got %v", err)
		}

		_, err = collective.BranchProc(context.Background(), e, addN[:2], []int{1, 2, 3})
		if !errors.Is(err, collective.ErrArityMismatch) {
			t.Fatalf("expected ErrArityMismatch, got %v", err)
		}

		if n := calls.Load(); n != 0 {
			t.Fatalf("expected no task to run, %d did", n)
		}
	})
}

func TestRun_FailFastReportsFailedIndex(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		start := time.Now()
		out, err := collective.PoolProc(context.Background(), e, failOn2, []int{0, 1, 2, 3, 4})
		require.Nil(t, out)
		var te *collective.TaskError
		require.ErrorAs(t, err, &te)
		require.Equal(t, 2, te.Index)
		require.Contains(t, err.Error(), "two is not allowed")
		require.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestRun_PanicsBecomeTaskFailures(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		_, err := collective.PoolProc(context.Background(), e, panicky, []int{7})
		require.ErrorIs(t, err, collective.ErrTaskPanicked)
		idx, ok := collective.ExtractTaskIndex(err)
		require.True(t, ok)
		require.Equal(t, 0, idx)
	})
}

func TestRun_CancelledContext(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := collective.PoolProc(ctx, e, sleepy, []int{5000, 5000, 5000})
		require.ErrorIs(t, err, collective.ErrCancelled)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestRun_ExecutorIsReusable(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		for round := 0; round < 3; round++ {
			out, err := collective.PoolProc(context.Background(), e, add2, []int{round, round + 1})
			require.NoError(t, err)
			require.Equal(t, []int{round + 2, round + 3}, out)
		}

		// A failed batch leaves the executor usable.
		_, err := collective.PoolProc(context.Background(), e, failOn2, []int{2})
		require.Error(t, err)
		out, err := collective.PoolProc(context.Background(), e, add2, []int{10})
		require.NoError(t, err)
		require.Equal(t, []int{12}, out)
	})
}

func TestProcessMode_WorkersAreReusedAcrossBatches(t *testing.T) {
	e, err := collective.New(collective.ModeProcess, collective.WithMaxWorkers(1))
	require.NoError(t, err)
	defer e.Close()

	first, err := collective.PoolProc(context.Background(), e, pid, []int{0, 0})
	require.NoError(t, err)
	second, err := collective.PoolProc(context.Background(), e, pid, []int{0})
	require.NoError(t, err)

	require.Equal(t, first[0], first[1])
	require.Equal(t, first[0], second[0])
	require.NotEqual(t, 0, first[0])
}

func TestThreadMode_RespectsMaxWorkers(t *testing.T) {
	const workers = 3
	e, err := collective.New(collective.ModeThread, collective.WithMaxWorkers(workers))
	require.NoError(t, err)
	defer e.Close()

	var running, peak atomic.Int32
	fn := func(x int) int {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return x
	}

	in := make([]int, 20)
	for i := range in {
		in[i] = i
	}
	out, err := collective.Run[int, int](context.Background(), e, fn, in)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestProcessMode_SerializationFailures(t *testing.T) {
	e, err := collective.New(collective.ModeProcess)
	require.NoError(t, err)
	defer e.Close()

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "unregistered function",
			run: func() error {
				_, err := collective.Run[int, int](context.Background(), e, func(x int) int { return x }, []int{1})
				return err
			},
		},
		{
			name: "argument cannot be encoded",
			run: func() error {
				_, err := collective.PoolProc(context.Background(), e, takesAny, []any{make(chan int)})
				return err
			},
		},
		{
			name: "result cannot be encoded",
			run: func() error {
				_, err := collective.PoolProc(context.Background(), e, leaksChan, []int{1})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.ErrorIs(t, err, collective.ErrSerialization)
			var te *collective.TaskError
			require.ErrorAs(t, err, &te)
			require.Equal(t, 0, te.Index)
		})
	}
}

func TestThreadMode_PassesValuesByReference(t *testing.T) {
	e, err := collective.New(collective.ModeThread)
	require.NoError(t, err)
	defer e.Close()

	out, err := collective.PoolProc(context.Background(), e, leaksChan, []int{1})
	require.NoError(t, err)
	require.Equal(t, reflect.Chan, reflect.TypeOf(out[0]).Kind())
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	for _, mode := range []collective.Mode{"gpu", "", "Thread "} {
		e, err := collective.New(mode)
		if !errors.Is(err, collective.ErrConfiguration) {
			t.Fatalf("New(%q): expected ErrConfiguration, got %v", mode, err)
		}
		if e != nil {
			t.Fatalf("New(%q): expected nil executor", mode)
		}
	}
}

func TestRun_AfterClose(t *testing.T) {
	forEachMode(t, func(t *testing.T, e *collective.Executor) {
		require.NoError(t, e.Close())
		_, err := collective.PoolProc(context.Background(), e, add2, []int{1})
		require.ErrorIs(t, err, collective.ErrExecutorClosed)
	})
}

func TestProcessMode_FailFastTermination(t *testing.T) {
	tests := []struct {
		name     string
		opts     []collective.Option
		wantSlow bool
	}{
		{name: "running workers are killed", opts: nil, wantSlow: false},
		{name: "running workers finish", opts: []collective.Option{collective.WithoutTermination()}, wantSlow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]collective.Option{collective.WithMaxWorkers(2)}, tt.opts...)
			e, err := collective.New(collective.ModeProcess, opts...)
			require.NoError(t, err)
			defer e.Close()

			// Task 0 fails quickly while task 1 keeps a worker busy for 3s.
			_, err = collective.BranchProc(context.Background(), e,
				[]*collective.Procedure[int, int]{failOn2, sleepy}, []int{2, 3000})
			var te *collective.TaskError
			require.ErrorAs(t, err, &te)
			require.Equal(t, 0, te.Index)

			// The next batch needs both workers at once.
			start := time.Now()
			out, err := collective.PoolProc(context.Background(), e, sleepy, []int{200, 200})
			elapsed := time.Since(start)
			require.NoError(t, err)
			require.Equal(t, []int{200, 200}, out)

			if tt.wantSlow {
				if elapsed < 2*time.Second {
					t.Fatalf("expected the follow-up batch to wait for the running worker, took %s", elapsed)
				}
				return
			}
			if elapsed > 1500*time.Millisecond {
				t.Fatalf("expected the running worker to be killed and replaced, follow-up took %s", elapsed)
			}
		})
	}
}
