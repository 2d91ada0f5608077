package backend

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestProcesses(t *testing.T, workers uint, terminate bool) *Processes {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	b := NewProcesses(ProcessConfig{
		Name:      "test",
		Workers:   workers,
		Command:   exe,
		Terminate: terminate,
	})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestProcesses_RunsRegisteredProcedure(t *testing.T) {
	b := newTestProcesses(t, 2, true)

	done := make(chan Completion, 1)
	h, err := b.Submit(context.Background(), Call{Proc: "double", Args: 21, Decode: decodeInt}, done)
	require.NoError(t, err)

	c := <-done
	require.Equal(t, h, c.Handle)
	require.NoError(t, c.Err)
	require.Equal(t, 42, c.Value)
}

func TestProcesses_RunsOutsideTheCallerProcess(t *testing.T) {
	b := newTestProcesses(t, 1, true)

	done := make(chan Completion, 1)
	_, err := b.Submit(context.Background(), Call{Proc: "pid", Args: 0, Decode: decodeInt}, done)
	require.NoError(t, err)

	c := <-done
	require.NoError(t, c.Err)
	require.NotEqual(t, os.Getpid(), c.Value)
}

func TestProcesses_ReusesWorkersAcrossCalls(t *testing.T) {
	b := newTestProcesses(t, 1, true)

	pids := make(map[any]struct{})
	for range 3 {
		done := make(chan Completion, 1)
		_, err := b.Submit(context.Background(), Call{Proc: "pid", Args: 0, Decode: decodeInt}, done)
		require.NoError(t, err)
		c := <-done
		require.NoError(t, c.Err)
		pids[c.Value] = struct{}{}
	}
	require.Len(t, pids, 1)
}

func TestProcesses_ReportsRemoteFailure(t *testing.T) {
	b := newTestProcesses(t, 1, true)

	done := make(chan Completion, 1)
	_, err := b.Submit(context.Background(), Call{Proc: "fail", Args: 1, Decode: decodeInt}, done)
	require.NoError(t, err)

	var remote *RemoteError
	require.ErrorAs(t, (<-done).Err, &remote)
	require.Equal(t, "bad input", remote.Message)
}

func TestProcesses_RejectsUntransferableArguments(t *testing.T) {
	b := newTestProcesses(t, 1, true)

	_, err := b.Submit(context.Background(), Call{Proc: "double", Args: make(chan int)}, make(chan Completion, 1))
	require.ErrorIs(t, err, ErrSerialization)

	_, err = b.Submit(context.Background(), Call{Local: func(context.Context) (any, error) { return nil, nil }}, make(chan Completion, 1))
	require.ErrorIs(t, err, ErrSerialization)
}

func TestProcesses_TerminatesRunningCallOnCancel(t *testing.T) {
	b := newTestProcesses(t, 1, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Completion, 1)
	_, err := b.Submit(ctx, Call{Proc: "sleep", Args: 10_000, Decode: decodeInt}, done)
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case c := <-done:
		require.ErrorIs(t, c.Err, context.Canceled)
		require.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled call was not terminated")
	}

	// The killed worker is replaced on demand.
	done = make(chan Completion, 1)
	_, err = b.Submit(context.Background(), Call{Proc: "double", Args: 2, Decode: decodeInt}, done)
	require.NoError(t, err)
	c := <-done
	require.NoError(t, c.Err)
	require.Equal(t, 4, c.Value)
}
