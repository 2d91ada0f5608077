package collective

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ygrebnov/collective/backend"
	"github.com/ygrebnov/collective/pool"
)

// batchState tracks one Run call: Idle → Dispatching → Collecting → {Completed | Failed}.
type batchState int

const (
	stateIdle batchState = iota
	stateDispatching
	stateCollecting
	stateCompleted
	stateFailed
)

func (s batchState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDispatching:
		return "dispatching"
	case stateCollecting:
		return "collecting"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("batchState(%d)", int(s))
	}
}

// batch holds the per-call bookkeeping. Nothing in it outlives the Run call.
type batch[R any] struct {
	e      *Executor
	logger *zap.Logger
	state  batchState

	// handles maps backend handles to task indices; it is a bijection while the batch runs.
	handles    map[backend.Handle]int
	dispatched []time.Time
	slots      *resultSlots[R]
}

func execute[R any](ctx context.Context, e *Executor, calls []backend.Call) ([]R, error) {
	n := len(calls)
	b := &batch[R]{
		e:          e,
		logger:     e.logger.With(zap.Uint64("batch", e.batches.Add(1)), zap.Int("tasks", n)),
		handles:    make(map[backend.Handle]int, n),
		dispatched: make([]time.Time, n),
		slots:      newResultSlots[R](n),
	}
	e.instruments.batches.Add(1)

	// Cancelling on return stops queued tasks of an aborted batch from starting.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Room for every completion, so abandoned workers never block on send.
	done := make(chan backend.Completion, n)

	b.transition(stateDispatching)
	for i := range calls {
		if err := b.dispatch(ctx, calls[i], done); err != nil {
			return nil, b.fail(i, err)
		}
	}

	b.transition(stateCollecting)
	for b.slots.pending() > 0 {
		select {
		case <-ctx.Done():
			return nil, b.cancelled(ctx.Err())
		case c := <-done:
			if err := b.collect(ctx, c); err != nil {
				return nil, err
			}
		}
	}

	b.transition(stateCompleted)
	return b.slots.ordered(), nil
}

func (b *batch[R]) dispatch(ctx context.Context, c backend.Call, done chan<- backend.Completion) error {
	h, err := b.e.backend.Submit(ctx, c, done)
	if err != nil {
		return err
	}
	if prev, ok := b.handles[h]; ok {
		return fmt.Errorf("%s: backend reused handle %d of task %d", Namespace, h, prev)
	}
	b.handles[h] = c.Index
	b.dispatched[c.Index] = time.Now()
	b.e.instruments.dispatched.Add(1)
	b.e.instruments.inflight.Add(1)
	return nil
}

func (b *batch[R]) collect(ctx context.Context, c backend.Completion) error {
	i, ok := b.handles[c.Handle]
	if !ok {
		return fmt.Errorf("%s: completion for unknown handle %d", Namespace, c.Handle)
	}
	delete(b.handles, c.Handle)
	b.e.instruments.inflight.Add(-1)
	b.e.instruments.duration.Record(time.Since(b.dispatched[i]).Seconds())

	if c.Err != nil {
		if ctx.Err() != nil {
			return b.cancelled(ctx.Err())
		}
		if errors.Is(c.Err, pool.ErrClosed) {
			return b.closed()
		}
		return b.fail(i, c.Err)
	}

	var v R
	if c.Value != nil {
		typed, ok := c.Value.(R)
		if !ok {
			return b.fail(i, fmt.Errorf("%w: result has type %T", ErrSerialization, c.Value))
		}
		v = typed
	}
	return b.slots.put(i, v)
}

// fail aborts the batch because task index failed.
func (b *batch[R]) fail(index int, err error) error {
	b.abandon()
	b.transition(stateFailed)
	b.e.instruments.failed.Add(1)
	b.e.instruments.batchesFailed.Add(1)
	b.logger.Error("task failed", zap.Int("index", index), zap.Error(err))
	return newTaskError(index, err)
}

func (b *batch[R]) cancelled(cause error) error {
	b.abandon()
	b.transition(stateFailed)
	b.e.instruments.batchesFailed.Add(1)
	b.logger.Warn("batch cancelled", zap.Error(cause))
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// closed aborts the batch because the executor was closed while it ran.
func (b *batch[R]) closed() error {
	b.abandon()
	b.transition(stateFailed)
	b.e.instruments.batchesFailed.Add(1)
	b.logger.Warn("executor closed during batch")
	return ErrExecutorClosed
}

// abandon stops accounting for tasks whose results will be ignored.
func (b *batch[R]) abandon() {
	b.e.instruments.inflight.Add(-int64(len(b.handles)))
	clear(b.handles)
}

func (b *batch[R]) transition(s batchState) {
	b.logger.Debug("batch state", zap.Stringer("from", b.state), zap.Stringer("to", s))
	b.state = s
}
