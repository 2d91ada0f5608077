package collective

import (
	"context"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/collective/backend"
)

// Run applies target to every argument set on e's workers and returns the results in
// argument-set order, regardless of completion order.
//
// target is either a single function (pool mode), applied to every argument set, or a
// slice of functions (branch mode) whose element i is applied to argSets[i]. Supported
// function shapes are Func[A, R], func(context.Context, A) (R, error), func(A) (R, error),
// func(A) R and *Procedure[A, R]; slices of any of them, or a []any mixing them, select
// branch mode. In process mode every function must be a *Procedure.
//
// Semantics:
//   - Preconditions are checked before anything is dispatched: argSets must be non-empty
//     and target valid (ErrConfiguration), a branch must match argSets in length
//     (ErrArityMismatch), and process-mode functions must be procedures (ErrSerialization).
//   - Every task is dispatched immediately; at most MaxWorkers run at a time.
//   - The first failure observed, in completion order, aborts the batch: Run returns a
//     *TaskError naming the failed index, tasks that have not started are skipped, and
//     results of tasks still running are ignored. Goroutine workers are not preempted;
//     process workers are killed unless WithoutTermination was given.
//   - Cancelling ctx aborts the batch the same way and returns an error wrapping ErrCancelled.
func Run[A, R any](ctx context.Context, e *Executor, target any, argSets []A) ([]R, error) {
	if e == nil {
		return nil, errorc.With(ErrConfiguration, errorc.String("", "nil executor"))
	}
	if e.closed.Load() {
		return nil, ErrExecutorClosed
	}
	if len(argSets) == 0 {
		return nil, errorc.With(ErrConfiguration, errorc.String("", "batch has no argument sets"))
	}

	invokers, err := resolveTarget[A, R](target, len(argSets))
	if err != nil {
		return nil, err
	}

	calls := make([]backend.Call, len(argSets))
	for i := range argSets {
		t := task[A, R]{index: i, fn: invokers[i], args: argSets[i]}
		if e.mode == ModeProcess && t.fn.proc == "" {
			return nil, newTaskError(i, errorc.With(ErrSerialization,
				errorc.String("", "only registered procedures can run in process mode")))
		}
		calls[i] = t.call()
	}

	return execute[R](ctx, e, calls)
}

// Pool applies fn to every argument set. See Run.
func Pool[A, R any](ctx context.Context, e *Executor, fn Func[A, R], argSets []A) ([]R, error) {
	return Run[A, R](ctx, e, fn, argSets)
}

// Branch applies fns[i] to argSets[i]. See Run.
func Branch[A, R any](ctx context.Context, e *Executor, fns []Func[A, R], argSets []A) ([]R, error) {
	return Run[A, R](ctx, e, fns, argSets)
}

// PoolProc applies a registered procedure to every argument set. See Run.
func PoolProc[A, R any](ctx context.Context, e *Executor, p *Procedure[A, R], argSets []A) ([]R, error) {
	return Run[A, R](ctx, e, p, argSets)
}

// BranchProc applies procs[i] to argSets[i]. See Run.
func BranchProc[A, R any](ctx context.Context, e *Executor, procs []*Procedure[A, R], argSets []A) ([]R, error) {
	return Run[A, R](ctx, e, procs, argSets)
}

// task is one argument set paired with its function. It is immutable once built.
type task[A, R any] struct {
	index int
	fn    invoker[A, R]
	args  A
}

// call describes t to a backend. Local is always set; Proc, Args and Decode only for procedures.
func (t task[A, R]) call() backend.Call {
	fn, args := t.fn.fn, t.args
	c := backend.Call{
		Index: t.index,
		Local: func(ctx context.Context) (any, error) { return fn(ctx, args) },
	}
	if t.fn.proc != "" {
		c.Proc = t.fn.proc
		c.Args = args
		c.Decode = decodeResult[R]
	}
	return c
}
