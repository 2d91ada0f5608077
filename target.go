package collective

import (
	"context"
	"strconv"

	"github.com/ygrebnov/errorc"
)

// Func is the canonical task function: it receives the batch context and one argument set.
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// invoker is a task function resolved from a Run target.
// proc is set only for registered procedures, the only functions a worker process can run.
type invoker[A, R any] struct {
	fn   Func[A, R]
	proc string
}

// resolveTarget converts target into one invoker per argument set.
//
// A single function (pool mode) is applied to every argument set. A slice of functions
// (branch mode) must have exactly n elements; element i is paired with argument set i.
func resolveTarget[A, R any](target any, n int) ([]invoker[A, R], error) {
	if one, ok, err := resolveOne[A, R](target); ok {
		if err != nil {
			return nil, err
		}
		out := make([]invoker[A, R], n)
		for i := range out {
			out[i] = one
		}
		return out, nil
	}

	var elems []any
	switch typed := target.(type) {
	case []Func[A, R]:
		elems = toAny(typed)
	case []func(context.Context, A) (R, error):
		elems = toAny(typed)
	case []func(A) (R, error):
		elems = toAny(typed)
	case []func(A) R:
		elems = toAny(typed)
	case []*Procedure[A, R]:
		elems = toAny(typed)
	case []any:
		elems = typed
	default:
		return nil, errorc.With(ErrConfiguration, errorc.String("", "target is not a supported function or function slice"))
	}

	if len(elems) != n {
		return nil, errorc.With(ErrArityMismatch,
			errorc.String("functions", strconv.Itoa(len(elems))),
			errorc.String("argument sets", strconv.Itoa(n)),
		)
	}

	out := make([]invoker[A, R], n)
	for i, el := range elems {
		inv, ok, err := resolveOne[A, R](el)
		if !ok {
			err = errorc.With(ErrConfiguration, errorc.String("", "branch element is not a supported function"))
		}
		if err != nil {
			return nil, newTaskError(i, err)
		}
		out[i] = inv
	}
	return out, nil
}

// resolveOne adapts a single supported callable. ok reports whether target has a
// callable type at all; err is set for nil callables.
func resolveOne[A, R any](target any) (inv invoker[A, R], ok bool, err error) {
	switch typed := target.(type) {
	case nil:
		return inv, true, errorc.With(ErrConfiguration, errorc.String("", "target is nil"))
	case Func[A, R]:
		inv.fn = typed
	case func(context.Context, A) (R, error):
		inv.fn = typed
	case func(A) (R, error):
		if typed != nil {
			inv.fn = func(_ context.Context, a A) (R, error) { return typed(a) }
		}
	case func(A) R:
		if typed != nil {
			inv.fn = func(_ context.Context, a A) (R, error) { return typed(a), nil }
		}
	case *Procedure[A, R]:
		if typed != nil {
			inv.fn, inv.proc = typed.fn, typed.name
		}
	default:
		return inv, false, nil
	}
	if inv.fn == nil {
		return inv, true, errorc.With(ErrConfiguration, errorc.String("", "function is nil"))
	}
	return inv, true, nil
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
