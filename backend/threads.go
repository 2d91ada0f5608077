package backend

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ygrebnov/collective/pool"
)

// thread is a goroutine worker slot. It carries identity for diagnostics only.
type thread struct {
	id   int64
	name string
}

func (w *thread) run(ctx context.Context, fn func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, p)
		}
	}()
	return fn(ctx)
}

// Threads runs calls on at most n concurrent goroutines. Calls beyond n wait for a free slot.
type Threads struct {
	pool   pool.Pool[*thread]
	logger *zap.Logger
	seq    atomic.Uint64
}

// NewThreads creates a goroutine backend with n worker slots named after name.
func NewThreads(name string, n uint, logger *zap.Logger) *Threads {
	if logger == nil {
		logger = zap.NewNop()
	}
	var ids atomic.Int64
	newFn := func() (*thread, error) {
		id := ids.Add(1)
		return &thread{id: id, name: fmt.Sprintf("%s-%d", name, id)}, nil
	}
	return &Threads{pool: pool.NewFixed[*thread](n, newFn, nil), logger: logger}
}

func (t *Threads) Submit(ctx context.Context, c Call, done chan<- Completion) (Handle, error) {
	if c.Local == nil {
		return 0, ErrUnsupportedCall
	}
	h := Handle(t.seq.Add(1))

	go func() {
		w, err := t.pool.Get(ctx)
		if err != nil {
			done <- Completion{Handle: h, Err: err}
			return
		}
		t.logger.Debug("running task", zap.String("worker", w.name), zap.Int("index", c.Index))
		v, err := w.run(ctx, c.Local)
		t.pool.Put(w)
		done <- Completion{Handle: h, Value: v, Err: err}
	}()

	return h, nil
}

func (t *Threads) Close() error { return t.pool.Close() }
