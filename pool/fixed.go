package pool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Get once the pool has been closed.
var ErrClosed = errors.New("pool: closed")

// fixed caps the number of checked-out workers at capacity.
// A token in tokens represents one checked-out (or being created) worker.
type fixed[W any] struct {
	tokens  chan struct{}
	idle    chan W
	newFn   func() (W, error)
	closeFn func(W) error

	mu     sync.Mutex
	closed bool
}

// NewFixed creates a pool handing out at most capacity workers at a time.
// Workers are created lazily by newFn and reused after Put. closeFn, if not nil,
// releases a worker on Discard and Close.
func NewFixed[W any](capacity uint, newFn func() (W, error), closeFn func(W) error) Pool[W] {
	if closeFn == nil {
		closeFn = func(W) error { return nil }
	}
	return &fixed[W]{
		tokens:  make(chan struct{}, capacity),
		idle:    make(chan W, capacity),
		newFn:   newFn,
		closeFn: closeFn,
	}
}

func (p *fixed[W]) Get(ctx context.Context) (W, error) {
	var zero W
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if p.isClosed() {
		<-p.tokens
		return zero, ErrClosed
	}

	select {
	case w := <-p.idle:
		return w, nil
	default:
	}

	w, err := p.newFn()
	if err != nil {
		<-p.tokens
		return zero, err
	}
	return w, nil
}

func (p *fixed[W]) Put(w W) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = p.closeFn(w)
		<-p.tokens
		return
	}
	p.idle <- w
	p.mu.Unlock()
	<-p.tokens
}

func (p *fixed[W]) Discard(w W) {
	_ = p.closeFn(w)
	<-p.tokens
}

func (p *fixed[W]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var g errgroup.Group
	for {
		select {
		case w := <-p.idle:
			g.Go(func() error { return p.closeFn(w) })
		default:
			return g.Wait()
		}
	}
}

func (p *fixed[W]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
