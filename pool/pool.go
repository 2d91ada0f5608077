package pool

import "context"

// Pool is an interface that defines methods on a bounded pool of workers.
type Pool[W any] interface {
	// Get returns a worker from the pool, blocking until one is available or ctx is done.
	Get(ctx context.Context) (W, error)

	// Put returns a healthy worker back to the pool.
	Put(W)

	// Discard releases the capacity held by a broken worker without returning it to the pool.
	Discard(W)

	// Close releases idle workers. Workers still in use are released when they are put back.
	Close() error
}
