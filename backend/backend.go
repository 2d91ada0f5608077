// Package backend provides the worker pools the executor dispatches calls to.
//
// A Backend accepts a call, runs it on a worker drawn from a fixed-size pool and
// reports the outcome asynchronously, in completion order, on a caller-supplied channel.
// Two implementations are provided:
//   - Threads: goroutine workers sharing memory with the caller.
//   - Processes: long-lived child processes; arguments and results are copied by value
//     using msgpack and only registered procedures can be invoked.
package backend

import (
	"context"
	"errors"
)

const Namespace = "collective"

var (
	// ErrSerialization reports a value that cannot cross the process boundary.
	ErrSerialization = errors.New(Namespace + ": value cannot be transferred to a worker process")
	// ErrPanicked reports a task function that panicked.
	ErrPanicked = errors.New(Namespace + ": task execution panicked")
	// ErrUnknownProcedure is returned when a worker process has no procedure with the requested name.
	ErrUnknownProcedure = errors.New(Namespace + ": unknown procedure")
	// ErrUnsupportedCall is returned by Submit when the call lacks what the backend needs to run it.
	ErrUnsupportedCall = errors.New(Namespace + ": call is not supported by this backend")
	// ErrWorkerExited reports a worker process that went away while serving a call.
	ErrWorkerExited = errors.New(Namespace + ": worker process exited")
)

// Handle identifies one submitted call. Handles are unique per Backend instance.
type Handle uint64

// Call is one unit of work handed to a Backend.
//
// Local is used by backends sharing memory with the caller. Proc, Args and Decode
// are used by backends that copy values: Args is encoded at submission time and the
// raw result is turned back into a Go value by Decode.
type Call struct {
	Index  int
	Local  func(ctx context.Context) (any, error)
	Proc   string
	Args   any
	Decode func(raw []byte) (any, error)
}

// Completion reports the terminal state of a submitted call.
type Completion struct {
	Handle Handle
	Value  any
	Err    error
}

// Backend is the worker-pool capability the executor depends on.
type Backend interface {
	// Submit schedules c and returns immediately. Exactly one Completion carrying the
	// returned Handle is later sent on done; done must have room for it, as sends are not
	// abandoned. A non-nil error means nothing was scheduled.
	// Cancelling ctx prevents queued calls from starting.
	Submit(ctx context.Context, c Call, done chan<- Completion) (Handle, error)

	// Close releases idle workers. Calls already running are not interrupted.
	Close() error
}
