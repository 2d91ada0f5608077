package backend

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// status classifies a worker response.
type status uint8

const (
	statusOK status = iota
	statusFailed
	statusSerialization
	statusUnknownProcedure
	statusPanicked
)

// request is sent from the parent to a worker process.
type request struct {
	Seq  uint64             `msgpack:"seq"`
	Proc string             `msgpack:"proc"`
	Args msgpack.RawMessage `msgpack:"args"`
}

// response is sent back for every request, in request order.
type response struct {
	Seq    uint64             `msgpack:"seq"`
	Status status             `msgpack:"status"`
	Value  msgpack.RawMessage `msgpack:"value,omitempty"`
	Error  string             `msgpack:"error,omitempty"`
}

// RemoteError carries the message of an error returned by a procedure in a worker process.
// The original error value does not survive the process boundary.
type RemoteError struct {
	Proc    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// result converts a response into a Go value or error.
func (r *response) result(proc string, decode func([]byte) (any, error)) (any, error) {
	switch r.Status {
	case statusOK:
		if decode == nil {
			return nil, nil
		}
		v, err := decode(r.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode result of %q: %w", ErrSerialization, proc, err)
		}
		return v, nil
	case statusSerialization:
		return nil, fmt.Errorf("%w: %s", ErrSerialization, r.Error)
	case statusUnknownProcedure:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcedure, proc)
	case statusPanicked:
		return nil, fmt.Errorf("%w: %s", ErrPanicked, r.Error)
	default:
		return nil, &RemoteError{Proc: proc, Message: r.Error}
	}
}

// statusOf classifies an error produced while serving a request.
func statusOf(err error) status {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrSerialization):
		return statusSerialization
	case errors.Is(err, ErrPanicked):
		return statusPanicked
	default:
		return statusFailed
	}
}
