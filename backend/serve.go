package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// WorkerEnv is set in the environment of every worker process. Its value is the pool name.
const WorkerEnv = "COLLECTIVE_WORKER"

// File descriptors carrying requests and responses in a worker process.
const (
	requestsFD  = 3
	responsesFD = 4
)

// Procedure is the worker-side view of a registered function: raw msgpack in, raw msgpack out.
type Procedure interface {
	Invoke(ctx context.Context, args []byte) ([]byte, error)
}

// Resolver looks procedures up by name.
type Resolver interface {
	Lookup(name string) (Procedure, bool)
}

// IsWorker reports whether the current process was launched as a worker by a Processes backend.
func IsWorker() bool {
	_, ok := os.LookupEnv(WorkerEnv)
	return ok
}

// ServeProcess serves requests on the pipes inherited from the parent until the parent
// closes its end.
func ServeProcess(ctx context.Context, r Resolver) error {
	in := os.NewFile(requestsFD, "collective-requests")
	out := os.NewFile(responsesFD, "collective-responses")
	if in == nil || out == nil {
		return fmt.Errorf("%s: worker pipes are missing", Namespace)
	}
	defer in.Close()
	defer out.Close()
	return Serve(ctx, r, in, out)
}

// Serve decodes requests from in, runs them one at a time and encodes responses to out.
// It returns nil once in is exhausted.
func Serve(ctx context.Context, r Resolver, in io.Reader, out io.Writer) error {
	dec := msgpack.NewDecoder(in)
	enc := msgpack.NewEncoder(out)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s: read request: %w", Namespace, err)
		}
		resp := handle(ctx, r, &req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("%s: write response: %w", Namespace, err)
		}
	}
}

func handle(ctx context.Context, r Resolver, req *request) *response {
	resp := &response{Seq: req.Seq}
	p, ok := r.Lookup(req.Proc)
	if !ok {
		resp.Status = statusUnknownProcedure
		resp.Error = req.Proc
		return resp
	}
	v, err := invoke(ctx, p, req.Args)
	resp.Status = statusOf(err)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Value = v
	return resp
}

func invoke(ctx context.Context, p Procedure, args []byte) (v []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, rec)
		}
	}()
	return p.Invoke(ctx, args)
}
