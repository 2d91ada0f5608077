package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective/pool"
)

// shutdownGrace bounds how long Close waits for an idle worker to exit after its
// request pipe is closed before killing it.
const shutdownGrace = 2 * time.Second

// ProcessConfig configures a Processes backend.
type ProcessConfig struct {
	// Name is exported to workers through WorkerEnv and used in logs.
	Name string
	// Workers is the maximum number of concurrently running worker processes.
	Workers uint
	// Command and Args launch a worker. The command must call ServeProcess when
	// WorkerEnv is present in its environment.
	Command string
	Args    []string
	// Env is appended to the parent environment.
	Env []string
	// Terminate kills workers whose call context is cancelled while a call is running.
	Terminate bool
	Logger    *zap.Logger
}

// Processes runs registered procedures in isolated worker processes.
// Workers are started on demand, reused across calls and replaced when they die or are killed.
type Processes struct {
	cfg  ProcessConfig
	pool pool.Pool[*child]
	seq  atomic.Uint64
}

// NewProcesses creates a process backend. No process is started until the first Submit.
func NewProcesses(cfg ProcessConfig) *Processes {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &Processes{cfg: cfg}
	var ids atomic.Int64
	p.pool = pool.NewFixed[*child](
		cfg.Workers,
		func() (*child, error) { return spawn(&p.cfg, ids.Add(1)) },
		func(c *child) error { return c.close() },
	)
	return p
}

func (p *Processes) Submit(ctx context.Context, c Call, done chan<- Completion) (Handle, error) {
	if c.Proc == "" {
		return 0, fmt.Errorf("%w: function is not a registered procedure", ErrSerialization)
	}
	args, err := msgpack.Marshal(c.Args)
	if err != nil {
		return 0, fmt.Errorf("%w: encode arguments for %q: %w", ErrSerialization, c.Proc, err)
	}
	h := Handle(p.seq.Add(1))

	go func() {
		w, err := p.pool.Get(ctx)
		if err != nil {
			done <- Completion{Handle: h, Err: err}
			return
		}
		resp, err := w.call(ctx, &request{Seq: uint64(h), Proc: c.Proc, Args: args}, p.cfg.Terminate)
		if err != nil {
			p.cfg.Logger.Debug("discarding worker process",
				zap.Int64("worker", w.id), zap.Int("index", c.Index), zap.Error(err))
			p.pool.Discard(w)
			done <- Completion{Handle: h, Err: err}
			return
		}
		p.pool.Put(w)
		v, err := resp.result(c.Proc, c.Decode)
		done <- Completion{Handle: h, Value: v, Err: err}
	}()

	return h, nil
}

func (p *Processes) Close() error { return p.pool.Close() }

// child is one worker process and the parent ends of its pipes.
type child struct {
	id     int64
	cmd    *exec.Cmd
	logger *zap.Logger

	reqW  *os.File
	respR *os.File
	enc   *msgpack.Encoder
	dec   *msgpack.Decoder

	closeOnce sync.Once
	closeErr  error
}

func spawn(cfg *ProcessConfig, id int64) (*child, error) {
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%s: create request pipe: %w", Namespace, err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		_ = reqR.Close()
		_ = reqW.Close()
		return nil, fmt.Errorf("%s: create response pipe: %w", Namespace, err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(append(os.Environ(), cfg.Env...), WorkerEnv+"="+cfg.Name)
	// requestsFD and responsesFD in the child.
	cmd.ExtraFiles = []*os.File{reqR, respW}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	// The child holds its own copies now.
	_ = reqR.Close()
	_ = respW.Close()
	if err != nil {
		_ = reqW.Close()
		_ = respR.Close()
		return nil, fmt.Errorf("%s: start worker process: %w", Namespace, err)
	}

	cfg.Logger.Debug("worker process started",
		zap.String("pool", cfg.Name), zap.Int64("worker", id), zap.Int("pid", cmd.Process.Pid))

	return &child{
		id:     id,
		cmd:    cmd,
		logger: cfg.Logger,
		reqW:   reqW,
		respR:  respR,
		enc:    msgpack.NewEncoder(reqW),
		dec:    msgpack.NewDecoder(respR),
	}, nil
}

// call sends req and waits for its response. With terminate set, a cancelled ctx
// kills the process instead of waiting for the call to finish.
func (c *child) call(ctx context.Context, req *request, terminate bool) (*response, error) {
	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrWorkerExited, err)
	}

	type reply struct {
		resp *response
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		var resp response
		err := c.dec.Decode(&resp)
		ch <- reply{resp: &resp, err: err}
	}()

	var r reply
	if terminate {
		select {
		case r = <-ch:
		case <-ctx.Done():
			c.logger.Debug("killing worker process", zap.Int64("worker", c.id))
			_ = c.cmd.Process.Kill()
			<-ch
			return nil, ctx.Err()
		}
	} else {
		r = <-ch
	}

	if r.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkerExited, r.err)
	}
	if r.resp.Seq != req.Seq {
		return nil, fmt.Errorf("%s: response %d does not match request %d", Namespace, r.resp.Seq, req.Seq)
	}
	return r.resp, nil
}

// close asks the worker to exit by closing its request pipe, killing it after shutdownGrace.
func (c *child) close() error {
	c.closeOnce.Do(func() {
		_ = c.reqW.Close()
		waitCh := make(chan error, 1)
		go func() { waitCh <- c.cmd.Wait() }()
		select {
		case err := <-waitCh:
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				c.closeErr = err
			}
		case <-time.After(shutdownGrace):
			_ = c.cmd.Process.Kill()
			<-waitCh
		}
		_ = c.respR.Close()
	})
	return c.closeErr
}
