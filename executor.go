package collective

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective/backend"
	"github.com/ygrebnov/collective/metrics"
)

// Executor applies functions to batches of argument sets on a fixed pool of workers.
// It is created once and reused by many Run calls; methods are safe for concurrent use.
type Executor struct {
	// noCopy prevents accidental copying of the executor.
	//go:nocopy
	nc noCopy

	mode       Mode
	maxWorkers int
	name       string

	backend     backend.Backend
	logger      *zap.Logger
	instruments instruments

	// batches numbers Run calls for log correlation.
	batches atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates an Executor running tasks in the given mode.
// An invalid mode or option fails with ErrConfiguration before any worker pool is allocated.
// Process-mode workers are started lazily by the first Run.
func New(mode Mode, opts ...Option) (*Executor, error) {
	if !mode.valid() {
		return nil, newModeError(mode)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := negotiate(mode, &cfg); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = uuid.NewString()
	}

	e := &Executor{
		mode:        mode,
		maxWorkers:  cfg.MaxWorkers,
		name:        cfg.Name,
		logger:      cfg.Logger.With(zap.String("pool", cfg.Name)),
		instruments: newInstruments(cfg.Metrics),
	}
	e.backend = cfg.Backend
	if e.backend == nil {
		e.backend = newBackend(mode, &cfg, e.logger)
	}

	e.logger.Info("starting executor",
		zap.Stringer("mode", mode), zap.Int("workers", cfg.MaxWorkers))
	return e, nil
}

func newBackend(mode Mode, cfg *config, logger *zap.Logger) backend.Backend {
	if mode == ModeProcess {
		return backend.NewProcesses(backend.ProcessConfig{
			Name:      cfg.Name,
			Workers:   uint(cfg.MaxWorkers),
			Command:   cfg.WorkerCommand,
			Args:      cfg.WorkerArgs,
			Env:       cfg.WorkerEnv,
			Terminate: cfg.Terminate,
			Logger:    logger,
		})
	}
	return backend.NewThreads(cfg.Name, uint(cfg.MaxWorkers), logger)
}

// Mode returns the executor's worker kind.
func (e *Executor) Mode() Mode { return e.mode }

// MaxWorkers returns the fixed number of workers.
func (e *Executor) MaxWorkers() int { return e.maxWorkers }

// Name returns the diagnostic name.
func (e *Executor) Name() string { return e.name }

// Close shuts the worker pool down. It is idempotent; Run fails with ErrExecutorClosed afterwards.
// Tasks still running on goroutine workers are not interrupted.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.backend.Close()
		e.logger.Info("executor closed")
	})
	return e.closeErr
}

type instruments struct {
	batches       metrics.Counter
	batchesFailed metrics.Counter
	dispatched    metrics.Counter
	failed        metrics.Counter
	inflight      metrics.UpDownCounter
	duration      metrics.Histogram
}

func newInstruments(p metrics.Provider) instruments {
	return instruments{
		batches:       p.Counter(metrics.BatchesTotal, metrics.WithDescription("Run calls started")),
		batchesFailed: p.Counter(metrics.BatchesFailedTotal, metrics.WithDescription("Run calls that failed")),
		dispatched:    p.Counter(metrics.TasksDispatchedTotal, metrics.WithDescription("tasks handed to workers")),
		failed:        p.Counter(metrics.TasksFailedTotal, metrics.WithDescription("task failures that aborted a batch")),
		inflight:      p.UpDownCounter(metrics.TasksInflight, metrics.WithDescription("tasks dispatched and not yet collected")),
		duration: p.Histogram(metrics.TaskDurationSeconds,
			metrics.WithDescription("time from dispatch to collection"), metrics.WithUnit("seconds")),
	}
}
