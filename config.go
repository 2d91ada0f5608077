package collective

import (
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective/backend"
	"github.com/ygrebnov/collective/metrics"
)

// config holds Executor configuration.
type config struct {
	// MaxWorkers is the fixed number of workers. Default: 2.
	MaxWorkers int

	// Name identifies the executor in logs and worker process environments.
	// Default: a random UUID.
	Name string

	// Logger receives diagnostics. Default: zap.NewNop().
	Logger *zap.Logger

	// Metrics receives executor measurements. Default: metrics.NoopProvider.
	Metrics metrics.Provider

	// Backend replaces the built-in backend selected by mode.
	Backend backend.Backend

	// WorkerCommand and WorkerArgs launch process-mode workers.
	// Default: the current executable without arguments.
	WorkerCommand string
	WorkerArgs    []string

	// WorkerEnv is appended to the environment of process-mode workers.
	WorkerEnv []string

	// Terminate kills process-mode workers still running tasks of a failed batch.
	// Default: true.
	Terminate bool
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		MaxWorkers: 2,
		Terminate:  true,
	}
}

// validateConfig checks invariants options cannot enforce on their own.
func validateConfig(cfg *config) error {
	if cfg.MaxWorkers <= 0 {
		return errorc.With(ErrConfiguration, errorc.String("", "max workers must be > 0"))
	}
	return nil
}

// Option configures an Executor.
type Option func(*config) error

// WithMaxWorkers sets the fixed number of workers (must be > 0).
func WithMaxWorkers(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrConfiguration, errorc.String("", "WithMaxWorkers requires n > 0"))
		}
		cfg.MaxWorkers = n
		return nil
	}
}

// WithName sets the diagnostic name of the executor.
func WithName(name string) Option {
	return func(cfg *config) error { cfg.Name = name; return nil }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrConfiguration, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error { cfg.Metrics = p; return nil }
}

// WithBackend replaces the backend selected by mode, e.g. with a remote worker fleet.
// The executor closes b when it is closed.
func WithBackend(b backend.Backend) Option {
	return func(cfg *config) error {
		if b == nil {
			return errorc.With(ErrConfiguration, errorc.String("", "WithBackend requires a non-nil backend"))
		}
		cfg.Backend = b
		return nil
	}
}

// WithWorkerCommand sets the command launched for each process-mode worker.
// The command must call ServeIfWorker with a registry holding the procedures it will be asked to run.
func WithWorkerCommand(path string, args ...string) Option {
	return func(cfg *config) error {
		if path == "" {
			return errorc.With(ErrConfiguration, errorc.String("", "WithWorkerCommand requires a path"))
		}
		cfg.WorkerCommand = path
		cfg.WorkerArgs = args
		return nil
	}
}

// WithWorkerEnv appends "KEY=value" pairs to the environment of process-mode workers.
func WithWorkerEnv(kv ...string) Option {
	return func(cfg *config) error { cfg.WorkerEnv = append(cfg.WorkerEnv, kv...); return nil }
}

// WithoutTermination keeps process-mode workers of a failed batch running until their
// current task completes instead of killing them.
func WithoutTermination() Option {
	return func(cfg *config) error { cfg.Terminate = false; return nil }
}
