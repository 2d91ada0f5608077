package collective

import (
	"os"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective/metrics"
)

// capability is something an executor may need from its environment.
// Required capabilities fail construction when absent; optional ones degrade the named feature.
type capability struct {
	name     string
	required bool
	// resolve fills in cfg and reports whether the capability is available.
	resolve func(cfg *config) (bool, error)
}

func capabilities(mode Mode) []capability {
	caps := []capability{
		{name: "logging", resolve: func(cfg *config) (bool, error) {
			if cfg.Logger == nil {
				cfg.Logger = zap.NewNop()
				return false, nil
			}
			return true, nil
		}},
		{name: "metrics", resolve: func(cfg *config) (bool, error) {
			if cfg.Metrics == nil {
				cfg.Metrics = metrics.NewNoopProvider()
				return false, nil
			}
			return true, nil
		}},
	}
	if mode == ModeProcess {
		caps = append(caps, capability{name: "worker-command", required: true, resolve: resolveWorkerCommand})
	}
	return caps
}

func resolveWorkerCommand(cfg *config) (bool, error) {
	if cfg.Backend != nil || cfg.WorkerCommand != "" {
		return true, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return false, err
	}
	cfg.WorkerCommand = exe
	return true, nil
}

// negotiate resolves every capability once, at construction.
func negotiate(mode Mode, cfg *config) error {
	return negotiateWith(capabilities(mode), cfg)
}

func negotiateWith(caps []capability, cfg *config) error {
	var degraded []string
	for _, c := range caps {
		ok, err := c.resolve(cfg)
		if ok {
			continue
		}
		if c.required {
			reason := "unavailable"
			if err != nil {
				reason = err.Error()
			}
			return errorc.With(ErrConfiguration, errorc.String(c.name, reason))
		}
		degraded = append(degraded, c.name)
	}
	if len(degraded) > 0 && cfg.Logger != nil {
		cfg.Logger.Debug("optional capabilities disabled", zap.Strings("capabilities", degraded))
	}
	return nil
}
