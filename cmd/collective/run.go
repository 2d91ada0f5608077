package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective"
	"github.com/ygrebnov/collective/metrics"
)

type runOptions struct {
	file    string
	mode    string
	workers int
	name    string
	stats   bool
}

func newRunCommand(b *builtins, logger *zap.Logger) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run -f FILE",
		Short: "Run a batch described in a YAML file",
		Long: "Run loads a batch of tasks from a YAML file and prints their results in task order.\n" +
			"When every task names the same procedure it runs in pool mode, otherwise in branch mode.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bf, err := loadBatchFile(opts.file)
			if err != nil {
				return err
			}
			// Flags win over the file.
			flags := cmd.Flags()
			if flags.Changed("mode") || bf.Mode == "" {
				bf.Mode = opts.mode
			}
			if flags.Changed("workers") || bf.Workers == 0 {
				bf.Workers = opts.workers
			}
			if flags.Changed("name") {
				bf.Name = opts.name
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), logger, b, bf, opts.stats)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "batch file (YAML)")
	cmd.Flags().StringVar(&opts.mode, "mode", string(collective.ModeThread), "worker kind: thread or process")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 2, "number of workers")
	cmd.Flags().StringVar(&opts.name, "name", "", "executor name used in logs")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print executor metrics after the batch")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// plan is a batch file resolved against the built-in procedures.
type plan struct {
	names  []string
	args   []Args
	target any
	branch bool
}

func newPlan(b *builtins, bf *batchFile) (*plan, error) {
	p := &plan{names: bf.procNames(), args: make([]Args, len(bf.Tasks))}
	procs := make([]*collective.Procedure[Args, string], len(bf.Tasks))
	for i, t := range bf.Tasks {
		proc, ok := b.lookup(p.names[i])
		if !ok {
			return nil, fmt.Errorf("%w: task %d: unknown procedure %q", errInvalidBatch, i, p.names[i])
		}
		procs[i] = proc
		p.args[i] = t.args()
		if p.names[i] != p.names[0] {
			p.branch = true
		}
	}
	if p.branch {
		p.target = procs
	} else {
		p.target = procs[0]
	}
	return p, nil
}

func (p *plan) kind() string {
	if p.branch {
		return "branch"
	}
	return "pool"
}

func runBatch(ctx context.Context, out io.Writer, logger *zap.Logger, b *builtins, bf *batchFile, stats bool) error {
	mode, err := collective.ParseMode(bf.Mode)
	if err != nil {
		return err
	}
	p, err := newPlan(b, bf)
	if err != nil {
		return err
	}

	opts := []collective.Option{
		collective.WithMaxWorkers(bf.Workers),
		collective.WithLogger(logger),
	}
	if bf.Name != "" {
		opts = append(opts, collective.WithName(bf.Name))
	}
	var promReg *prometheus.Registry
	if stats {
		promReg = prometheus.NewRegistry()
		opts = append(opts, collective.WithMetrics(metrics.NewPrometheusProvider(promReg, "")))
	}

	e, err := collective.New(mode, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			logger.Warn("closing executor", zap.Error(cerr))
		}
	}()

	start := time.Now()
	results, err := collective.Run[Args, string](ctx, e, p.target, p.args)
	elapsed := time.Since(start)
	if err != nil {
		if i, ok := collective.ExtractTaskIndex(err); ok && i < len(p.names) {
			return fmt.Errorf("%s(%s): %w", p.names[i], p.args[i], err)
		}
		return err
	}

	if err := renderResults(out, p, results); err != nil {
		return err
	}
	green.Fprintf(out, "%d tasks, %s mode, %s, %d workers, %s\n",
		len(results), p.kind(), mode, e.MaxWorkers(), elapsed.Round(time.Millisecond))

	if promReg != nil {
		families, err := promReg.Gather()
		if err != nil {
			return err
		}
		return renderStats(out, families)
	}
	return nil
}

func newProcsCommand(b *builtins) *cobra.Command {
	return &cobra.Command{
		Use:   "procs",
		Short: "List the built-in procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderProcs(cmd.OutOrStdout(), b)
		},
	}
}
