// Command collective runs batches of built-in procedures on goroutine or process workers.
//
// The binary is also its own process worker: executors in process mode re-launch it,
// and ServeIfWorker takes over before any command runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ygrebnov/collective"
	"github.com/ygrebnov/collective/internal/logger"
)

var procs = newBuiltins()

func main() {
	collective.ServeIfWorker(procs.registry)

	log := logger.New(os.Stderr)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(procs, log).ExecuteContext(ctx); err != nil {
		red.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(b *builtins, log *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "collective",
		Short:         "Apply procedures to batches of arguments on a fixed pool of workers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(b, log), newProcsCommand(b))
	return root
}
