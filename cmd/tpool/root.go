package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/utkarsh5026/tpool/internal/config"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd(cfg config.Config) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tpool",
		Short: "Drive a fixed-capacity worker pool",
		Long: `tpool pushes sleeping demo tasks into a worker pool and reports how they ran.

Defaults come from the environment or a .env file in the working directory:
  TPOOL_WORKERS  pool size
  TPOOL_QUEUE    max queued tasks
  TPOOL_TASKS    tasks per run
  TPOOL_SLEEP    per-task sleep, e.g. 50ms
  TPOOL_RATE     tasks per second, 0 for unlimited`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pool events to stderr")

	rootCmd.AddCommand(newRunCmd(cfg, opts))
	rootCmd.AddCommand(newSweepCmd(cfg, opts))
	return rootCmd
}

// logger returns a text logger on stderr when verbose is set, and a discarding
// one otherwise.
func (o *rootOptions) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
