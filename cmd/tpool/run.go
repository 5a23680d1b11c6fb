package main

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/tpool/internal/config"
	tpoolprom "github.com/utkarsh5026/tpool/observability/prometheus"
	"github.com/utkarsh5026/tpool/pool"
)

type runOptions struct {
	workload
	metrics bool
	pin     bool
}

func newRunCmd(cfg config.Config, root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Push demo tasks into one pool and join them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, root)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.workers, "workers", "w", cfg.Workers, fmt.Sprintf("max workers, 1-%d", pool.MaxThreads))
	flags.IntVarP(&opts.queue, "queue", "q", cfg.Queue, fmt.Sprintf("max queued tasks, 1-%d", pool.MaxTasks))
	flags.IntVarP(&opts.tasks, "tasks", "n", cfg.Tasks, "number of tasks to push")
	flags.DurationVar(&opts.sleep, "sleep", cfg.Sleep, "how long each task sleeps")
	flags.Float64Var(&opts.rate, "rate", cfg.Rate, "tasks started per second, 0 for unlimited")
	flags.DurationVar(&opts.timeout, "timeout", 0, "join with this timeout, retrying until the task finishes")
	flags.BoolVar(&opts.detach, "detach", false, "detach tasks instead of joining them")
	flags.BoolVar(&opts.metrics, "metrics", false, "print the collected Prometheus metrics")
	flags.BoolVar(&opts.pin, "pin", false, "pin each worker to a CPU")

	return cmd
}

func runRun(opts *runOptions, root *rootOptions) error {
	poolOpts := []pool.Option{pool.WithLogger(root.logger())}
	if opts.pin {
		poolOpts = append(poolOpts, pool.WithCPUAffinity())
	}

	reg := prom.NewRegistry()
	if opts.metrics {
		exporter, err := tpoolprom.NewMetricsExporter("tpool", reg, tpoolprom.ExporterOptions{})
		if err != nil {
			return err
		}
		poolOpts = append(poolOpts, pool.WithMetrics(exporter))
	}

	colorPrintf(bold, "Running %d tasks on up to %d workers (sleep %v)\n\n", opts.tasks, opts.workers, opts.sleep)

	bar := makeProgressBar(opts.tasks, "Joining")
	if opts.detach {
		bar.Describe("Detaching")
	}

	report, err := opts.execute("tpool-run", poolOpts, bar)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	if !opts.detach {
		renderRunResults(report)
	}
	renderRunSummary(report, opts.workers)

	if opts.metrics {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		renderMetrics(families)
	}
	return nil
}
