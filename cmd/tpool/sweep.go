package main

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/tpool/internal/config"
	"github.com/utkarsh5026/tpool/pool"
)

type sweepOptions struct {
	workload
	maxWorkers int
}

type sweepResult struct {
	workers  int
	threads  int
	elapsed  time.Duration
	rejected int
}

func newSweepCmd(cfg config.Config, root *rootOptions) *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the same workload for every worker count up to --max-workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, root)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.maxWorkers, "max-workers", cfg.Workers, fmt.Sprintf("largest pool to try, 1-%d", pool.MaxThreads))
	flags.IntVarP(&opts.queue, "queue", "q", cfg.Queue, fmt.Sprintf("max queued tasks, 1-%d", pool.MaxTasks))
	flags.IntVarP(&opts.tasks, "tasks", "n", cfg.Tasks, "number of tasks per pool")
	flags.DurationVar(&opts.sleep, "sleep", cfg.Sleep, "how long each task sleeps")
	flags.Float64Var(&opts.rate, "rate", cfg.Rate, "tasks started per second per pool, 0 for unlimited")

	return cmd
}

// runSweep runs one pool per worker count, all at the same time.
func runSweep(opts *sweepOptions, root *rootOptions) error {
	if opts.maxWorkers < 1 || opts.maxWorkers > pool.MaxThreads {
		return fmt.Errorf("%w: max workers %d outside [1, %d]", pool.ErrInvalidArgument, opts.maxWorkers, pool.MaxThreads)
	}

	colorPrintf(bold, "Sweeping 1..%d workers, %d tasks each (sleep %v)\n\n", opts.maxWorkers, opts.tasks, opts.sleep)

	bar := makeProgressBar(opts.maxWorkers*opts.tasks, "Sweeping")

	var (
		mu      sync.Mutex
		results = make([]sweepResult, 0, opts.maxWorkers)
		g       errgroup.Group
	)

	for n := 1; n <= opts.maxWorkers; n++ {
		w := opts.workload
		w.workers = n
		g.Go(func() error {
			report, err := w.execute(fmt.Sprintf("tpool-sweep-%d", n), []pool.Option{pool.WithLogger(root.logger())}, bar)
			if err != nil {
				return fmt.Errorf("%d workers: %w", n, err)
			}
			mu.Lock()
			results = append(results, sweepResult{
				workers:  n,
				threads:  report.threads,
				elapsed:  report.elapsed,
				rejected: report.rejected,
			})
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	slices.SortFunc(results, func(a, b sweepResult) int { return a.workers - b.workers })
	renderSweep(results, opts.tasks)
	return nil
}
