package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/tpool/pool"
)

type workload struct {
	workers int
	queue   int
	tasks   int
	sleep   time.Duration
	rate    float64
	timeout time.Duration
	detach  bool
}

type taskResult struct {
	id       pool.TaskID
	value    int
	worker   int
	elapsed  time.Duration
	timeouts int
	err      error
}

type runReport struct {
	results  []taskResult
	rejected int
	threads  int
	elapsed  time.Duration
}

// demoTask sleeps for d, or until the pool is torn down, and returns n.
func demoTask(d time.Duration, n int) *pool.Task[int] {
	return pool.NewTask(func(ctx context.Context, n int) (int, error) {
		select {
		case <-time.After(d):
			return n, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, n)
}

// execute pushes w.tasks demo tasks into a fresh pool, waits for them and
// deletes the pool. bar may be nil.
func (w workload) execute(name string, opts []pool.Option, bar *progressbar.ProgressBar) (*runReport, error) {
	var (
		mu       sync.Mutex
		workerOf = make(map[pool.TaskID]int, w.tasks)
	)

	opts = append(opts,
		pool.WithName(name),
		pool.WithMaxQueuedTasks(w.queue),
		pool.WithBeforeTaskStart(func(workerID int, id pool.TaskID) {
			mu.Lock()
			workerOf[id] = workerID
			mu.Unlock()
		}),
	)
	if w.rate > 0 {
		opts = append(opts, pool.WithRateLimit(w.rate, max(1, w.workers)))
	}

	p, err := pool.New(w.workers, opts...)
	if err != nil {
		return nil, err
	}

	report := &runReport{}
	start := time.Now()

	tasks := make([]*pool.Task[int], 0, w.tasks)
	for i := range w.tasks {
		t := demoTask(w.sleep, i)
		if err := p.Push(t); err != nil {
			if errors.Is(err, pool.ErrTooManyTasks) {
				report.rejected++
				continue
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}

	if w.detach {
		for _, t := range tasks {
			if err := t.Detach(); err != nil {
				return nil, fmt.Errorf("detach task %d: %w", t.ID(), err)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	} else {
		for _, t := range tasks {
			res := taskResult{id: t.ID()}
			res.value, res.timeouts, res.err = join(t, w.timeout)
			res.elapsed = time.Since(start)
			report.results = append(report.results, res)
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}

	report.threads = p.ThreadCount()

	// Detached tasks may still be running; Delete refuses until they drain.
	for {
		err = p.Delete()
		if !errors.Is(err, pool.ErrHasTasks) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		return nil, err
	}
	report.elapsed = time.Since(start)

	mu.Lock()
	for i := range report.results {
		report.results[i].worker = workerOf[report.results[i].id]
	}
	mu.Unlock()

	return report, nil
}

// join waits for t. With a positive timeout it polls with TimedJoin and counts
// how many times the wait expired.
func join(t *pool.Task[int], timeout time.Duration) (v int, timeouts int, err error) {
	if timeout <= 0 {
		v, err = t.Join()
		return v, 0, err
	}

	for {
		v, err = t.TimedJoin(timeout)
		if !errors.Is(err, pool.ErrTimeout) {
			return v, timeouts, err
		}
		timeouts++
	}
}
