// Package pool provides a fixed-capacity worker pool that runs independently
// submitted tasks and lets callers track each one through its lifecycle.
//
// The two types are Pool, a bounded set of lazily started workers sharing a
// bounded FIFO queue, and Task[R], a unit of work with a private result slot.
//
// # Basic Usage
//
//	p, err := pool.New(4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	t := pool.NewTask(func(ctx context.Context, n int) (int, error) {
//	    return n * 2, nil
//	}, 21)
//	if err := p.Push(t); err != nil {
//	    log.Fatal(err)
//	}
//	v, err := t.Join() // 42, nil
//
//	_ = p.Delete()
//
// # Task Lifecycle
//
// A task is created unpushed, becomes pushed when handed to Push, running when
// a worker dequeues it and finished when its function returns. From there:
//
//   - Join: blocks until finished, returns the result and resets the task so it
//     can be pushed again
//   - TimedJoin: Join bounded by a timeout; on ErrTimeout the task is untouched
//   - JoinContext: Join bounded by a context
//   - Detach: hands the task to the pool, which releases it once it has run
//   - Delete: releases a task that is not queued or running
//
// # Lazy Workers
//
// New starts no worker. Push starts one more, up to the configured maximum,
// whenever queued plus running tasks exceed the live workers. Workers then live
// until Delete, which refuses with ErrHasTasks while anything is queued or
// running rather than drop work.
//
// Tasks leave the queue in push order. They may finish in any order.
//
// # Configuration Options
//
//   - WithMaxQueuedTasks(n): Bound the queue (default: MaxTasks)
//   - WithRateLimit(tasksPerSecond, burst): Throttle how fast tasks start
//   - WithRetryPolicy(maxAttempts, initialDelay): Re-run failing functions with backoff
//   - WithOSThreads / WithCPUAffinity: Lock workers to OS threads, optionally pinned
//   - WithLogger, WithMetrics: Observability sinks
//   - WithBeforeTaskStart, WithOnTaskEnd: Per-task hooks
//
// # Error Handling
//
// Every operation returns an error value; compare with errors.Is against the
// exported sentinels. A panic inside a task function is recovered and surfaces
// from Join as an error wrapping ErrTaskPanicked. Build with -tags debug to trace
// pool internals on stderr.
package pool
