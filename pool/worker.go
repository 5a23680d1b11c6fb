package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/utkarsh5026/tpool/internal/algorithms"
	"github.com/utkarsh5026/tpool/internal/cpu"
)

// worker is the loop run by every spawned goroutine: wait for work, dequeue the
// head, run it, publish, repeat. It returns once shutdown is requested and the
// queue is empty.
func (p *Pool) worker(workerID int) {
	if p.conf.lockOSThread {
		release, err := cpu.LockThread(workerID, p.conf.pinCPU)
		if err != nil {
			p.conf.logger.Warn("cpu pinning failed", "pool", p.name, "worker", workerID, "error", err)
		}
		defer release()
	}

	debugLog("worker %d of %s started", workerID, p.name)
	defer debugLog("worker %d of %s exiting", workerID, p.name)

	for {
		p.mu.Lock()
		for p.queue.len() == 0 && !p.shutdown {
			p.cond.Wait()
		}

		c, ok := p.queue.pop()
		if !ok {
			p.mu.Unlock()
			return
		}
		p.running++
		depth := p.queue.len()
		p.mu.Unlock()

		p.conf.metrics.RecordQueueDepth(p.name, depth)
		p.execute(workerID, c)
	}
}

// execute runs one dequeued task and publishes its outcome.
// Called without p.mu held; the pool lock and the task lock are never nested.
func (p *Pool) execute(workerID int, c *taskCore) {
	exec := c.start()

	if p.conf.beforeTaskStart != nil {
		p.conf.beforeTaskStart(workerID, c.id)
	}

	started := time.Now()
	result, err := p.processWithRecovery(exec)
	p.conf.metrics.RecordTaskDuration(p.name, time.Since(started))

	if p.conf.onTaskEnd != nil {
		p.conf.onTaskEnd(workerID, c.id, err)
	}

	// running drops before joiners wake, so a caller that has joined every
	// task can delete the pool straight away.
	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	p.completed.Add(1)

	if c.finish(result, err) {
		p.conf.logger.Debug("detached task released", "pool", p.name, "task", c.id)
	}
}

// processWithRecovery executes a task with panic recovery and retry logic.
// If a panic occurs, it's converted to an error to prevent crashing the worker.
func (p *Pool) processWithRecovery(exec func(ctx context.Context) (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrTaskPanicked, r, buf[:n])
			p.conf.metrics.RecordTaskPanic(p.name)
			p.conf.logger.Error("task panicked", "pool", p.name, "panic", r)
		}
	}()

	if p.conf.rateLimiter != nil {
		if err := p.conf.rateLimiter.Wait(p.ctx); err != nil {
			return nil, err
		}
	}

	maxAttempts := max(p.conf.maxAttempts, 1)
	var backoff algorithms.BackoffStrategy

	for attempt := range maxAttempts {
		if attempt > 0 {
			if backoff == nil {
				backoff = algorithms.NewBackoffStrategy(
					p.conf.backoffType,
					p.conf.backoffInitialDelay,
					p.conf.backoffMaxDelay,
					p.conf.backoffJitterFactor,
				)
			}

			select {
			case <-time.After(backoff.NextDelay(attempt-1, err)):
			case <-p.ctx.Done():
				return result, p.ctx.Err()
			}
		}

		result, err = exec(p.ctx)
		if err == nil {
			return result, nil
		}

		if attempt < maxAttempts-1 {
			p.conf.logger.Debug("task failed, retrying", "pool", p.name, "attempt", attempt+1, "error", err)
		}
	}

	return result, err
}
