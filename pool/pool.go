package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool is a bounded set of lazily started workers sharing one bounded FIFO queue.
//
// Workers are started one at a time by Push, only while demand (queued plus
// running tasks) exceeds the number of live workers. Once started a worker
// lives until Delete. A Pool must not be copied.
type Pool struct {
	name       string
	maxWorkers int
	conf       *poolConfig

	// ctx is handed to task functions and cancelled once the workers are gone.
	ctx    context.Context
	cancel context.CancelFunc

	// group joins the workers; its limit equals maxWorkers.
	group errgroup.Group
	// spawn starts one worker goroutine and reports whether it did.
	spawn func(fn func() error) bool

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *taskQueue
	workers  int
	running  int
	shutdown bool

	completed atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a pool that runs at most maxWorkers tasks at a time.
// No worker is started until work arrives.
//
// Returns ErrInvalidArgument if maxWorkers is outside [1, MaxThreads] or the
// queue limit is outside [1, MaxTasks].
//
// Example:
//
//	p, err := pool.New(4, pool.WithName("images"), pool.WithMaxQueuedTasks(1024))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Delete()
func New(maxWorkers int, opts ...Option) (*Pool, error) {
	if maxWorkers < 1 || maxWorkers > MaxThreads {
		return nil, fmt.Errorf("%w: max workers %d outside [1, %d]", ErrInvalidArgument, maxWorkers, MaxThreads)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.maxQueued < 1 || cfg.maxQueued > MaxTasks {
		return nil, fmt.Errorf("%w: max queued tasks %d outside [1, %d]", ErrInvalidArgument, cfg.maxQueued, MaxTasks)
	}

	ctx, cancel := context.WithCancel(cfg.ctx)
	p := &Pool{
		name:       cfg.name,
		maxWorkers: maxWorkers,
		conf:       cfg,
		ctx:        ctx,
		cancel:     cancel,
		queue:      newTaskQueue(cfg.maxQueued),
	}
	p.cond = sync.NewCond(&p.mu)
	p.group.SetLimit(maxWorkers)
	p.spawn = p.group.TryGo

	return p, nil
}

// Name returns the label set with WithName.
func (p *Pool) Name() string { return p.name }

// ThreadCount returns the number of live workers. It never exceeds the
// configured maximum and does not drop until Delete.
func (p *Pool) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Push appends job to the queue and returns without waiting for it to run.
// It starts one more worker when the current ones cannot cover the demand;
// if that fails the job simply waits for an existing or future worker.
//
// Returns:
//   - ErrPoolClosed after Delete
//   - ErrTooManyTasks if the queue is at its limit (the queue is unchanged)
//   - ErrInvalidArgument if job is nil, deleted, or pushed and unfinished
func (p *Pool) Push(job Job) error {
	if job == nil {
		return ErrInvalidArgument
	}
	c := job.core()
	if c == nil {
		return ErrInvalidArgument
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.queue.full() {
		p.mu.Unlock()
		p.reject("queue_full")
		return ErrTooManyTasks
	}
	p.mu.Unlock()

	// The task lock is taken with the pool lock released.
	if err := c.markPushed(p); err != nil {
		p.reject("invalid")
		return err
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		c.unmarkPushed()
		return ErrPoolClosed
	}
	if err := p.queue.push(c); err != nil {
		p.mu.Unlock()
		c.unmarkPushed()
		p.reject("queue_full")
		return fmt.Errorf("%w: %w", ErrTooManyTasks, err)
	}
	p.maybeSpawnLocked()
	depth, workers := p.queue.len(), p.workers
	p.cond.Signal()
	p.mu.Unlock()

	debugLog("pushed task %d to %s: queued=%d workers=%d", c.id, p.name, depth, workers)
	p.conf.metrics.RecordQueueDepth(p.name, depth)
	return nil
}

// maybeSpawnLocked starts at most one worker. Callers hold p.mu.
func (p *Pool) maybeSpawnLocked() {
	if p.workers >= p.maxWorkers {
		return
	}
	if p.running+p.queue.len() <= p.workers {
		return
	}

	workerID := p.workers
	ok := p.spawn(func() error {
		p.worker(workerID)
		return nil
	})
	if !ok {
		p.conf.logger.Warn("worker spawn failed, task stays queued",
			"pool", p.name, "workers", p.workers, "queued", p.queue.len())
		return
	}

	p.workers++
	p.conf.metrics.RecordWorkers(p.name, p.workers)
	p.conf.logger.Debug("worker started", "pool", p.name, "worker", workerID, "workers", p.workers)
}

// Delete stops every worker and waits for them to exit.
// It refuses rather than waits when work remains: tasks are never dropped.
//
// Returns ErrHasTasks while any task is queued or running, and ErrPoolClosed
// if the pool was already deleted.
func (p *Pool) Delete() error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.running > 0 || p.queue.len() > 0 {
		running, queued := p.running, p.queue.len()
		p.mu.Unlock()
		return fmt.Errorf("%w: %d running, %d queued", ErrHasTasks, running, queued)
	}
	p.shutdown = true
	workers := p.workers
	p.cond.Broadcast()
	p.mu.Unlock()

	_ = p.group.Wait()
	p.cancel()

	p.mu.Lock()
	p.workers = 0
	p.mu.Unlock()

	p.conf.metrics.RecordWorkers(p.name, 0)
	p.conf.logger.Info("pool deleted", "pool", p.name, "workers", workers, "completed", p.completed.Load())
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Name:       p.name,
		Workers:    p.workers,
		MaxWorkers: p.maxWorkers,
		Running:    p.running,
		Queued:     p.queue.len(),
		MaxQueued:  p.queue.limit,
		Completed:  p.completed.Load(),
		Rejected:   p.rejected.Load(),
		Closed:     p.shutdown,
	}
}

func (p *Pool) reject(reason string) {
	p.rejected.Add(1)
	p.conf.metrics.RecordTaskRejected(p.name, reason)
}
