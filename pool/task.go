package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var taskIDCounter atomic.Uint64

// Job is a unit of work that can be pushed onto a Pool.
// Every *Task[R] is a Job; the interface lets one pool run tasks of
// different result types.
type Job interface {
	core() *taskCore
}

// Task is a unit of work with an observable lifecycle and a result slot.
//
// A task is owned by its creator until it is pushed. Join hands the result back
// and makes the task reusable; Detach hands ownership to the pool, which
// releases the task once it has run.
//
// Type parameters:
//   - R: The result type produced by the task function
type Task[R any] struct {
	c *taskCore
}

// NewTask creates an unpushed task that will call fn(ctx, arg) on a worker.
//
// Example:
//
//	t := pool.NewTask(func(ctx context.Context, n int) (int, error) {
//	    return n * 2, nil
//	}, 21)
//	_ = p.Push(t)
//	v, err := t.Join() // 42, nil
func NewTask[A any, R any](fn TaskFunc[A, R], arg A) *Task[R] {
	return &Task[R]{c: newTaskCore(func(ctx context.Context) (any, error) {
		return fn(ctx, arg)
	})}
}

// NewFunc creates an unpushed task from a closure that takes no argument.
func NewFunc[R any](fn func(ctx context.Context) (R, error)) *Task[R] {
	return &Task[R]{c: newTaskCore(func(ctx context.Context) (any, error) {
		return fn(ctx)
	})}
}

func (t *Task[R]) core() *taskCore {
	if t == nil {
		return nil
	}
	return t.c
}

// ID returns the process-unique identifier of the task.
func (t *Task[R]) ID() TaskID { return t.c.id }

// IsFinished reports whether the function has returned and its result is stored.
func (t *Task[R]) IsFinished() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.finished
}

// IsRunning reports whether a worker is executing the task right now.
func (t *Task[R]) IsRunning() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.running
}

// IsPushed reports whether the task sits in a pool and has not been joined.
func (t *Task[R]) IsPushed() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.pushed
}

// IsDetached reports whether ownership has been handed to the pool.
func (t *Task[R]) IsDetached() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.detached
}

// Owner returns the pool the task is pushed to, or nil.
func (t *Task[R]) Owner() *Pool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.pool
}

// Join blocks until the task finishes and returns what its function returned.
// The task is reset to unpushed and may be pushed again, to any pool.
//
// Returns ErrTaskNotPushed if the task is not in a pool, including a second
// Join without an intervening Push.
func (t *Task[R]) Join() (R, error) {
	return typed[R](t.c.wait(context.Background()))
}

// TimedJoin is Join bounded by a deadline of now+timeout.
// If the task has not finished by then it returns ErrTimeout and leaves the
// task untouched, so the caller may try again. A non-positive timeout checks
// once without waiting. The task keeps running either way.
//
// Example:
//
//	v, err := t.TimedJoin(pool.Seconds(0.5))
//	if errors.Is(err, pool.ErrTimeout) {
//	    // still running, try later
//	}
func (t *Task[R]) TimedJoin(timeout time.Duration) (R, error) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(timeout))
	defer cancel()

	v, taskErr, err := t.c.wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}
	return typed[R](v, taskErr, err)
}

// JoinContext is Join bounded by ctx. When ctx ends first it returns ctx.Err()
// and leaves the task untouched.
func (t *Task[R]) JoinContext(ctx context.Context) (R, error) {
	return typed[R](t.c.wait(ctx))
}

// Delete releases the task's function, argument and result.
//
// Returns ErrTaskInPool if the task is pushed, unfinished and not detached,
// since a worker may still write to it. Deleting a detached task that has not
// run yet is a no-op: the worker releases it after it finishes.
func (t *Task[R]) Delete() error {
	return t.c.delete()
}

// Detach gives up interest in the result and hands the task to its pool.
// A finished task is deleted at once; otherwise the worker that finishes it
// deletes it after publishing completion.
//
// Returns ErrTaskNotPushed if the task is not in a pool.
func (t *Task[R]) Detach() error {
	return t.c.detach()
}

func typed[R any](v any, taskErr, err error) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}
	r, _ := v.(R)
	return r, taskErr
}

// taskCore is the type-erased private block shared by Task[R] and the pool.
// Every field below mu is guarded by mu.
type taskCore struct {
	id TaskID

	mu   sync.Mutex
	exec func(ctx context.Context) (any, error)
	// done is recreated on every push and closed when the task finishes or
	// leaves the pool without running.
	done     chan struct{}
	pushed   bool
	running  bool
	finished bool
	detached bool
	deleted  bool
	pool     *Pool
	value    any
	err      error
}

func newTaskCore(exec func(ctx context.Context) (any, error)) *taskCore {
	return &taskCore{
		id:   TaskID(taskIDCounter.Add(1)),
		exec: exec,
	}
}

// wait blocks until the task is finished or ctx is done. The finished flag is
// re-checked under the lock after every wake. On success the stored pair is
// returned and the task goes back to unpushed.
func (c *taskCore) wait(ctx context.Context) (any, error, error) {
	expired := false

	c.mu.Lock()
	for {
		if !c.pushed {
			c.mu.Unlock()
			return nil, nil, ErrTaskNotPushed
		}

		if c.finished {
			v, taskErr := c.value, c.err
			c.pushed = false
			c.pool = nil
			c.value, c.err = nil, nil
			c.mu.Unlock()
			return v, taskErr, nil
		}

		if expired {
			c.mu.Unlock()
			return nil, nil, ctx.Err()
		}

		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			expired = true
		}

		c.mu.Lock()
	}
}

// markPushed claims the task for p.
func (c *taskCore) markPushed(p *Pool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted || (c.pushed && !c.finished) {
		return ErrInvalidArgument
	}

	c.pushed = true
	c.running = false
	c.finished = false
	c.detached = false
	c.pool = p
	c.value, c.err = nil, nil
	c.done = make(chan struct{})
	return nil
}

// unmarkPushed rolls back markPushed when the enqueue fails.
func (c *taskCore) unmarkPushed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pushed = false
	c.detached = false
	c.pool = nil
	close(c.done)
}

// start flags the task running and hands out its function.
func (c *taskCore) start() func(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = true
	return c.exec
}

// finish publishes the result and wakes joiners. A detached task is released
// in the same critical section. Reports whether it was released.
func (c *taskCore) finish(v any, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value, c.err = v, err
	c.running = false
	c.finished = true
	close(c.done)

	if c.detached {
		c.release()
		return true
	}
	return false
}

func (c *taskCore) delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pushed && !c.finished {
		if c.detached {
			return nil
		}
		return ErrTaskInPool
	}

	c.release()
	return nil
}

func (c *taskCore) detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pushed {
		return ErrTaskNotPushed
	}

	if c.finished {
		c.release()
		return nil
	}

	c.detached = true
	return nil
}

// release drops everything the task references. Callers hold mu.
func (c *taskCore) release() {
	c.deleted = true
	c.pushed = false
	c.exec = nil
	c.pool = nil
	c.value, c.err = nil, nil
}
