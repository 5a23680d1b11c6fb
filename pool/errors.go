package pool

import "errors"

// Errors returned by Pool and Task operations. Compare with errors.Is.
var (
	// ErrInvalidArgument reports bad construction parameters or a push of a
	// task that is already queued or running.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTooManyTasks reports that the pool queue is at its limit.
	ErrTooManyTasks = errors.New("too many tasks")

	// ErrHasTasks reports a pool deletion attempted while work is queued or running.
	ErrHasTasks = errors.New("pool has tasks")

	// ErrTaskNotPushed reports a join or detach of a task that is not in a pool.
	ErrTaskNotPushed = errors.New("task not pushed")

	// ErrTaskInPool reports a deletion of a task a worker may still touch.
	ErrTaskInPool = errors.New("task in pool")

	// ErrTimeout reports that a timed join gave up before the task finished.
	ErrTimeout = errors.New("timeout")

	// ErrPoolClosed reports an operation on a pool that has been deleted.
	ErrPoolClosed = errors.New("pool closed")

	// ErrTaskPanicked wraps a panic recovered from a task function.
	ErrTaskPanicked = errors.New("task panicked")

	ErrQueueFull = errors.New("queue is full")
)
