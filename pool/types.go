package pool

import (
	"context"
	"time"
)

const (
	// MaxThreads is the hard ceiling on workers per pool.
	MaxThreads = 20

	// MaxTasks is the hard ceiling on queued tasks per pool.
	MaxTasks = 100000
)

// TaskID identifies a task for the lifetime of the process.
type TaskID uint64

// TaskFunc is the unit of work carried by a Task.
// ctx is the lifetime context of the pool executing the task. The returned
// pair is stored in the task and handed back by Join.
//
// Type parameters:
//   - A: The argument bound to the task at creation
//   - R: The result type produced by the function
type TaskFunc[A any, R any] func(ctx context.Context, arg A) (R, error)

// Metrics receives pool events. Implementations must be safe for concurrent use.
// See the observability/prometheus package for a Prometheus implementation.
type Metrics interface {
	RecordTaskDuration(poolName string, duration time.Duration)
	RecordTaskPanic(poolName string)
	RecordTaskRejected(poolName string, reason string)
	RecordQueueDepth(poolName string, depth int)
	RecordWorkers(poolName string, workers int)
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Name       string
	Workers    int
	MaxWorkers int
	Running    int
	Queued     int
	MaxQueued  int
	Completed  uint64
	Rejected   uint64
	Closed     bool
}

type noopMetrics struct{}

func (noopMetrics) RecordTaskDuration(string, time.Duration) {}
func (noopMetrics) RecordTaskPanic(string)                   {}
func (noopMetrics) RecordTaskRejected(string, string)        {}
func (noopMetrics) RecordQueueDepth(string, int)             {}
func (noopMetrics) RecordWorkers(string, int)                {}
