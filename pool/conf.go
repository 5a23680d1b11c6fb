package pool

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/utkarsh5026/tpool/internal/algorithms"
	"golang.org/x/time/rate"
)

// Option is a functional option for configuring a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	name      string
	maxQueued int
	ctx       context.Context

	rateLimiter *rate.Limiter

	maxAttempts         int
	backoffType         algorithms.BackoffType
	backoffInitialDelay time.Duration
	backoffMaxDelay     time.Duration
	backoffJitterFactor float64

	lockOSThread bool
	pinCPU       bool

	logger  *slog.Logger
	metrics Metrics

	beforeTaskStart func(workerID int, id TaskID)
	onTaskEnd       func(workerID int, id TaskID, err error)
}

func defaultConfig() *poolConfig {
	return &poolConfig{
		name:                "tpool",
		maxQueued:           MaxTasks,
		ctx:                 context.Background(),
		maxAttempts:         1,
		backoffType:         algorithms.BackoffExponential,
		backoffInitialDelay: 100 * time.Millisecond,
		backoffMaxDelay:     5 * time.Second,
		backoffJitterFactor: 0.1,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:             noopMetrics{},
	}
}

// WithName labels the pool in logs, metrics and Stats.
func WithName(name string) Option {
	return func(cfg *poolConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithMaxQueuedTasks sets how many tasks may wait in the queue.
// It must be within [1, MaxTasks]; New rejects anything else.
// If not specified, defaults to MaxTasks.
func WithMaxQueuedTasks(n int) Option {
	return func(cfg *poolConfig) {
		cfg.maxQueued = n
	}
}

// WithContext sets the parent of the lifetime context handed to task functions.
// The lifetime context is cancelled when the pool is deleted.
func WithContext(ctx context.Context) Option {
	return func(cfg *poolConfig) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// WithRateLimit caps how fast workers start tasks.
// tasksPerSecond specifies the sustained rate, burst how many may start back to back.
// If not specified, no rate limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithRetryPolicy re-runs a task function that returns an error.
// maxAttempts counts the first run; initialDelay is the delay before the first
// retry, later delays follow the configured backoff.
// If not specified, every function runs exactly once.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *poolConfig) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.backoffInitialDelay = initialDelay
		}
	}
}

// WithBackoff selects the delay algorithm between retries.
func WithBackoff(backoffType algorithms.BackoffType, initialDelay, maxDelay time.Duration, jitterFactor float64) Option {
	return func(cfg *poolConfig) {
		cfg.backoffType = backoffType
		if initialDelay > 0 {
			cfg.backoffInitialDelay = initialDelay
		}
		if maxDelay > 0 {
			cfg.backoffMaxDelay = maxDelay
		}
		if jitterFactor >= 0 {
			cfg.backoffJitterFactor = jitterFactor
		}
	}
}

// WithOSThreads locks every worker goroutine to its own OS thread for the
// worker's whole life.
func WithOSThreads() Option {
	return func(cfg *poolConfig) {
		cfg.lockOSThread = true
	}
}

// WithCPUAffinity locks every worker to an OS thread and pins that thread to
// CPU (workerID mod NumCPU) where the platform allows it.
func WithCPUAffinity() Option {
	return func(cfg *poolConfig) {
		cfg.lockOSThread = true
		cfg.pinCPU = true
	}
}

// WithLogger sets the logger for pool events. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *poolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics sets the sink for pool metrics.
func WithMetrics(m Metrics) Option {
	return func(cfg *poolConfig) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithBeforeTaskStart registers a hook called on the worker right after a task
// is dequeued and before its function runs.
func WithBeforeTaskStart(fn func(workerID int, id TaskID)) Option {
	return func(cfg *poolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called on the worker after a task function
// returns and before its result is published.
func WithOnTaskEnd(fn func(workerID int, id TaskID, err error)) Option {
	return func(cfg *poolConfig) {
		cfg.onTaskEnd = fn
	}
}
