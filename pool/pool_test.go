package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// gatedTask returns a task that signals started and then blocks until gate closes.
func gatedTask(gate <-chan struct{}, started chan<- TaskID, v int) *Task[int] {
	var t *Task[int]
	t = NewFunc(func(ctx context.Context) (int, error) {
		if started != nil {
			started <- t.ID()
		}
		<-gate
		return v, nil
	})
	return t
}

func mustNew(t *testing.T, maxWorkers int, opts ...Option) *Pool {
	t.Helper()
	p, err := New(maxWorkers, opts...)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", maxWorkers, err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name       string
		maxWorkers int
		opts       []Option
		wantErr    error
	}{
		{name: "zero workers", maxWorkers: 0, wantErr: ErrInvalidArgument},
		{name: "negative workers", maxWorkers: -3, wantErr: ErrInvalidArgument},
		{name: "above ceiling", maxWorkers: MaxThreads + 1, wantErr: ErrInvalidArgument},
		{name: "at ceiling", maxWorkers: MaxThreads},
		{name: "single worker", maxWorkers: 1},
		{name: "queue limit zero", maxWorkers: 2, opts: []Option{WithMaxQueuedTasks(0)}, wantErr: ErrInvalidArgument},
		{name: "queue limit above ceiling", maxWorkers: 2, opts: []Option{WithMaxQueuedTasks(MaxTasks + 1)}, wantErr: ErrInvalidArgument},
		{name: "queue limit one", maxWorkers: 2, opts: []Option{WithMaxQueuedTasks(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.maxWorkers, tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if p != nil {
					t.Error("expected nil pool on error")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.ThreadCount() != 0 {
				t.Errorf("expected no workers before the first push, got %d", p.ThreadCount())
			}
			if err := p.Delete(); err != nil {
				t.Errorf("delete of idle pool failed: %v", err)
			}
		})
	}
}

func TestPool_LazySpawn(t *testing.T) {
	p := mustNew(t, 3)
	gate := make(chan struct{})

	tasks := make([]*Task[int], 5)
	wantWorkers := []int{1, 2, 3, 3, 3}
	for i := range tasks {
		tasks[i] = gatedTask(gate, nil, i)
		if err := p.Push(tasks[i]); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
		if got := p.ThreadCount(); got != wantWorkers[i] {
			t.Errorf("after push %d: expected %d workers, got %d", i, wantWorkers[i], got)
		}
	}

	close(gate)
	for i, task := range tasks {
		if v, err := task.Join(); err != nil || v != i {
			t.Errorf("task %d: got (%d, %v)", i, v, err)
		}
	}

	if got := p.ThreadCount(); got != 3 {
		t.Errorf("expected workers to stay at 3 after draining, got %d", got)
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_NoSpawnWhileIdleWorkersCoverDemand(t *testing.T) {
	p := mustNew(t, 4)
	defer p.Delete()

	for i := range 10 {
		task := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, i)
		if err := p.Push(task); err != nil {
			t.Fatalf("push failed: %v", err)
		}
		if _, err := task.Join(); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	if got := p.ThreadCount(); got != 1 {
		t.Errorf("sequential push/join should need one worker, got %d", got)
	}
}

func TestPool_SpawnFailureLeavesTaskQueued(t *testing.T) {
	p := mustNew(t, 2)

	p.spawn = func(func() error) bool { return false }

	first := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 1)
	if err := p.Push(first); err != nil {
		t.Fatalf("push should absorb spawn failure, got %v", err)
	}

	stats := p.Stats()
	if stats.Workers != 0 || stats.Queued != 1 {
		t.Fatalf("expected 0 workers and 1 queued, got %+v", stats)
	}
	if _, err := first.TimedJoin(20 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout while no worker exists, got %v", err)
	}

	p.spawn = p.group.TryGo

	second := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 2)
	if err := p.Push(second); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	if v, err := first.Join(); err != nil || v != 1 {
		t.Errorf("first: got (%d, %v)", v, err)
	}
	if v, err := second.Join(); err != nil || v != 2 {
		t.Errorf("second: got (%d, %v)", v, err)
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_NeverExceedsMaxWorkers(t *testing.T) {
	const maxWorkers = 4
	p := mustNew(t, maxWorkers)

	var active, peak atomic.Int32
	fn := func(ctx context.Context, n int) (int, error) {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return n, nil
	}

	const total = 200
	tasks := make([]*Task[int], total)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := g; i < total; i += 8 {
				tasks[i] = NewTask(fn, i)
				if err := p.Push(tasks[i]); err != nil {
					t.Errorf("push %d failed: %v", i, err)
				}
				if c := p.ThreadCount(); c > maxWorkers {
					t.Errorf("thread count %d exceeds %d", c, maxWorkers)
				}
			}
		}()
	}
	wg.Wait()

	for i, task := range tasks {
		if v, err := task.Join(); err != nil || v != i {
			t.Errorf("task %d: got (%d, %v)", i, v, err)
		}
	}

	if peak.Load() > maxWorkers {
		t.Errorf("observed %d concurrent tasks, max is %d", peak.Load(), maxWorkers)
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_FIFOAdmission(t *testing.T) {
	var mu sync.Mutex
	var order []TaskID

	p := mustNew(t, 1, WithBeforeTaskStart(func(_ int, id TaskID) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}))

	gate := make(chan struct{})
	started := make(chan TaskID, 1)
	blocker := gatedTask(gate, started, -1)
	if err := p.Push(blocker); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	<-started

	tasks := make([]*Task[int], 20)
	for i := range tasks {
		tasks[i] = NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, i)
		if err := p.Push(tasks[i]); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}
	close(gate)

	for _, task := range tasks {
		if _, err := task.Join(); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}
	_, _ = blocker.Join()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(tasks)+1 || order[0] != blocker.ID() {
		t.Fatalf("unexpected start order %v", order)
	}
	for i, task := range tasks {
		if order[i+1] != task.ID() {
			t.Errorf("position %d: started task %d, want %d", i+1, order[i+1], task.ID())
		}
	}

	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_PushTooManyTasks(t *testing.T) {
	p := mustNew(t, 1, WithMaxQueuedTasks(2))

	gate := make(chan struct{})
	started := make(chan TaskID, 1)
	running := gatedTask(gate, started, 0)
	if err := p.Push(running); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	<-started

	queued := []*Task[int]{gatedTask(gate, nil, 1), gatedTask(gate, nil, 2)}
	for _, task := range queued {
		if err := p.Push(task); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	extra := gatedTask(gate, nil, 3)
	if err := p.Push(extra); !errors.Is(err, ErrTooManyTasks) {
		t.Fatalf("expected ErrTooManyTasks, got %v", err)
	}
	if extra.IsPushed() {
		t.Error("rejected task should not be marked pushed")
	}

	stats := p.Stats()
	if stats.Queued != 2 || stats.Running != 1 || stats.Rejected != 1 {
		t.Errorf("unexpected stats after rejection: %+v", stats)
	}

	close(gate)
	for _, task := range append([]*Task[int]{running}, queued...) {
		if _, err := task.Join(); err != nil {
			t.Errorf("join failed: %v", err)
		}
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_Delete(t *testing.T) {
	t.Run("refused while running", func(t *testing.T) {
		p := mustNew(t, 1)
		gate := make(chan struct{})
		started := make(chan TaskID, 1)
		task := gatedTask(gate, started, 7)
		_ = p.Push(task)
		<-started

		if err := p.Delete(); !errors.Is(err, ErrHasTasks) {
			t.Fatalf("expected ErrHasTasks, got %v", err)
		}

		close(gate)
		if _, err := task.Join(); err != nil {
			t.Fatalf("join failed: %v", err)
		}
		if err := p.Delete(); err != nil {
			t.Fatalf("expected delete to succeed after join, got %v", err)
		}
		if p.ThreadCount() != 0 {
			t.Errorf("expected no workers after delete, got %d", p.ThreadCount())
		}
	})

	t.Run("refused while queued", func(t *testing.T) {
		p := mustNew(t, 1)
		p.spawn = func(func() error) bool { return false }

		task := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 1)
		_ = p.Push(task)

		if err := p.Delete(); !errors.Is(err, ErrHasTasks) {
			t.Fatalf("expected ErrHasTasks, got %v", err)
		}

		p.spawn = p.group.TryGo
		_ = p.Push(NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 2))
		_, _ = task.Join()
		waitFor(t, "queue to drain", func() bool {
			s := p.Stats()
			return s.Queued == 0 && s.Running == 0
		})
		if err := p.Delete(); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
	})

	t.Run("workers exit and pool closes", func(t *testing.T) {
		p := mustNew(t, 2)
		gate := make(chan struct{})
		a, b := gatedTask(gate, nil, 1), gatedTask(gate, nil, 2)
		_ = p.Push(a)
		_ = p.Push(b)
		close(gate)
		_, _ = a.Join()
		_, _ = b.Join()

		if err := p.Delete(); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if err := p.ctx.Err(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected lifetime context cancelled, got %v", err)
		}
		if err := p.Delete(); !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed on second delete, got %v", err)
		}

		task := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 1)
		if err := p.Push(task); !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed on push after delete, got %v", err)
		}
		if !p.Stats().Closed {
			t.Error("expected stats to report closed")
		}
	})
}

func TestPool_EndToEnd(t *testing.T) {
	p := mustNew(t, 2)

	tasks := make([]*Task[int], 3)
	for i := range tasks {
		tasks[i] = NewTask(func(ctx context.Context, n int) (int, error) {
			time.Sleep(50 * time.Millisecond)
			return n, nil
		}, i)
		if err := p.Push(tasks[i]); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}

	if got := p.ThreadCount(); got != 2 {
		t.Errorf("expected exactly 2 workers, got %d", got)
	}

	seen := map[int]bool{}
	for _, task := range tasks {
		v, err := task.Join()
		if err != nil {
			t.Fatalf("join failed: %v", err)
		}
		seen[v] = true
	}
	for i := range 3 {
		if !seen[i] {
			t.Errorf("result %d missing", i)
		}
	}

	if got := p.ThreadCount(); got != 2 {
		t.Errorf("expected 2 workers after draining, got %d", got)
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_DetachedTaskReleasedByWorker(t *testing.T) {
	p := mustNew(t, 1)
	gate := make(chan struct{})
	started := make(chan TaskID, 1)
	task := gatedTask(gate, started, 5)

	if err := p.Push(task); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	<-started

	if err := task.Detach(); err != nil {
		t.Fatalf("detach failed: %v", err)
	}
	if err := task.Delete(); err != nil {
		t.Fatalf("delete of a detached task should be a no-op, got %v", err)
	}
	close(gate)

	waitFor(t, "worker to release detached task", func() bool {
		task.c.mu.Lock()
		defer task.c.mu.Unlock()
		return task.c.deleted
	})

	task.c.mu.Lock()
	if task.c.exec != nil || task.c.value != nil || task.c.pool != nil {
		t.Error("released task still holds references")
	}
	task.c.mu.Unlock()

	if _, err := task.Join(); !errors.Is(err, ErrTaskNotPushed) {
		t.Errorf("expected ErrTaskNotPushed joining a released task, got %v", err)
	}
	if err := p.Push(task); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument pushing a released task, got %v", err)
	}

	waitFor(t, "running count to drop", func() bool { return p.Stats().Running == 0 })
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	p := mustNew(t, 1)

	boom := NewFunc(func(ctx context.Context) (int, error) {
		panic("boom")
	})
	if err := p.Push(boom); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if _, err := boom.Join(); !errors.Is(err, ErrTaskPanicked) {
		t.Fatalf("expected ErrTaskPanicked, got %v", err)
	}

	after := NewTask(func(ctx context.Context, n int) (int, error) { return n + 1, nil }, 1)
	_ = p.Push(after)
	if v, err := after.Join(); err != nil || v != 2 {
		t.Errorf("worker should survive a panic, got (%d, %v)", v, err)
	}

	if got := p.ThreadCount(); got != 1 {
		t.Errorf("expected the same single worker, got %d", got)
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPool_Retry(t *testing.T) {
	t.Run("succeeds within attempts", func(t *testing.T) {
		p := mustNew(t, 1, WithRetryPolicy(3, time.Millisecond))
		defer p.Delete()

		var attempts atomic.Int32
		task := NewFunc(func(ctx context.Context) (string, error) {
			if attempts.Add(1) < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})

		_ = p.Push(task)
		v, err := task.Join()
		if err != nil || v != "ok" {
			t.Fatalf("got (%q, %v)", v, err)
		}
		if attempts.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts.Load())
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		p := mustNew(t, 1, WithRetryPolicy(2, time.Millisecond))
		defer p.Delete()

		errPermanent := errors.New("permanent")
		var attempts atomic.Int32
		task := NewFunc(func(ctx context.Context) (string, error) {
			attempts.Add(1)
			return "", errPermanent
		})

		_ = p.Push(task)
		if _, err := task.Join(); !errors.Is(err, errPermanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
		if attempts.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts.Load())
		}
	})
}

func TestPool_RateLimit(t *testing.T) {
	p := mustNew(t, 4, WithRateLimit(20, 1))
	defer p.Delete()

	start := time.Now()
	tasks := make([]*Task[int], 5)
	for i := range tasks {
		tasks[i] = NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, i)
		_ = p.Push(tasks[i])
	}
	for _, task := range tasks {
		if _, err := task.Join(); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	// 5 starts at 20/s with burst 1 need about 200ms.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected rate limiting to slow tasks, finished in %v", elapsed)
	}
}

func TestPool_TaskSeesLifetimeContext(t *testing.T) {
	type ctxKey struct{}
	parent := context.WithValue(context.Background(), ctxKey{}, "parent")

	p := mustNew(t, 1, WithContext(parent))
	defer p.Delete()

	task := NewFunc(func(ctx context.Context) (string, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	})
	_ = p.Push(task)

	if v, err := task.Join(); err != nil || v != "parent" {
		t.Errorf("got (%q, %v)", v, err)
	}
}

type recordingMetrics struct {
	mu        sync.Mutex
	durations int
	panics    int
	rejected  map[string]int
	workers   int
}

func (m *recordingMetrics) RecordTaskDuration(string, time.Duration) {
	m.mu.Lock()
	m.durations++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTaskPanic(string) {
	m.mu.Lock()
	m.panics++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTaskRejected(_ string, reason string) {
	m.mu.Lock()
	m.rejected[reason]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordQueueDepth(string, int) {}

func (m *recordingMetrics) RecordWorkers(_ string, n int) {
	m.mu.Lock()
	m.workers = n
	m.mu.Unlock()
}

func TestPool_Metrics(t *testing.T) {
	m := &recordingMetrics{rejected: map[string]int{}}
	p := mustNew(t, 2, WithMetrics(m), WithName("metered"))

	ok := NewTask(func(ctx context.Context, n int) (int, error) { return n, nil }, 1)
	bad := NewFunc(func(ctx context.Context) (int, error) { panic("x") })
	_ = p.Push(ok)
	_ = p.Push(bad)
	_, _ = ok.Join()
	_, _ = bad.Join()

	// Rejected as a double push once re-pushed and still pending.
	gate := make(chan struct{})
	started := make(chan TaskID, 1)
	pending := gatedTask(gate, started, 0)
	_ = p.Push(pending)
	<-started
	_ = p.Push(pending)
	close(gate)
	_, _ = pending.Join()

	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.durations != 3 {
		t.Errorf("expected 3 durations, got %d", m.durations)
	}
	if m.panics != 1 {
		t.Errorf("expected 1 panic, got %d", m.panics)
	}
	if m.rejected["invalid"] != 1 {
		t.Errorf("expected 1 invalid rejection, got %v", m.rejected)
	}
	if m.workers != 0 {
		t.Errorf("expected workers gauge reset to 0, got %d", m.workers)
	}
	if p.Name() != "metered" {
		t.Errorf("expected name metered, got %q", p.Name())
	}
}

func TestPool_OSThreads(t *testing.T) {
	p := mustNew(t, 2, WithCPUAffinity())

	tasks := make([]*Task[int], 4)
	for i := range tasks {
		tasks[i] = NewTask(func(ctx context.Context, n int) (int, error) { return n * n, nil }, i)
		_ = p.Push(tasks[i])
	}
	for i, task := range tasks {
		if v, err := task.Join(); err != nil || v != i*i {
			t.Errorf("task %d: got (%d, %v)", i, v, err)
		}
	}
	if err := p.Delete(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
