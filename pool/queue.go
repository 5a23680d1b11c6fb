package pool

const (
	// Initial ring capacity; the ring doubles on demand up to the queue limit.
	defaultInitialCapacity = 16
)

// taskQueue is a bounded FIFO ring buffer of pending tasks.
// It is not synchronised; the owning pool guards it with its mutex.
type taskQueue struct {
	ring []*taskCore
	// Capacity mask (len(ring) - 1) for fast modulo
	mask  int
	head  int
	size  int
	limit int
}

// newTaskQueue creates a queue that holds at most limit tasks.
func newTaskQueue(limit int) *taskQueue {
	capacity := nextPowerOfTwo(min(limit, defaultInitialCapacity))
	return &taskQueue{
		ring:  make([]*taskCore, capacity),
		mask:  capacity - 1,
		limit: limit,
	}
}

// push appends t at the tail.
// Returns ErrQueueFull at the limit, leaving the contents unchanged.
func (q *taskQueue) push(t *taskCore) error {
	if q.size >= q.limit {
		return ErrQueueFull
	}
	if q.size == len(q.ring) {
		q.grow()
	}

	q.ring[(q.head+q.size)&q.mask] = t
	q.size++
	return nil
}

// pop removes and returns the head, or (nil, false) when empty.
func (q *taskQueue) pop() (*taskCore, bool) {
	if q.size == 0 {
		return nil, false
	}

	t := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) & q.mask
	q.size--
	return t, true
}

func (q *taskQueue) len() int { return q.size }

func (q *taskQueue) full() bool { return q.size >= q.limit }

// grow doubles the ring and unwraps the contents so head lands at zero.
func (q *taskQueue) grow() {
	next := make([]*taskCore, len(q.ring)*2)
	for i := range q.size {
		next[i] = q.ring[(q.head+i)&q.mask]
	}
	q.ring = next
	q.mask = len(next) - 1
	q.head = 0
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
