package algorithms

import (
	"math/rand"
	"time"
)

// Shifts past this would overflow int64.
const maxShift = 62

// exponentialBackoff waits initialDelay * 2^attempt, capped at maxDelay.
type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newExponentialBackoff(initialDelay, maxDelay time.Duration) *exponentialBackoff {
	return &exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}
}

func (eb *exponentialBackoff) NextDelay(attemptNumber int, _ error) time.Duration {
	return exponentialDelay(attemptNumber, eb.initialDelay, eb.maxDelay)
}

func (eb *exponentialBackoff) Reset() {}

// jitteredBackoff spreads simultaneous retries by scaling the exponential
// delay with a random factor in [1-jitter, 1+jitter].
type jitteredBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	jitterFactor float64
	rng          *rand.Rand
}

func newJitteredBackoff(initialDelay, maxDelay time.Duration, jitterFactor float64) *jitteredBackoff {
	return &jitteredBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		jitterFactor: clamp(jitterFactor, 0, 1),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter needs no crypto rand
	}
}

func (jb *jitteredBackoff) NextDelay(attemptNumber int, _ error) time.Duration {
	if attemptNumber < 0 {
		return 0
	}

	base := exponentialDelay(attemptNumber, jb.initialDelay, jb.maxDelay)
	factor := 1 + (jb.rng.Float64()*2-1)*jb.jitterFactor
	return clamp(time.Duration(float64(base)*factor), 0, jb.maxDelay)
}

func (jb *jitteredBackoff) Reset() {}

// decorrelatedJitterBackoff draws each delay from [initialDelay, 3*previous),
// capped at maxDelay, so retries of different tasks drift apart.
type decorrelatedJitterBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	prevDelay    time.Duration
	rng          *rand.Rand
}

func newDecorrelatedJitterBackoff(initialDelay, maxDelay time.Duration) *decorrelatedJitterBackoff {
	return &decorrelatedJitterBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		prevDelay:    initialDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter needs no crypto rand
	}
}

func (db *decorrelatedJitterBackoff) NextDelay(attemptNumber int, _ error) time.Duration {
	if attemptNumber <= 0 {
		db.prevDelay = db.initialDelay
		return db.initialDelay
	}

	upper := min(3*db.prevDelay, db.maxDelay)
	span := upper - db.initialDelay
	if span <= 0 {
		db.prevDelay = db.initialDelay
		return db.initialDelay
	}

	db.prevDelay = db.initialDelay + time.Duration(db.rng.Int63n(int64(span)))
	return db.prevDelay
}

func (db *decorrelatedJitterBackoff) Reset() {
	db.prevDelay = db.initialDelay
}

func exponentialDelay(attemptNumber int, initialDelay, maxDelay time.Duration) time.Duration {
	if attemptNumber < 0 {
		return 0
	}
	if attemptNumber >= maxShift {
		return maxDelay
	}

	delay := initialDelay << uint(attemptNumber)
	if delay > maxDelay || delay < initialDelay {
		return maxDelay
	}
	return delay
}

func clamp[T int64 | float64 | time.Duration](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
