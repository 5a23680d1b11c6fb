// Package algorithms holds the retry delay strategies used by pool workers.
package algorithms

import "time"

// BackoffStrategy decides how long a worker waits before re-running a failed
// task function. A strategy is created per task run and used by one goroutine.
type BackoffStrategy interface {
	// NextDelay returns the wait before retry attemptNumber (0 = first retry).
	// lastError is the error that triggered the retry.
	NextDelay(attemptNumber int, lastError error) time.Duration

	// Reset forgets any state carried between calls.
	Reset()
}
