package algorithms

import "time"

// BackoffType selects the retry delay algorithm.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every retry (default).
	BackoffExponential BackoffType = iota
	// BackoffJittered scales each exponential delay by a random factor.
	BackoffJittered
	// BackoffDecorrelated picks each delay between the initial delay and three
	// times the previous one.
	BackoffDecorrelated
)

// String returns the flag-friendly name of the type.
func (b BackoffType) String() string {
	switch b {
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	default:
		return "exponential"
	}
}

// ParseBackoffType maps a name produced by String back to its type.
// Unknown names fall back to BackoffExponential and report false.
func ParseBackoffType(name string) (BackoffType, bool) {
	switch name {
	case "exponential", "":
		return BackoffExponential, true
	case "jittered":
		return BackoffJittered, true
	case "decorrelated":
		return BackoffDecorrelated, true
	default:
		return BackoffExponential, false
	}
}

// NewBackoffStrategy builds the strategy for backoffType. Delays never exceed
// maxDelay; jitterFactor only applies to BackoffJittered.
func NewBackoffStrategy(
	backoffType BackoffType,
	initialDelay, maxDelay time.Duration,
	jitterFactor float64,
) BackoffStrategy {
	switch backoffType {
	case BackoffJittered:
		return newJitteredBackoff(initialDelay, maxDelay, jitterFactor)

	case BackoffDecorrelated:
		return newDecorrelatedJitterBackoff(initialDelay, maxDelay)

	default:
		return newExponentialBackoff(initialDelay, maxDelay)
	}
}
