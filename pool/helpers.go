package pool

import (
	"math"
	"time"
)

// Seconds converts a timeout in fractional seconds to a Duration.
// Whole seconds and nanoseconds are converted separately, a nanosecond part
// that rounds up to a full second is carried over, and values too large for a
// Duration saturate. Non-positive and NaN inputs give 0.
//
// Example:
//
//	pool.Seconds(1.5)  // 1.5s
//	pool.Seconds(0.25) // 250ms
func Seconds(s float64) time.Duration {
	if !(s > 0) {
		return 0
	}

	sec := math.Floor(s)
	nsec := math.Round((s - sec) * 1e9)
	if nsec >= 1e9 {
		sec++
		nsec -= 1e9
	}

	if sec >= float64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(sec)*time.Second + time.Duration(nsec)
}
