// Package cpu binds worker goroutines to OS threads and, where the platform
// allows it, pins those threads to CPU cores.
package cpu

import (
	"errors"
	"runtime"
)

// ErrPinUnsupported is returned by LockThread when pinning is not available.
var ErrPinUnsupported = errors.New("cpu pinning not supported on this platform")

// LockThread locks the calling goroutine to its OS thread and, if pin is set,
// pins the thread to core workerID mod NumCPU. The returned release func must
// be called from the same goroutine. A pinning error leaves the thread locked
// but unpinned, and release is valid either way.
func LockThread(workerID int, pin bool) (release func(), err error) {
	runtime.LockOSThread()
	release = runtime.UnlockOSThread

	if !pin {
		return release, nil
	}

	if _, err := pinToCore(coreFor(workerID)); err != nil {
		return release, err
	}
	return release, nil
}

// NumCPU returns the number of logical CPUs available.
func NumCPU() int {
	return runtime.NumCPU()
}

func coreFor(workerID int) int {
	n := runtime.NumCPU()
	if workerID < 0 {
		workerID = -workerID
	}
	return workerID % n
}
