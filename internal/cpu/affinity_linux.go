//go:build linux

package cpu

import "golang.org/x/sys/unix"

// pinToCore restricts the current OS thread to cpuID.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (uintptr, error) {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return 0, err
	}
	return uintptr(cpuID), nil
}
