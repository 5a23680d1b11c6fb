//go:build !linux && !windows

package cpu

// pinToCore is unavailable here (macOS has no thread affinity API).
func pinToCore(int) (uintptr, error) {
	return 0, ErrPinUnsupported
}
