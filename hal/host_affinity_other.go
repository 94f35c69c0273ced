//go:build !tinygo && !linux

package hal

func pinThread(core int) error {
	_ = core
	return ErrNotImplemented
}
