//go:build !tinygo && linux

package hal

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

func pinThread(core int) error {
	if core >= runtime.NumCPU() {
		return fmt.Errorf("pin core %d: host has %d cpus", core, runtime.NumCPU())
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("pin core %d: %w", core, err)
	}
	return nil
}
