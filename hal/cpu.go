package hal

import "sync"

// maskCPU models a core's interrupt mask as a mutex.
//
// Interrupt handlers on both the host and the TinyGo port run as goroutines
// that take the mask before servicing, so a thread that disables interrupts
// holds off its own core's handlers without stopping the other core. The
// mask does not nest.
type maskCPU struct {
	id int
	mu sync.Mutex
}

func newMaskCPU(id int) *maskCPU {
	return &maskCPU{id: id}
}

func (c *maskCPU) ID() int { return c.id }

func (c *maskCPU) DisableInterrupts() InterruptState {
	c.mu.Lock()
	return 1
}

func (c *maskCPU) RestoreInterrupts(s InterruptState) {
	if s != 0 {
		c.mu.Unlock()
	}
}
