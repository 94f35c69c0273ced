//go:build !tinygo

package hal

import (
	"sync"
	"sync/atomic"
	"time"
)

// wallTimer counts microseconds since creation.
type wallTimer struct {
	start   time.Time
	irq     chan struct{}
	running atomic.Bool
}

func newWallTimer() *wallTimer {
	return &wallTimer{start: time.Now(), irq: make(chan struct{}, 1)}
}

func (t *wallTimer) Counter() uint32 {
	return uint32(time.Since(t.start) / time.Microsecond)
}

func (t *wallTimer) Interrupts() <-chan struct{} { return t.irq }

func (t *wallTimer) Start(period uint32) error {
	if period == 0 {
		period = 1000
	}
	if !t.running.CompareAndSwap(false, true) {
		return ErrTimerRunning
	}
	go func() {
		tk := time.NewTicker(time.Duration(period) * time.Microsecond)
		defer tk.Stop()
		for range tk.C {
			select {
			case t.irq <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

// ManualTimer is a timer that only moves when Advance or Fire is called.
type ManualTimer struct {
	mu      sync.Mutex
	count   uint32
	period  uint32
	running bool
	irq     chan struct{}
}

// NewManualTimer returns a stopped manual timer at count zero.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{irq: make(chan struct{})}
}

func (t *ManualTimer) Counter() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *ManualTimer) Interrupts() <-chan struct{} { return t.irq }

func (t *ManualTimer) Start(period uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTimerRunning
	}
	t.running = true
	t.period = period
	return nil
}

// Advance moves the counter forward by n counts, wrapping at 2^32.
func (t *ManualTimer) Advance(n uint32) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// Set moves the counter to an absolute value.
func (t *ManualTimer) Set(v uint32) {
	t.mu.Lock()
	t.count = v
	t.mu.Unlock()
}

// Fire advances the counter by one period and raises the interrupt. It
// blocks until the owning core accepts it.
func (t *ManualTimer) Fire() {
	t.mu.Lock()
	t.count += t.period
	t.mu.Unlock()
	t.irq <- struct{}{}
}
