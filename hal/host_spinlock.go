//go:build !tinygo

package hal

import "sync/atomic"

// hostSpinlocks emulates the SIO spinlock bank with atomics.
type hostSpinlocks struct {
	locked []atomic.Bool
}

func newHostSpinlocks(n int) *hostSpinlocks {
	return &hostSpinlocks{locked: make([]atomic.Bool, n)}
}

func (s *hostSpinlocks) Count() int { return len(s.locked) }

func (s *hostSpinlocks) TryClaim(i int) bool {
	if i < 0 || i >= len(s.locked) {
		return false
	}
	return s.locked[i].CompareAndSwap(false, true)
}

func (s *hostSpinlocks) Release(i int) {
	if i < 0 || i >= len(s.locked) {
		return
	}
	s.locked[i].Store(false)
}
