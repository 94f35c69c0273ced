package hal

import (
	"testing"
	"time"
)

func TestMaskCPUExcludesHandlers(t *testing.T) {
	cpu := newMaskCPU(0)

	s := cpu.DisableInterrupts()
	serviced := make(chan struct{})
	go func() {
		st := cpu.DisableInterrupts()
		close(serviced)
		cpu.RestoreInterrupts(st)
	}()

	select {
	case <-serviced:
		t.Fatal("handler ran while interrupts were masked")
	case <-time.After(20 * time.Millisecond):
	}

	cpu.RestoreInterrupts(s)
	select {
	case <-serviced:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handler did not run after interrupts were restored")
	}
}

func TestDoorbellCoalescesRings(t *testing.T) {
	d := newChanDoorbell()
	d.Ring(1)
	d.Ring(1)

	select {
	case <-d.Rings(1):
	default:
		t.Fatal("Rings(1) empty after Ring(1)")
	}
	select {
	case <-d.Rings(1):
		t.Fatal("second ring was not coalesced")
	default:
	}
	select {
	case <-d.Rings(0):
		t.Fatal("Ring(1) reached core 0")
	default:
	}

	d.Ring(5)
	if d.Rings(5) != nil {
		t.Fatal("Rings(5) != nil for a missing core")
	}
}
