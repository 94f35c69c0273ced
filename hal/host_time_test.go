//go:build !tinygo

package hal

import (
	"errors"
	"testing"
	"time"
)

func TestManualTimerFireAdvancesOnePeriod(t *testing.T) {
	tm := NewManualTimer()
	if err := tm.Start(250); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := make(chan struct{})
	go func() {
		tm.Fire()
		close(done)
	}()
	select {
	case <-tm.Interrupts():
	case <-time.After(time.Second):
		t.Fatal("no interrupt")
	}
	<-done
	if got := tm.Counter(); got != 250 {
		t.Fatalf("Counter = %d, want 250", got)
	}
}

func TestManualTimerWraps(t *testing.T) {
	tm := NewManualTimer()
	tm.Set(0xFFFF_FFF0)
	tm.Advance(0x20)
	if got := tm.Counter(); got != 0x10 {
		t.Fatalf("Counter = %#x, want 0x10", got)
	}
}

func TestTimerStartTwice(t *testing.T) {
	for name, tm := range map[string]Timer{"manual": NewManualTimer(), "wall": newWallTimer()} {
		if err := tm.Start(1000); err != nil {
			t.Fatalf("%s: first Start: %v", name, err)
		}
		if err := tm.Start(1000); !errors.Is(err, ErrTimerRunning) {
			t.Fatalf("%s: second Start = %v, want ErrTimerRunning", name, err)
		}
	}
}
