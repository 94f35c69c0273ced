package kernel

import (
	"context"
	"testing"
	"time"

	"alkyn/hal"
	"alkyn/internal/klog"
)

func newTestKernel(t *testing.T, cfg Config) (*Kernel, *hal.Sim) {
	t.Helper()
	sim := hal.NewSimulated(hal.SimConfig{})
	if cfg.MaxThreads == 0 {
		cfg.MaxThreads = 16
	}
	if cfg.SpinlockReserved == 0 {
		cfg.SpinlockReserved = 1
	}
	cfg.LogLevel = klog.LevelOff
	k, err := New(sim, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { k.halt(context.Canceled) })
	return k, sim
}

// boot marks the kernel started without running the core loops, so tests
// can drive the interrupt handlers by hand.
func boot(k *Kernel) {
	k.withState(k.cores[0].cpu, func(st *state) {
		st.inited = true
		st.tickEnabled = true
	})
}

// finishSwitch does the bookkeeping half of pendSV without handing the
// core to the thread.
func finishSwitch(k *Kernel, core int) ThreadID {
	var id ThreadID
	k.withState(k.cores[core].cpu, func(st *state) {
		cur := &st.cores[core]
		if prev := st.lookup(cur.current); prev != nil && cur.next != prev.id {
			prev.core = -1
		}
		cur.current = cur.next
		id = cur.current
	})
	k.cores[core].pending.Store(false)
	return id
}

func startKernel(t *testing.T, k *Kernel) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Start(ctx, 1000) }()
	eventually(t, "kernel started", func() bool {
		var on bool
		k.withState(k.cores[0].cpu, func(st *state) { on = st.inited })
		return on
	})
	var err error
	stopped := false
	stop = func() error {
		if !stopped {
			stopped = true
			cancel()
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("kernel did not stop")
			}
		}
		return err
	}
	t.Cleanup(func() { stop() })
	return stop
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func waitStatus(t *testing.T, k *Kernel, id ThreadID, want Status) {
	t.Helper()
	eventually(t, id.String()+" "+want.String(), func() bool {
		s, err := k.Status(id)
		return err == nil && s == want
	})
}

func stack() []uint32 { return make([]uint32, MinStackWords) }

func noop(*Context) {}

func mustCreate(t *testing.T, k *Kernel, name string, entry func(*Context), cfg ThreadConfig) ThreadID {
	t.Helper()
	id, err := k.CreateThreadWithConfig(name, stack(), entry, cfg)
	if err != nil {
		t.Fatalf("CreateThreadWithConfig(%q) error = %v", name, err)
	}
	return id
}
