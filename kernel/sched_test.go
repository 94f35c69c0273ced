package kernel

import "testing"

// blocked never runs in these tests: the core loops are not started.
func blocked(*Context) { select {} }

func TestSelectHighestPriority(t *testing.T) {
	tests := []struct {
		name  string
		prios []uint8
		want  int
	}{
		{"single", []uint8{3}, 0},
		{"higher later", []uint8{1, 5}, 1},
		{"higher first", []uint8{7, 2, 6}, 0},
		{"tie goes to earliest", []uint8{4, 4, 4}, 0},
		{"tie after lower", []uint8{1, 4, 4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, _ := newTestKernel(t, Config{})
			var ids []ThreadID
			for i, p := range tt.prios {
				ids = append(ids, mustCreate(t, k, string(rune('a'+i)), blocked, ThreadConfig{Priority: p}))
			}
			var got ThreadID
			k.withState(k.cores[0].cpu, func(st *state) {
				th, _ := st.selectFor(0)
				got = th.id
			})
			if got != ids[tt.want] {
				t.Fatalf("selectFor(0) = %v, want %v", got, ids[tt.want])
			}
		})
	}
}

func TestSelectRespectsAffinityAndOwnership(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	hi := mustCreate(t, k, "hi", blocked, ThreadConfig{Priority: 9, Affinity: AffinityCore1})
	lo := mustCreate(t, k, "lo", blocked, ThreadConfig{Priority: 2})
	boot(k)

	k.withState(k.cores[0].cpu, func(st *state) {
		if th, _ := st.selectFor(0); th.id != lo {
			t.Fatalf("selectFor(0) = %v, want %v", th.id, lo)
		}
		if th, _ := st.selectFor(1); th.id != hi {
			t.Fatalf("selectFor(1) = %v, want %v", th.id, hi)
		}
		// Core 0 reserves lo; core 1 must not pick it as well.
		st.lookup(lo).core = 0
		st.lookup(hi).status = StatusSleeping
		if th, _ := st.selectFor(1); th.id != st.idle[1] {
			t.Fatalf("selectFor(1) = %v, want idle %v", th.id, st.idle[1])
		}
	})
}

func TestScheduleIsGatedWhileSwitchInFlight(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	a := mustCreate(t, k, "a", blocked, ThreadConfig{Priority: 3})
	boot(k)

	var pend bool
	k.withState(k.cores[0].cpu, func(st *state) { pend, _ = k.scheduleLocked(st, 0) })
	if !pend {
		t.Fatalf("scheduleLocked() pend = false, want true")
	}
	b := mustCreateLate(t, k, "b", 8)
	k.withState(k.cores[0].cpu, func(st *state) {
		pend, _ = k.scheduleLocked(st, 0)
		if st.cores[0].next != a {
			t.Fatalf("next = %v, want %v (in-flight switch kept)", st.cores[0].next, a)
		}
	})
	if got := finishSwitch(k, 0); got != a {
		t.Fatalf("switched to %v, want %v", got, a)
	}
	k.withState(k.cores[0].cpu, func(st *state) {
		k.scheduleLocked(st, 0)
		if st.cores[0].next != b {
			t.Fatalf("next = %v, want %v", st.cores[0].next, b)
		}
	})
}

// mustCreateLate inserts a thread after boot, bypassing the privilege check.
func mustCreateLate(t *testing.T, k *Kernel, name string, prio uint8) ThreadID {
	t.Helper()
	caller := &thread{privileged: true}
	id, err := k.createThread(caller, k.cores[0].cpu, name, stack(), blocked, ThreadConfig{Priority: prio}, false)
	if err != nil {
		t.Fatalf("createThread(%q) error = %v", name, err)
	}
	return id
}

func TestSleepCountsTickPasses(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	a := mustCreate(t, k, "a", blocked, ThreadConfig{Priority: 5})
	b := mustCreate(t, k, "b", blocked, ThreadConfig{Priority: 1})
	boot(k)

	k.tickISR(k.cores[0])
	if got := finishSwitch(k, 0); got != a {
		t.Fatalf("after first tick core 0 runs %v, want %v", got, a)
	}

	k.withState(k.cores[0].cpu, func(st *state) {
		th := st.lookup(a)
		th.status = StatusSleeping
		th.sleepTicks = 3
		k.scheduleLocked(st, 0)
	})
	if got := finishSwitch(k, 0); got != b {
		t.Fatalf("while a sleeps core 0 runs %v, want %v", got, b)
	}

	for pass := 1; pass <= 3; pass++ {
		k.tickISR(k.cores[0])
		st, err := k.Status(a)
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if pass < 3 {
			if st != StatusSleeping {
				t.Fatalf("after %d passes status = %v, want sleeping", pass, st)
			}
			var next ThreadID
			k.withState(k.cores[0].cpu, func(st *state) { next = st.cores[0].next })
			if next == a {
				t.Fatalf("sleeping thread selected after %d passes", pass)
			}
			continue
		}
		if st != StatusReady {
			t.Fatalf("after %d passes status = %v, want ready", pass, st)
		}
	}
	if got := finishSwitch(k, 0); got != a {
		t.Fatalf("after waking core 0 runs %v, want %v", got, a)
	}
	if got := k.Ticks(); got != 4 {
		t.Fatalf("Ticks() = %d, want 4", got)
	}
}

func TestTickAccumulatesCounterAcrossWrap(t *testing.T) {
	k, sim := newTestKernel(t, Config{})
	boot(k)

	sim.Clock.Set(0xFFFFFF00)
	k.withState(k.cores[0].cpu, func(st *state) { st.prevCnt = 0xFFFFFF00 })
	sim.Clock.Advance(0x200)
	k.tickISR(k.cores[0])
	if got := k.Counter(); got != 0x200 {
		t.Fatalf("Counter() = %#x, want 0x200", got)
	}
}

func TestTickBeforeStartIsIgnored(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	k.tickISR(k.cores[0])
	if got := k.Ticks(); got != 0 {
		t.Fatalf("Ticks() = %d, want 0", got)
	}
}

func TestKilledThreadIsNeverSelected(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	victim := mustCreate(t, k, "victim", blocked, ThreadConfig{Priority: 9})
	boot(k)
	if err := k.KillThread(victim); err != nil {
		t.Fatalf("KillThread() error = %v", err)
	}
	for i := 0; i < 4; i++ {
		mustCreateLate(t, k, "later", 1)
	}
	for i := 0; i < 3; i++ {
		k.tickISR(k.cores[0])
		k.doorbellISR(k.cores[1])
		for core := 0; core < 2; core++ {
			if got := finishSwitch(k, core); got == victim {
				t.Fatalf("core %d selected killed thread %v", core, victim)
			}
		}
	}
}

func TestDoorbellSchedulesCore1(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	a := mustCreate(t, k, "a", blocked, ThreadConfig{Priority: 2, Affinity: AffinityCore1})
	boot(k)

	k.tickISR(k.cores[0])
	if got := finishSwitch(k, 0); got == a {
		t.Fatalf("core 0 picked a thread pinned to core 1")
	}
	select {
	case <-k.bell.Rings(1):
	default:
		t.Fatalf("tick did not ring core 1")
	}
	k.doorbellISR(k.cores[1])
	if !k.cores[1].pending.Load() {
		t.Fatalf("core 1 has no switch pending")
	}
	if got := finishSwitch(k, 1); got != a {
		t.Fatalf("core 1 runs %v, want %v", got, a)
	}
}
