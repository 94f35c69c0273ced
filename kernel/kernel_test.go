package kernel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"alkyn/hal"
)

func TestNewRejectsBadConfig(t *testing.T) {
	sim := newSimForConfig()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"too few threads", Config{MaxThreads: 2}},
		{"too many threads", Config{MaxThreads: 1 << 17}},
		{"negative reserve", Config{MaxThreads: 8, SpinlockReserved: -1}},
		{"reserve eats bank", Config{MaxThreads: 8, SpinlockReserved: 31}},
		{"bad order", Config{MaxThreads: 8, MailboxOrder: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(sim, tt.cfg)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("New() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestNewCreatesIdleThreads(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	snap := k.Snapshot()
	if len(snap.Threads) != 2 {
		t.Fatalf("len(Threads) = %d, want 2", len(snap.Threads))
	}
	for core, th := range snap.Threads {
		if !th.Idle || th.Priority != 0 || th.ID.Slot() != core || th.Core != core {
			t.Fatalf("thread %d = %+v, want idle thread in slot %d on core %d", core, th, core, core)
		}
		if snap.Cores[core].Current != th.ID {
			t.Fatalf("core %d current = %v, want %v", core, snap.Cores[core].Current, th.ID)
		}
	}
}

func TestCreateUpToCapacity(t *testing.T) {
	k, _ := newTestKernel(t, Config{MaxThreads: 8})
	for i := 0; i < 6; i++ {
		if _, err := k.CreateThread("", stack(), noop); err != nil {
			t.Fatalf("CreateThread() #%d error = %v", i+1, err)
		}
	}
	if _, err := k.CreateThread("", stack(), noop); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("CreateThread() past capacity error = %v, want ErrResourceExhausted", err)
	}
	// Stack size is checked before capacity.
	if _, err := k.CreateThread("", make([]uint32, MinStackWords-1), noop); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("CreateThread() short stack error = %v, want ErrInvalidConfiguration", err)
	}
	// Capacity is checked before privilege.
	boot(k)
	if _, err := k.CreateThread("", stack(), noop); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("CreateThread() after boot error = %v, want ErrResourceExhausted", err)
	}
}

func TestCreateAfterStartNeedsPrivilege(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	boot(k)
	if _, err := k.CreateThread("late", stack(), noop); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("CreateThread() error = %v, want ErrPermissionDenied", err)
	}
}

func TestStaleHandleAfterSlotReuse(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	old := mustCreate(t, k, "x", noop, DefaultThreadConfig())
	if err := k.KillThread(old); err != nil {
		t.Fatalf("KillThread() error = %v", err)
	}
	fresh := mustCreate(t, k, "y", noop, DefaultThreadConfig())
	if fresh.Slot() != old.Slot() || fresh == old {
		t.Fatalf("fresh = %v, old = %v, want same slot with new generation", fresh, old)
	}
	if _, err := k.Send(old, 1, Word(1)); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("Send(old) error = %v, want ErrStaleHandle", err)
	}
	if _, err := k.Status(old); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("Status(old) error = %v, want ErrStaleHandle", err)
	}
	if err := k.KillThread(old); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("KillThread(old) error = %v, want ErrStaleHandle", err)
	}
	if _, ok := k.NameOf(old); ok {
		t.Fatalf("NameOf(old) ok = true, want false")
	}
	if _, ok := k.Lookup("x"); ok {
		t.Fatalf("Lookup(x) ok = true after kill")
	}
	if id, ok := k.Lookup("y"); !ok || id != fresh {
		t.Fatalf("Lookup(y) = %v, %v, want %v", id, ok, fresh)
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	first := mustCreate(t, k, "svc", noop, DefaultThreadConfig())
	second := mustCreate(t, k, "svc", noop, DefaultThreadConfig())
	if id, _ := k.Lookup("svc"); id != second {
		t.Fatalf("Lookup(svc) = %v, want %v", id, second)
	}
	if _, ok := k.NameOf(first); ok {
		t.Fatalf("NameOf(first) ok = true, want false")
	}
}

func TestStartTwice(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	stop := startKernel(t, k)
	if err := k.Start(context.Background(), 1000); !errors.Is(err, ErrDoubleInitialization) {
		t.Fatalf("second Start() error = %v, want ErrDoubleInitialization", err)
	}
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() returned %v, want context.Canceled", err)
	}
}

func TestHigherPriorityRunsAndSleepsExactly(t *testing.T) {
	k, sim := newTestKernel(t, Config{})
	var before, after atomic.Uint64
	woke := make(chan struct{})
	a := mustCreate(t, k, "a", func(x *Context) {
		before.Store(x.Ticks())
		x.Sleep(3)
		after.Store(x.Ticks())
		close(woke)
		x.Receive()
	}, ThreadConfig{Priority: 5})
	b := mustCreate(t, k, "b", func(x *Context) {
		x.Receive()
	}, ThreadConfig{Priority: 1})
	startKernel(t, k)

	waitStatus(t, k, a, StatusSleeping)
	waitStatus(t, k, b, StatusMailPending)
	for i := 1; i <= 3; i++ {
		sim.Clock.Fire()
		eventually(t, "tick", func() bool { return k.Ticks() == uint64(i) })
		if i < 3 {
			if s, _ := k.Status(a); s != StatusSleeping {
				t.Fatalf("after %d ticks a is %v, want sleeping", i, s)
			}
		}
	}
	select {
	case <-woke:
	case <-time.After(5 * time.Second):
		t.Fatalf("a did not wake")
	}
	if got := after.Load() - before.Load(); got != 3 {
		t.Fatalf("slept %d ticks, want 3", got)
	}
}

func TestReceiveWaitsForSend(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	got := make(chan Envelope, 1)
	b := mustCreate(t, k, "b", func(x *Context) {
		got <- x.Receive()
	}, ThreadConfig{Priority: 2})
	a := mustCreate(t, k, "a", func(x *Context) {
		for {
			if s, _ := x.Status(b); s == StatusMailPending {
				break
			}
			x.Yield()
		}
		if _, err := x.Send(b, 7, Text("ping")); err != nil {
			t.Errorf("Send() error = %v", err)
		}
		x.Receive()
	}, ThreadConfig{Priority: 1})
	startKernel(t, k)

	var env Envelope
	select {
	case env = <-got:
	case <-time.After(5 * time.Second):
		t.Fatalf("receive did not complete")
	}
	if s, err := env.Text(); err != nil || s != "ping" {
		t.Fatalf("Text() = %q, %v, want ping", s, err)
	}
	if env.From != a || env.Tag != 7 {
		t.Fatalf("envelope = %+v, want from %v tag 7", env, a)
	}
}

func TestMessageDeliveredOnceToTargetOnly(t *testing.T) {
	k, sim := newTestKernel(t, Config{})
	type result struct {
		self          ThreadID
		first, second bool
		env           Envelope
	}
	res := make(chan result, 2)
	probe := func(x *Context) {
		for x.Ticks() == 0 {
			x.Yield()
		}
		r := result{self: x.Self()}
		r.env, r.first = x.CheckReceive()
		_, r.second = x.CheckReceive()
		res <- r
		x.Receive()
	}
	target := mustCreate(t, k, "target", probe, DefaultThreadConfig())
	mustCreate(t, k, "other", probe, DefaultThreadConfig())

	if _, err := k.Send(target, 1, Word(42)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	startKernel(t, k)
	sim.Clock.Fire()

	for i := 0; i < 2; i++ {
		var r result
		select {
		case r = <-res:
		case <-time.After(5 * time.Second):
			t.Fatalf("probe %d did not report", i)
		}
		if r.second {
			t.Fatalf("%v received the message twice", r.self)
		}
		if r.self != target {
			if r.first {
				t.Fatalf("non-target %v saw %+v", r.self, r.env)
			}
			continue
		}
		if !r.first {
			t.Fatalf("target saw no message")
		}
		if w, err := r.env.Word(); err != nil || w != 42 || r.env.From.Valid() {
			t.Fatalf("envelope = %+v (%v), want word 42 from outside", r.env, err)
		}
	}
}

func TestThreadPanicKillsOnlyThatThread(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	bad := mustCreate(t, k, "bad", func(x *Context) {
		panic("boom")
	}, DefaultThreadConfig())
	good := mustCreate(t, k, "good", func(x *Context) { x.Receive() }, DefaultThreadConfig())
	startKernel(t, k)

	eventually(t, "bad removed", func() bool {
		_, err := k.Status(bad)
		return errors.Is(err, ErrStaleHandle)
	})
	waitStatus(t, k, good, StatusMailPending)
	if k.Err() != nil {
		t.Fatalf("Err() = %v, want nil", k.Err())
	}
}

func TestExitAndReturnRemoveThread(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	ret := mustCreate(t, k, "ret", noop, DefaultThreadConfig())
	exit := mustCreate(t, k, "exit", func(x *Context) {
		x.Exit()
		t.Errorf("Exit() returned")
	}, DefaultThreadConfig())
	startKernel(t, k)
	for _, id := range []ThreadID{ret, exit} {
		id := id
		eventually(t, id.String()+" removed", func() bool {
			_, err := k.Status(id)
			return errors.Is(err, ErrStaleHandle)
		})
	}
}

func TestKillRunningThread(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	var spins atomic.Uint64
	spinner := mustCreate(t, k, "spinner", func(x *Context) {
		for {
			spins.Add(1)
			x.Yield()
		}
	}, ThreadConfig{Priority: 9, Affinity: AffinityCore0})
	waiter := mustCreate(t, k, "waiter", func(x *Context) { x.Receive() }, ThreadConfig{Priority: 1, Affinity: AffinityCore0})
	startKernel(t, k)

	eventually(t, "spinner running", func() bool { return spins.Load() > 10 })
	if err := k.KillThread(spinner); err != nil {
		t.Fatalf("KillThread() error = %v", err)
	}
	waitStatus(t, k, waiter, StatusMailPending)
	n := spins.Load()
	time.Sleep(10 * time.Millisecond)
	if got := spins.Load(); got > n+1 {
		t.Fatalf("killed thread kept running: %d -> %d", n, got)
	}
}

func TestSpawnPrivilege(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	type outcome struct {
		id  ThreadID
		err error
	}
	plain := make(chan outcome, 1)
	priv := make(chan outcome, 1)
	ran := make(chan ThreadID, 1)
	child := func(x *Context) { ran <- x.Self() }
	mustCreate(t, k, "plain", func(x *Context) {
		id, err := x.Spawn("c1", stack(), child)
		plain <- outcome{id, err}
		x.Receive()
	}, DefaultThreadConfig())
	mustCreate(t, k, "priv", func(x *Context) {
		id, err := x.Spawn("c2", stack(), child)
		priv <- outcome{id, err}
		x.Receive()
	}, ThreadConfig{Priority: 1, Privileged: true})
	startKernel(t, k)

	if o := <-plain; !errors.Is(o.err, ErrPermissionDenied) {
		t.Fatalf("unprivileged Spawn() error = %v, want ErrPermissionDenied", o.err)
	}
	o := <-priv
	if o.err != nil {
		t.Fatalf("privileged Spawn() error = %v", o.err)
	}
	select {
	case id := <-ran:
		if id != o.id {
			t.Fatalf("child ran as %v, want %v", id, o.id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("spawned thread did not run")
	}
}

func TestSendWakesHigherPriorityOnOtherCore(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	got := make(chan uint32, 1)
	hi := mustCreate(t, k, "hi", func(x *Context) {
		e := x.Receive()
		w, _ := e.Word()
		got <- w
		x.Receive()
	}, ThreadConfig{Priority: 7, Affinity: AffinityCore1})
	mustCreate(t, k, "lo", func(x *Context) {
		for {
			if s, _ := x.Status(hi); s == StatusMailPending {
				break
			}
			x.Yield()
		}
		x.Send(hi, 0, Word(99))
		x.Receive()
	}, ThreadConfig{Priority: 1, Affinity: AffinityCore0})
	startKernel(t, k)

	select {
	case w := <-got:
		if w != 99 {
			t.Fatalf("got %d, want 99", w)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("woken thread did not run without a tick")
	}
}

func TestFatalWhenIdleIsGone(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	stop := startKernel(t, k)
	var idle1 ThreadID
	k.withState(k.cores[0].cpu, func(st *state) { idle1 = st.idle[1] })
	if err := k.KillThread(idle1); err != nil {
		t.Fatalf("KillThread(idle1) error = %v", err)
	}
	select {
	case <-k.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("kernel did not halt")
	}
	if err := stop(); !errors.Is(err, ErrHalted) {
		t.Fatalf("Start() = %v, want ErrHalted", err)
	}
}

func newSimForConfig() *hal.Sim {
	return hal.NewSimulated(hal.SimConfig{})
}
