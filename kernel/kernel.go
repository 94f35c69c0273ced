// Package kernel is a preemptive dual-core kernel: a fixed thread table, a
// priority scheduler per core, a periodic tick and per-thread mailboxes.
//
// Threads are created before Start from boot code, or afterwards by
// privileged threads. Everything a thread does goes through its *Context.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"alkyn/hal"
	"alkyn/internal/klog"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxThreads = 256
	// maxSlots is bounded by the slot field of ThreadID.
	maxSlots       = 1 << 16
	idleStackWords = 64
)

// Config holds the kernel limits.
type Config struct {
	// MaxThreads is the thread table size, idle threads included.
	// Zero selects DefaultMaxThreads.
	MaxThreads int
	// SpinlockReserved is the number of hardware spinlocks left to the
	// platform.
	SpinlockReserved int
	MailboxOrder     MailboxOrder
	LogLevel         klog.Level
	// Logger overrides the HAL logger when set.
	Logger hal.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxThreads:       DefaultMaxThreads,
		SpinlockReserved: 1,
		MailboxOrder:     MailboxLIFO,
		LogLevel:         klog.LevelInfo,
	}
}

func (c *Config) validate() error {
	if c.MaxThreads == 0 {
		c.MaxThreads = DefaultMaxThreads
	}
	switch {
	case c.MaxThreads < hal.NumCores+1 || c.MaxThreads > maxSlots:
		return opError("new", ErrInvalidConfiguration, fmt.Sprintf("max threads %d", c.MaxThreads))
	case c.SpinlockReserved < 0:
		return opError("new", ErrInvalidConfiguration, fmt.Sprintf("reserved spinlocks %d", c.SpinlockReserved))
	case c.MailboxOrder > MailboxFIFO:
		return opError("new", ErrInvalidConfiguration, "mailbox order")
	}
	return nil
}

type coreState struct {
	id      int
	cpu     hal.CPU
	trap    chan *thread
	event   chan struct{}
	pending atomic.Bool

	// running is only touched by the core loop.
	running *thread
}

// pendSwitch requests a context switch on the core.
func (c *coreState) pendSwitch() {
	c.pending.Store(true)
	select {
	case c.event <- struct{}{}:
	default:
	}
}

type Kernel struct {
	cfg   Config
	h     hal.HAL
	log   *klog.Logger
	pool  *LockPool
	lock  *Spinlock
	timer hal.Timer
	bell  hal.Doorbell
	sw    switcher
	cores [hal.NumCores]*coreState

	st state

	ticks atomic.Uint64
	stamp atomic.Uint64

	halted   chan struct{}
	haltOnce sync.Once
	haltErr  error
}

// New resets the spinlock bank, takes the kernel lock and creates one idle
// thread per core.
func New(h hal.HAL, cfg Config) (*Kernel, error) {
	if h == nil {
		return nil, opError("new", ErrInvalidConfiguration, "no HAL")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool, err := NewLockPool(h.Spinlocks(), cfg.SpinlockReserved)
	if err != nil {
		return nil, err
	}
	pool.Reset()

	k := &Kernel{
		cfg:    cfg,
		h:      h,
		pool:   pool,
		timer:  h.Timer(),
		bell:   h.Doorbell(),
		st:     newState(cfg.MaxThreads),
		halted: make(chan struct{}),
	}
	if k.timer == nil || k.bell == nil {
		return nil, opError("new", ErrInvalidConfiguration, "HAL has no timer or doorbell")
	}
	k.sw = &goroutineSwitcher{k: k}
	for i := range k.cores {
		cpu := h.CPU(i)
		if cpu == nil {
			return nil, opError("new", ErrInvalidConfiguration, fmt.Sprintf("no cpu %d", i))
		}
		k.cores[i] = &coreState{
			id:    i,
			cpu:   cpu,
			trap:  make(chan *thread),
			event: make(chan struct{}, 1),
		}
	}
	out := cfg.Logger
	if out == nil {
		out = h.Logger()
	}
	k.log = klog.New(out, cfg.LogLevel, k.stamp.Load)

	if k.lock, err = pool.Acquire(k.cores[0].cpu); err != nil {
		return nil, err
	}
	k.st.prevCnt = k.timer.Counter()

	for core := range k.cores {
		cfg := ThreadConfig{Priority: 0, Affinity: AffinityCore0 + Affinity(core)}
		id, err := k.createThread(nil, k.cores[0].cpu, fmt.Sprintf("idle%d", core),
			make([]uint32, idleStackWords), idleLoop, cfg, true)
		if err != nil {
			err = opError("new", ErrHalted, "idle thread: "+err.Error())
			k.fatal(0, err)
			return nil, err
		}
		k.withState(k.cores[0].cpu, func(st *state) {
			st.idle[core] = id
			st.cores[core] = cursor{current: id, next: id, selected: id}
			st.lookup(id).core = int8(core)
		})
	}
	k.log.Debugf(0, "kernel: %d slots, %d locks, %s mailboxes",
		cfg.MaxThreads, pool.Size(), cfg.MailboxOrder)
	return k, nil
}

func idleLoop(x *Context) {
	for {
		x.WaitForEvent()
	}
}

// withState runs f inside the kernel critical section on cpu.
func (k *Kernel) withState(cpu hal.CPU, f func(st *state)) {
	k.lock.CriticalSection(cpu, func(Token) {
		f(&k.st)
	})
}

// Start enables the tick with the given timer period and runs both cores
// until ctx is done or the kernel halts. Starting twice fails with
// ErrDoubleInitialization.
func (k *Kernel) Start(ctx context.Context, period uint32) error {
	c0 := k.cores[0]
	var err error
	k.withState(c0.cpu, func(st *state) {
		if st.tickEnabled {
			err = opError("start", ErrDoubleInitialization, "tick already enabled")
			return
		}
		st.tickEnabled = true
		st.inited = true
	})
	if err != nil {
		return err
	}
	if err := k.timer.Start(period); err != nil {
		if errors.Is(err, hal.ErrTimerRunning) {
			return opError("start", ErrDoubleInitialization, err.Error())
		}
		return fmt.Errorf("kernel: start timer: %w", err)
	}
	k.log.Infof(0, "tick: enabled, period %d", period)

	for _, c := range k.cores {
		var pend bool
		k.withState(c0.cpu, func(st *state) {
			pend, err = k.scheduleLocked(st, c.id)
		})
		if err != nil {
			k.fatal(c.id, err)
			return k.haltErr
		}
		if pend {
			c.pendSwitch()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range k.cores {
		c := c
		g.Go(func() error {
			return k.coreLoop(gctx, c)
		})
	}
	k.halt(g.Wait())
	return k.haltErr
}

// fatal reports err through the panic handler and stops both cores.
func (k *Kernel) fatal(core int, err error) {
	k.log.Errorf(core, "fatal: %v", err)
	triggerPanic(PanicInfo{Value: err})
	k.halt(err)
}

func (k *Kernel) halt(err error) {
	k.haltOnce.Do(func() {
		if err == nil {
			err = ErrHalted
		}
		k.haltErr = err
		close(k.halted)
	})
}

// Done is closed once the cores have stopped.
func (k *Kernel) Done() <-chan struct{} { return k.halted }

// Err returns why the kernel stopped, or nil while it runs.
func (k *Kernel) Err() error {
	select {
	case <-k.halted:
		return k.haltErr
	default:
		return nil
	}
}

func (k *Kernel) Config() Config       { return k.cfg }
func (k *Kernel) Logger() *klog.Logger { return k.log }
func (k *Kernel) Ticks() uint64        { return k.ticks.Load() }

// Counter is the accumulated timer count at the last tick.
func (k *Kernel) Counter() uint64 { return k.stamp.Load() }

// CreateThread creates a thread with DefaultThreadConfig.
func (k *Kernel) CreateThread(name string, stack []uint32, entry func(*Context)) (ThreadID, error) {
	return k.CreateThreadWithConfig(name, stack, entry, DefaultThreadConfig())
}

// CreateThreadWithConfig creates a thread from boot code. Once the kernel
// has started, only privileged threads may create threads, so this fails
// with ErrPermissionDenied.
func (k *Kernel) CreateThreadWithConfig(name string, stack []uint32, entry func(*Context), cfg ThreadConfig) (ThreadID, error) {
	return k.createThread(nil, k.cores[0].cpu, name, stack, entry, cfg, false)
}

// KillThread removes a thread from outside the kernel.
func (k *Kernel) KillThread(id ThreadID) error {
	return k.kill(k.cores[0].cpu, id)
}

// Send delivers a message from outside any kernel thread. The envelope's
// From is zero.
func (k *Kernel) Send(target ThreadID, tag Tag, p Payload) (ThreadID, error) {
	var woke bool
	var err error
	k.withState(k.cores[0].cpu, func(st *state) {
		woke, err = k.deliver(st, 0, target, tag, p)
	})
	if err != nil {
		return 0, err
	}
	if woke {
		for _, c := range k.cores {
			k.bell.Ring(c.id)
		}
	}
	return target, nil
}

// deliver appends to target's mailbox and wakes it if it waits for mail.
func (k *Kernel) deliver(st *state, from, target ThreadID, tag Tag, p Payload) (bool, error) {
	t := st.lookup(target)
	if t == nil {
		return false, opError("send", ErrStaleHandle, target.String())
	}
	t.mail.push(Envelope{From: from, Tag: tag, Payload: p})
	if t.status == StatusMailPending {
		t.status = StatusReady
		return true, nil
	}
	return false, nil
}

// Status returns the status of a live thread.
func (k *Kernel) Status(id ThreadID) (Status, error) {
	return k.status(k.cores[0].cpu, id)
}

func (k *Kernel) status(cpu hal.CPU, id ThreadID) (Status, error) {
	var s Status
	var err error
	k.withState(cpu, func(st *state) {
		t := st.lookup(id)
		if t == nil {
			err = opError("status", ErrStaleHandle, id.String())
			return
		}
		s = t.status
	})
	return s, err
}

func (k *Kernel) Lookup(name string) (ThreadID, bool) {
	return k.lookupName(k.cores[0].cpu, name)
}

func (k *Kernel) NameOf(id ThreadID) (string, bool) {
	return k.nameOf(k.cores[0].cpu, id)
}

func (k *Kernel) Snapshot() Snapshot {
	return k.snapshot(k.cores[0].cpu)
}

func (k *Kernel) createThread(caller *thread, cpu hal.CPU, name string, stack []uint32,
	entry func(*Context), cfg ThreadConfig, idle bool) (ThreadID, error) {
	switch {
	case len(stack) < MinStackWords:
		return 0, opError("create thread", ErrInvalidConfiguration,
			fmt.Sprintf("stack of %d words, need %d", len(stack), MinStackWords))
	case entry == nil:
		return 0, opError("create thread", ErrInvalidConfiguration, "nil entry")
	case !cfg.Affinity.valid():
		return 0, opError("create thread", ErrInvalidConfiguration, cfg.Affinity.String())
	}

	t := &thread{
		name:       name,
		stack:      stack,
		privileged: cfg.Privileged,
		priority:   cfg.Priority,
		status:     StatusReady,
		core:       -1,
		affinity:   cfg.Affinity,
		idle:       idle,
		entry:      entry,
		onCore:     -1,
	}
	pc := entryPC(entry)
	// The context must exist before another core can select t.
	k.sw.Init(t)

	var err error
	k.withState(cpu, func(st *state) {
		if st.full() {
			err = opError("create thread", ErrResourceExhausted, fmt.Sprintf("%d slots in use", st.live))
			return
		}
		if st.inited && (caller == nil || !caller.privileged) {
			err = opError("create thread", ErrPermissionDenied, "unprivileged caller")
			return
		}
		t.sp = initFrame(stack, pc)
		st.seq++
		t.seq = st.seq
		st.insert(t)
		if name != "" {
			st.names[name] = t.id
		}
	})
	if err != nil {
		k.sw.Discard(t)
		return 0, err
	}
	k.log.Debugf(cpu.ID(), "thr: created %s (%s) prio %d %s", t.label(), t.id, t.priority, t.affinity)
	return t.id, nil
}

func (k *Kernel) kill(cpu hal.CPU, id ThreadID) error {
	var t *thread
	k.withState(cpu, func(st *state) {
		if t = st.lookup(id); t != nil {
			st.remove(t)
		}
	})
	if t == nil {
		return opError("kill", ErrStaleHandle, id.String())
	}
	k.sw.Discard(t)
	k.log.Debugf(cpu.ID(), "thr: killed %s (%s)", t.label(), id)
	return nil
}

func (t *thread) label() string {
	if t.name != "" {
		return t.name
	}
	return "thread" + t.id.String()
}
