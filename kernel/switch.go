package kernel

import (
	"context"
	"errors"

	"alkyn/hal"
)

// switcher moves a core between thread execution contexts.
type switcher interface {
	// Init prepares a new thread's context.
	Init(t *thread)
	// Save returns the stack pointer to record for an outgoing thread.
	Save(t *thread) int
	// Load restores irq on cpu and resumes t in one step.
	Load(t *thread, sp int, cpu hal.CPU, irq hal.InterruptState)
	// Discard releases a dead thread's context.
	Discard(t *thread)
}

// goroutineSwitcher runs each thread on its own goroutine. A thread runs
// only while it holds its baton, and gives the core back by trapping.
type goroutineSwitcher struct {
	k *Kernel
}

func (s *goroutineSwitcher) Init(t *thread) {
	t.gctx.baton = make(chan struct{}, 1)
	t.gctx.dead = make(chan struct{})
	go s.k.runThread(t)
}

// Save keeps the frame pointer written at creation; the goroutine stack
// holds the live registers.
func (s *goroutineSwitcher) Save(t *thread) int { return t.sp }

// Load ignores sp: the goroutine already holds the thread's registers.
func (s *goroutineSwitcher) Load(t *thread, sp int, cpu hal.CPU, irq hal.InterruptState) {
	cpu.RestoreInterrupts(irq)
	t.gctx.baton <- struct{}{}
}

func (s *goroutineSwitcher) Discard(t *thread) {
	t.gctx.killOnce.Do(func() {
		close(t.gctx.dead)
	})
}

// park blocks until the thread is handed a core. It is false if the thread
// died or the kernel stopped first.
func (k *Kernel) park(t *thread) bool {
	select {
	case <-t.gctx.baton:
		return !t.killed()
	case <-t.gctx.dead:
		return false
	case <-k.halted:
		return false
	}
}

func (k *Kernel) runThread(t *thread) {
	if !k.park(t) {
		return
	}
	x := &Context{k: k, t: t}
	defer k.retire(t)
	defer func() {
		if r := recover(); r != nil {
			k.log.Errorf(t.onCore, "thr: %s (%s) panicked: %v", t.label(), t.id, r)
			triggerPanic(PanicInfo{Thread: t.id, Name: t.name, Value: r, Stack: captureStack()})
		}
	}()
	t.entry(x)
}

// retire kills t if it is still in the table.
func (k *Kernel) retire(t *thread) {
	if t.killed() {
		return
	}
	_ = k.kill(k.cores[t.onCore].cpu, t.id)
}

// coreLoop is one core: it services the tick and doorbell interrupts and
// performs the context switch when the running thread traps or dies.
func (k *Kernel) coreLoop(ctx context.Context, c *coreState) error {
	if p, ok := k.h.(hal.CorePinner); ok {
		if err := p.PinCore(c.id); err != nil && !errors.Is(err, hal.ErrNotImplemented) {
			k.log.Warnf(c.id, "core: pin: %v", err)
		}
	}
	var tick <-chan struct{}
	if c.id == 0 {
		tick = k.timer.Interrupts()
	}
	ring := k.bell.Rings(c.id)

	k.pendSV(c, nil)
	for {
		var dead <-chan struct{}
		if c.running != nil {
			dead = c.running.gctx.dead
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.halted:
			return ErrHalted
		case <-tick:
			k.tickISR(c)
		case <-ring:
			k.doorbellISR(c)
		case from := <-c.trap:
			if from != c.running {
				// A dead thread whose core has already moved on.
				continue
			}
			k.pendSV(c, from)
		case <-dead:
			k.pendSV(c, c.running)
		}
	}
}

// pendSV switches core c from the thread that trapped to the scheduled next
// one. from is nil on the first dispatch.
func (k *Kernel) pendSV(c *coreState, from *thread) {
	irq := c.cpu.DisableInterrupts()
	k.lock.Claim()

	st := &k.st
	cur := &st.cores[c.id]
	if from != nil && st.lookup(from.id) == from {
		from.sp = k.sw.Save(from)
		if cur.next != from.id {
			from.core = -1
		}
	}
	// The idle thread is only a fallback: a thread woken while the switch
	// was in flight takes its place.
	next := st.lookup(cur.next)
	if next == nil || !eligible(next, c.id) || next.idle {
		best, ok := st.selectFor(c.id)
		if !ok {
			k.lock.Release()
			c.cpu.RestoreInterrupts(irq)
			c.running = nil
			k.fatal(c.id, opError("switch", ErrHalted, "no runnable thread and no idle thread"))
			return
		}
		if next != nil && next != best {
			next.core = -1
		}
		next = best
		cur.selected = next.id
	}
	next.core = int8(c.id)
	cur.current, cur.next = next.id, next.id
	c.pending.Store(false)
	sp := next.sp
	k.lock.Release()

	next.onCore = c.id
	c.running = next
	k.log.Tracef(c.id, "sched: switch to %s (%s)", next.label(), next.id)
	k.sw.Load(next, sp, c.cpu, irq)
}
