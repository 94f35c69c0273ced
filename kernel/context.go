package kernel

import (
	"runtime"

	"alkyn/internal/klog"
)

// Context is a thread's handle on the kernel. It belongs to the thread's
// goroutine and must not be shared.
//
// Every call is a preemption point: if the thread's core has a switch
// pending, the call gives up the core before returning.
type Context struct {
	k *Kernel
	t *thread
}

func (x *Context) core() *coreState { return x.k.cores[x.t.onCore] }

func (x *Context) Self() ThreadID  { return x.t.id }
func (x *Context) Name() string    { return x.t.name }
func (x *Context) Core() int       { return x.t.onCore }
func (x *Context) Priority() uint8 { return x.t.priority }
func (x *Context) Ticks() uint64   { return x.k.Ticks() }
func (x *Context) Counter() uint64 { return x.k.Counter() }

// Logf logs a line tagged with the thread's core.
func (x *Context) Logf(level klog.Level, format string, args ...any) {
	x.k.log.Logf(x.t.onCore, level, format, args...)
}

// checkpoint traps if the core has a switch pending. A killed thread ends
// here.
func (x *Context) checkpoint() {
	if x.t.killed() {
		runtime.Goexit()
	}
	if x.core().pending.Load() {
		x.trap()
	}
}

// trap hands the core back to the core loop and waits to be rescheduled.
func (x *Context) trap() {
	select {
	case x.core().trap <- x.t:
	case <-x.t.gctx.dead:
		runtime.Goexit()
	case <-x.k.halted:
		runtime.Goexit()
	}
	if !x.k.park(x.t) {
		runtime.Goexit()
	}
}

// reschedule runs the scheduling step for the caller's core and traps if
// it picked another thread.
func (x *Context) reschedule() {
	c := x.core()
	var pend bool
	var err error
	x.k.withState(c.cpu, func(st *state) {
		pend, err = x.k.scheduleLocked(st, c.id)
	})
	x.settle(c, pend, err)
}

func (x *Context) settle(c *coreState, pend bool, err error) {
	if err != nil {
		x.k.fatal(c.id, err)
		runtime.Goexit()
	}
	if pend {
		c.pendSwitch()
	}
	x.checkpoint()
}

// Yield gives the core to a better candidate, if there is one.
func (x *Context) Yield() {
	x.reschedule()
}

// Sleep suspends the thread for the given number of ticks. Sleep(0) is
// Yield.
func (x *Context) Sleep(ticks uint32) {
	if ticks == 0 {
		x.Yield()
		return
	}
	c := x.core()
	var pend bool
	var err error
	x.k.withState(c.cpu, func(st *state) {
		if x.t.status == StatusReady {
			x.t.status = StatusSleeping
			x.t.sleepTicks = ticks
		}
		pend, err = x.k.scheduleLocked(st, c.id)
	})
	x.settle(c, pend, err)
}

// WaitForEvent blocks until the core is signalled, then takes any pending
// switch.
func (x *Context) WaitForEvent() {
	x.checkpoint()
	select {
	case <-x.core().event:
	case <-x.t.gctx.dead:
		runtime.Goexit()
	case <-x.k.halted:
		runtime.Goexit()
	}
	x.checkpoint()
}

// Send appends a message to target's mailbox and returns target. If that
// wakes a thread of higher priority than the caller, the caller's core
// reschedules at once.
func (x *Context) Send(target ThreadID, tag Tag, p Payload) (ThreadID, error) {
	c := x.core()
	var woke, pend bool
	var err, serr error
	x.k.withState(c.cpu, func(st *state) {
		if woke, err = x.k.deliver(st, x.t.id, target, tag, p); err != nil || !woke {
			return
		}
		if st.lookup(target).priority > x.t.priority {
			pend, serr = x.k.scheduleLocked(st, c.id)
		}
	})
	if err != nil {
		x.checkpoint()
		return 0, err
	}
	if woke {
		for _, o := range x.k.cores {
			if o != c {
				x.k.bell.Ring(o.id)
			}
		}
	}
	x.settle(c, pend, serr)
	return target, nil
}

// CheckReceive takes a message if one is waiting.
func (x *Context) CheckReceive() (Envelope, bool) {
	var e Envelope
	var ok bool
	x.k.withState(x.core().cpu, func(st *state) {
		e, ok = x.t.mail.pop(x.k.cfg.MailboxOrder)
	})
	x.checkpoint()
	return e, ok
}

// Receive blocks until a message arrives. The thread is MailPending while
// it waits.
func (x *Context) Receive() Envelope {
	for {
		c := x.core()
		var (
			e        Envelope
			ok, pend bool
			err      error
		)
		x.k.withState(c.cpu, func(st *state) {
			if e, ok = x.t.mail.pop(x.k.cfg.MailboxOrder); ok {
				return
			}
			if x.t.status == StatusReady {
				x.t.status = StatusMailPending
			}
			pend, err = x.k.scheduleLocked(st, c.id)
		})
		if ok {
			x.checkpoint()
			return e
		}
		x.settle(c, pend, err)
	}
}

// Requeue puts messages back into the caller's mailbox so that the next
// receive returns the first of them.
func (x *Context) Requeue(envs ...Envelope) {
	x.k.withState(x.core().cpu, func(st *state) {
		for i := len(envs) - 1; i >= 0; i-- {
			x.t.mail.unpop(x.k.cfg.MailboxOrder, envs[i])
		}
	})
}

// Pending is the number of messages in the caller's mailbox.
func (x *Context) Pending() int {
	var n int
	x.k.withState(x.core().cpu, func(st *state) {
		n = x.t.mail.len()
	})
	return n
}

// Spawn creates a thread with DefaultThreadConfig.
func (x *Context) Spawn(name string, stack []uint32, entry func(*Context)) (ThreadID, error) {
	return x.SpawnWithConfig(name, stack, entry, DefaultThreadConfig())
}

// SpawnWithConfig creates a thread. After Start only privileged threads may
// do this.
func (x *Context) SpawnWithConfig(name string, stack []uint32, entry func(*Context), cfg ThreadConfig) (ThreadID, error) {
	c := x.core()
	id, err := x.k.createThread(x.t, c.cpu, name, stack, entry, cfg, false)
	if err != nil {
		x.checkpoint()
		return 0, err
	}
	for _, o := range x.k.cores {
		if o != c {
			x.k.bell.Ring(o.id)
		}
	}
	if cfg.Priority > x.t.priority {
		x.reschedule()
	} else {
		x.checkpoint()
	}
	return id, nil
}

// Kill removes a thread. Killing the caller does not return.
func (x *Context) Kill(id ThreadID) error {
	if id == x.t.id {
		x.Exit()
	}
	err := x.k.kill(x.core().cpu, id)
	x.checkpoint()
	return err
}

// Exit ends the calling thread.
func (x *Context) Exit() {
	_ = x.k.kill(x.core().cpu, x.t.id)
	runtime.Goexit()
}

func (x *Context) Status(id ThreadID) (Status, error) {
	s, err := x.k.status(x.core().cpu, id)
	x.checkpoint()
	return s, err
}

func (x *Context) Lookup(name string) (ThreadID, bool) {
	return x.k.lookupName(x.core().cpu, name)
}

func (x *Context) NameOf(id ThreadID) (string, bool) {
	return x.k.nameOf(x.core().cpu, id)
}

func (x *Context) Snapshot() Snapshot {
	return x.k.snapshot(x.core().cpu)
}
