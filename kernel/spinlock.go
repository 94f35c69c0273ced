package kernel

import (
	"runtime"
	"strconv"

	"alkyn/hal"
)

// Token is handed to the body of a critical section. Holding one means the
// caller owns the lock and its core's interrupts are masked.
type Token struct {
	lock int
}

// Lock reports which hardware register the section holds.
func (t Token) Lock() int { return t.lock }

type lockState uint8

const (
	lockFree lockState = iota
	lockAllocated
)

// LockPool is the lock ownership table for a bank of hardware spinlocks.
//
// Registers 0..n-1 are allocatable, register n guards the table itself and
// the top `reserved` registers are left to the platform.
type LockPool struct {
	bank   hal.Spinlocks
	guard  int
	owners []lockState
}

// NewLockPool builds the ownership table for bank, leaving reserved
// registers untouched.
func NewLockPool(bank hal.Spinlocks, reserved int) (*LockPool, error) {
	if bank == nil {
		return nil, opError("lockpool", ErrInvalidConfiguration, "no spinlock bank")
	}
	n := bank.Count() - reserved - 1
	if reserved < 0 || n < 1 {
		return nil, opError("lockpool", ErrInvalidConfiguration,
			strconv.Itoa(bank.Count())+" registers, "+strconv.Itoa(reserved)+" reserved")
	}
	return &LockPool{bank: bank, guard: n, owners: make([]lockState, n)}, nil
}

// Reset writes the unlock value to every register in the bank and frees
// the whole table. Only call it at boot, before anything holds a lock.
func (p *LockPool) Reset() {
	for i := 0; i < p.bank.Count(); i++ {
		p.bank.Release(i)
	}
	for i := range p.owners {
		p.owners[i] = lockFree
	}
}

// Size is the number of allocatable locks.
func (p *LockPool) Size() int { return len(p.owners) }

// Free counts unallocated locks.
func (p *LockPool) Free(cpu hal.CPU) int {
	n := 0
	p.guarded(cpu, func() {
		for _, o := range p.owners {
			if o == lockFree {
				n++
			}
		}
	})
	return n
}

// Acquire allocates a free lock, or fails with ErrResourceExhausted.
func (p *LockPool) Acquire(cpu hal.CPU) (*Spinlock, error) {
	idx := -1
	p.guarded(cpu, func() {
		for i, o := range p.owners {
			if o == lockFree {
				p.owners[i] = lockAllocated
				idx = i
				return
			}
		}
	})
	if idx < 0 {
		return nil, opError("acquire lock", ErrResourceExhausted, strconv.Itoa(len(p.owners))+" locks allocated")
	}
	return &Spinlock{pool: p, id: idx}, nil
}

func (p *LockPool) guarded(cpu hal.CPU, f func()) {
	s := cpu.DisableInterrupts()
	for !p.bank.TryClaim(p.guard) {
		spin()
	}
	f()
	p.bank.Release(p.guard)
	cpu.RestoreInterrupts(s)
}

// Spinlock is one allocated hardware lock. It is not reentrant: claiming it
// twice from the same core deadlocks.
type Spinlock struct {
	pool *LockPool
	id   int
}

func (l *Spinlock) ID() int { return l.id }

// TryClaim makes a single attempt at the hardware register.
func (l *Spinlock) TryClaim() bool {
	return l.pool.bank.TryClaim(l.id)
}

// Claim busy-waits until the lock is held. There is no timeout.
func (l *Spinlock) Claim() {
	for !l.TryClaim() {
		spin()
	}
}

// Release writes the unlock value whether or not the caller holds the lock.
func (l *Spinlock) Release() {
	l.pool.bank.Release(l.id)
}

// CriticalSection masks cpu's interrupts, claims the lock, runs f and undoes
// both in reverse order.
//
// The claim is an atomic read-modify-write on the register, which orders
// every access inside f after it; the release orders them before it.
func (l *Spinlock) CriticalSection(cpu hal.CPU, f func(Token)) {
	s := cpu.DisableInterrupts()
	defer cpu.RestoreInterrupts(s)
	l.Claim()
	defer l.Release()
	f(Token{lock: l.id})
}

// Locked is CriticalSection for bodies that return a value.
func Locked[R any](l *Spinlock, cpu hal.CPU, f func(Token) R) R {
	var r R
	l.CriticalSection(cpu, func(tok Token) {
		r = f(tok)
	})
	return r
}

// Deinit returns the lock to the pool and releases the register.
func (l *Spinlock) Deinit(cpu hal.CPU) {
	l.pool.guarded(cpu, func() {
		l.pool.owners[l.id] = lockFree
	})
	l.Release()
}

func spin() {
	runtime.Gosched()
}

// Cell holds a value that may only be reached from inside a critical
// section.
type Cell[T any] struct {
	v T
}

func NewCell[T any](v T) *Cell[T] { return &Cell[T]{v: v} }

// Borrow returns the value. The pointer must not outlive the section that
// produced tok.
func (c *Cell[T]) Borrow(tok Token) *T {
	_ = tok
	return &c.v
}
