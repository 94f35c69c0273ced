package hal

import "errors"

// NumCores is the number of symmetric cores on the supported boards.
const NumCores = 2

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrTimerRunning   = errors.New("timer already running")
)

// InterruptState is the saved interrupt mask returned by DisableInterrupts.
type InterruptState uint32

// CPU is one core's view of its own interrupt controller.
//
// DisableInterrupts masks interrupts on this core only. The other core keeps
// running; only a spinlock excludes it.
type CPU interface {
	ID() int
	DisableInterrupts() InterruptState
	RestoreInterrupts(InterruptState)
}

// Spinlocks is a bank of hardware lock registers shared by both cores.
//
// TryClaim reads the register: a claim succeeds when the read returns
// non-zero. Release writes the unlock value unconditionally.
type Spinlocks interface {
	Count() int
	TryClaim(i int) bool
	Release(i int)
}

// Timer is a free-running 32-bit counter that can raise a periodic interrupt.
//
// Only one core owns the timer. Interrupts are delivered on the channel
// returned by Interrupts once Start has been called.
type Timer interface {
	Counter() uint32
	Start(period uint32) error
	Interrupts() <-chan struct{}
}

// Doorbell raises an interrupt on a target core.
//
// Rings are level-triggered: ringing a core that has not yet serviced the
// previous ring is a no-op.
type Doorbell interface {
	Ring(core int)
	Rings(core int) <-chan struct{}
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// HAL provides the only contact point between the kernel and the board.
//
// Display may return nil on boards without a screen.
type HAL interface {
	Logger() Logger
	CPU(core int) CPU
	Spinlocks() Spinlocks
	Timer() Timer
	Doorbell() Doorbell
	Display() Display
}

// CorePinner is implemented by HALs that can bind a core loop to a
// physical CPU. It is called from the goroutine that runs the core.
type CorePinner interface {
	PinCore(core int) error
}
