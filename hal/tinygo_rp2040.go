//go:build tinygo && rp2040

package hal

import (
	"device/rp"
	"machine"
	"runtime/volatile"
	"time"
	"unsafe"
)

type rp2040HAL struct {
	logger *uartLogger
	cpus   [NumCores]*maskCPU
	timer  *rpTimer
	bell   *chanDoorbell
	disp   Display
}

// New returns the RP2040 HAL.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1. Built with the picocalc tag,
// the PicoCalc panel backs Display; otherwise Display is nil.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	h := &rp2040HAL{
		logger: &uartLogger{uart: uart},
		timer:  &rpTimer{irq: make(chan struct{}, 1)},
		bell:   newChanDoorbell(),
		disp:   boardDisplay(),
	}
	for i := range h.cpus {
		h.cpus[i] = newMaskCPU(i)
	}
	return h
}

func (h *rp2040HAL) Logger() Logger       { return h.logger }
func (h *rp2040HAL) Spinlocks() Spinlocks { return sioSpinlocks{} }
func (h *rp2040HAL) Timer() Timer         { return h.timer }
func (h *rp2040HAL) Doorbell() Doorbell   { return h.bell }
func (h *rp2040HAL) Display() Display     { return h.disp }

func (h *rp2040HAL) CPU(core int) CPU {
	if core < 0 || core >= NumCores {
		return nil
	}
	return h.cpus[core]
}

// CurrentCore reads the SIO CPUID register.
func CurrentCore() int {
	return int(rp.SIO.CPUID.Get())
}

// sioSpinlocks maps the 32 SIO spinlock registers.
//
// Reading a register claims the lock when the read is non-zero; any write
// releases it.
type sioSpinlocks struct{}

func (sioSpinlocks) Count() int { return 32 }

func (sioSpinlocks) reg(i int) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Add(unsafe.Pointer(&rp.SIO.SPINLOCK0), uintptr(i)*4))
}

func (s sioSpinlocks) TryClaim(i int) bool {
	if i < 0 || i >= 32 {
		return false
	}
	return s.reg(i).Get() != 0
}

func (s sioSpinlocks) Release(i int) {
	if i < 0 || i >= 32 {
		return
	}
	s.reg(i).Set(1)
}

// rpTimer reads the 1 MHz TIMER raw low word and ticks from a goroutine.
type rpTimer struct {
	irq     chan struct{}
	running bool
}

func (t *rpTimer) Counter() uint32 { return rp.TIMER.TIMERAWL.Get() }

func (t *rpTimer) Interrupts() <-chan struct{} { return t.irq }

func (t *rpTimer) Start(period uint32) error {
	if t.running {
		return ErrTimerRunning
	}
	if period == 0 {
		period = 1000
	}
	t.running = true
	go func() {
		ticker := time.NewTicker(time.Duration(period) * time.Microsecond)
		defer ticker.Stop()
		for range ticker.C {
			select {
			case t.irq <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	for i := 0; i < len(b); i++ {
		l.uart.WriteByte(b[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// Write exposes the UART as a raw byte sink for framed diagnostics.
func (l *uartLogger) Write(p []byte) (int, error) {
	return l.uart.Write(p)
}
