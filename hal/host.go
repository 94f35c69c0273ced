//go:build !tinygo

package hal

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type hostHAL struct {
	logger *hostLogger
	cpus   [NumCores]*maskCPU
	locks  *hostSpinlocks
	timer  Timer
	bell   *chanDoorbell
	fb     *hostFramebuffer
	pin    bool
}

// Options tunes the host HAL.
type Options struct {
	// PinCores binds each simulated core loop to one OS CPU (Linux only).
	PinCores bool
	// Width and Height size the framebuffer; zero selects 320x320.
	Width, Height int
}

// New returns a host HAL backed by the wall clock.
//
// The timer counts microseconds since New.
func New() HAL {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a host HAL backed by the wall clock.
func NewWithOptions(opts Options) HAL {
	out := colorable.NewColorableStdout()
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return newHostHAL(&hostLogger{w: out, color: color}, newWallTimer(), opts)
}

func newHostHAL(l *hostLogger, t Timer, opts Options) *hostHAL {
	w, ht := opts.Width, opts.Height
	if w <= 0 || ht <= 0 {
		w, ht = 320, 320
	}
	h := &hostHAL{
		logger: l,
		locks:  newHostSpinlocks(32),
		timer:  t,
		bell:   newChanDoorbell(),
		fb:     newHostFramebuffer(w, ht),
		pin:    opts.PinCores,
	}
	for i := range h.cpus {
		h.cpus[i] = newMaskCPU(i)
	}
	return h
}

func (h *hostHAL) Logger() Logger       { return h.logger }
func (h *hostHAL) Spinlocks() Spinlocks { return h.locks }
func (h *hostHAL) Timer() Timer         { return h.timer }
func (h *hostHAL) Doorbell() Doorbell   { return h.bell }
func (h *hostHAL) Display() Display     { return hostDisplay{fb: h.fb} }

func (h *hostHAL) CPU(core int) CPU {
	if core < 0 || core >= NumCores {
		return nil
	}
	return h.cpus[core]
}

// PinCore binds the calling goroutine's OS thread to CPU core when pinning
// was requested.
func (h *hostHAL) PinCore(core int) error {
	if !h.pin {
		return nil
	}
	return pinThread(core)
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

var (
	levelColors = []struct {
		tag  []byte
		code string
	}{
		{[]byte(" ERROR "), "\x1b[31m"},
		{[]byte(" WARN "), "\x1b[33m"},
		{[]byte(" DEBUG "), "\x1b[36m"},
		{[]byte(" TRACE "), "\x1b[90m"},
	}
	colorReset = "\x1b[0m"
)

func (l *hostLogger) WriteLineString(s string) {
	l.WriteLineBytes([]byte(s))
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.color {
		for _, lc := range levelColors {
			if bytes.Contains(b, lc.tag) {
				io.WriteString(l.w, lc.code)
				l.w.Write(b)
				io.WriteString(l.w, colorReset+"\n")
				return
			}
		}
	}
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
