// Package app boots Alkyn on a board: it builds the kernel from a board
// profile, starts the monitor and shell threads and runs the cores.
package app

import (
	"context"
	"fmt"
	"io"

	"alkyn/diag"
	"alkyn/hal"
	"alkyn/internal/board"
	"alkyn/internal/buildinfo"
	"alkyn/internal/klog"
	"alkyn/kernel"
	"alkyn/server"
)

const (
	monitorStackWords = 256
	shellStackWords   = 256
	workerStackWords  = 128
)

type Config struct {
	Board board.Profile
	// Logger replaces the HAL logger for kernel output when set.
	Logger hal.Logger
	// Out receives script and ps output; nil discards it.
	Out io.Writer
}

// System is a booted but not yet started kernel with its system threads.
type System struct {
	h       hal.HAL
	k       *kernel.Kernel
	prof    board.Profile
	out     io.Writer
	console *diag.Console

	monitor kernel.ThreadID
	shell   kernel.ThreadID
	results chan error
}

func New(h hal.HAL, cfg Config) (*System, error) {
	kcfg, err := cfg.Board.KernelConfig()
	if err != nil {
		return nil, err
	}
	kcfg.Logger = cfg.Logger
	k, err := kernel.New(h, kcfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	installPanicHandler(h, k.Logger())

	s := &System{
		h:       h,
		k:       k,
		prof:    cfg.Board,
		out:     cfg.Out,
		results: make(chan error, 1),
	}
	if s.out == nil {
		s.out = io.Discard
	}
	if d := h.Display(); d != nil {
		s.console = diag.NewConsole(d.Framebuffer())
	}

	s.monitor, err = k.CreateThreadWithConfig("monitor", make([]uint32, monitorStackWords), s.monitorLoop,
		kernel.ThreadConfig{Priority: 1, Privileged: true})
	if err != nil {
		return nil, fmt.Errorf("app: monitor: %w", err)
	}
	s.shell, err = server.Start(server.FromKernel(k), "shell", make([]uint32, shellStackWords), &shell{s: s},
		kernel.ThreadConfig{Priority: 2, Privileged: true})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return s, nil
}

func (s *System) Kernel() *kernel.Kernel { return s.k }

// Run starts the kernel and blocks until ctx is done or the kernel halts.
func (s *System) Run(ctx context.Context) error {
	s.k.Logger().Infof(0, "app: alkyn %s on %s, tick %dus", buildinfo.Short(), s.prof.Name, s.prof.TickPeriod)
	return s.k.Start(ctx, s.prof.TickPeriod)
}

// monitorLoop redraws the console every MonitorEvery ticks.
func (s *System) monitorLoop(x *kernel.Context) {
	every := s.prof.MonitorEvery
	if every == 0 {
		every = 100
	}
	for {
		snap := x.Snapshot()
		if err := s.console.Render(snap); err != nil {
			x.Logf(klog.LevelWarn, "mon: render: %v", err)
		}
		x.Logf(klog.LevelDebug, "mon: %d threads at tick %d", len(snap.Threads), snap.Ticks)
		x.Sleep(every)
	}
}

// Run boots h with the default profile and never returns. It is the TinyGo
// entry point. When the board log is a byte stream, kernel lines go out as
// diag frames for alkynlog.
func Run(h hal.HAL) {
	bootScreen(h, "kernel: init")
	cfg := Config{Board: board.Default()}
	if w, ok := h.Logger().(io.Writer); ok {
		cfg.Logger = diag.NewFrameLogger(w)
	}
	s, err := New(h, cfg)
	if err != nil {
		h.Logger().WriteLineString("alkyn: " + err.Error())
		select {}
	}
	bootScreen(h, "kernel: start")
	err = s.Run(context.Background())
	h.Logger().WriteLineString("alkyn: halted: " + err.Error())
	select {}
}
