//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"alkyn/app"
	"alkyn/diag"
	"alkyn/hal"
	"alkyn/internal/board"

	"golang.org/x/sync/errgroup"
)

var errScriptDone = errors.New("script finished")

func main() {
	var cfg hal.HeadlessConfig
	var boardPath, scriptPath, diagOut string
	var pin bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 60, "Refresh rate in headless mode.")
	ticks := flag.Uint64("ticks", 0, "Stop after N kernel ticks (0 = run forever).")
	flag.StringVar(&boardPath, "board", "", "Board profile (YAML). Defaults to rp2040.")
	flag.StringVar(&scriptPath, "script", "", "Run a script on a simulated clock instead of the wall clock.")
	flag.StringVar(&diagOut, "diag-out", "", "Also write log lines as CRC framed records to this file.")
	flag.BoolVar(&pin, "pin-cores", false, "Pin each core loop to its own OS CPU (Linux).")
	flag.Parse()

	if err := run(cfg, boardPath, scriptPath, diagOut, pin, *ticks); err != nil {
		fmt.Fprintln(os.Stderr, "alkyn:", err)
		os.Exit(1)
	}
}

func run(cfg hal.HeadlessConfig, boardPath, scriptPath, diagOut string, pin bool, ticks uint64) error {
	prof := board.Default()
	if boardPath != "" {
		var err error
		if prof, err = board.Load(boardPath); err != nil {
			return err
		}
	}
	script := prof.Script
	if scriptPath != "" {
		data, err := os.ReadFile(scriptPath)
		if err != nil {
			return err
		}
		script = strings.Split(string(data), "\n")
	}

	var h hal.HAL
	var clock *hal.ManualTimer
	if len(script) > 0 {
		sim := hal.NewSimulated(hal.SimConfig{Log: os.Stdout})
		h, clock = sim, sim.Clock
	} else {
		h = hal.NewWithOptions(hal.Options{PinCores: pin})
	}

	logger := h.Logger()
	if diagOut != "" {
		f, err := os.Create(diagOut)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = diag.Tee(logger, diag.NewFrameLogger(f))
	}

	sys, err := app.New(h, app.Config{Board: prof, Logger: logger, Out: os.Stdout})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sys.Run(gctx) })
	if len(script) > 0 {
		g.Go(func() error {
			if err := app.NewScript(sys, clock).RunLines(gctx, script); err != nil {
				return err
			}
			return errScriptDone
		})
	}

	k := sys.Kernel()
	step := func() error {
		select {
		case <-k.Done():
			return hal.ErrStop
		default:
		}
		if ticks > 0 && k.Ticks() >= ticks {
			return hal.ErrStop
		}
		return nil
	}

	var uiErr error
	if cfg.Enabled {
		uiErr = hal.RunHeadless(gctx, step, cfg)
	} else {
		uiErr = hal.RunWindow(h, step)
	}
	cancel()
	err = g.Wait()

	if uiErr != nil && !errors.Is(uiErr, context.Canceled) && !errors.Is(uiErr, hal.ErrStop) {
		return uiErr
	}
	if err == nil || errors.Is(err, errScriptDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
