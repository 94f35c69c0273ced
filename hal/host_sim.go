//go:build !tinygo

package hal

import "io"

// SimConfig configures a simulated board.
type SimConfig struct {
	// Log receives log lines; nil discards them.
	Log io.Writer
	// Width and Height size the framebuffer; zero selects 320x320.
	Width, Height int
}

// Sim is a host board whose timer only advances when told to.
type Sim struct {
	*hostHAL
	Clock *ManualTimer
}

// NewSimulated returns a deterministic host HAL for tests and scripts.
func NewSimulated(cfg SimConfig) *Sim {
	w := cfg.Log
	if w == nil {
		w = io.Discard
	}
	clk := NewManualTimer()
	h := newHostHAL(&hostLogger{w: w}, clk, Options{Width: cfg.Width, Height: cfg.Height})
	return &Sim{hostHAL: h, Clock: clk}
}
