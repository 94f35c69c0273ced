//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Steps   uint64
}

// ErrStop ends RunHeadless without an error when returned by step.
var ErrStop = errors.New("headless: stop")

// RunHeadless calls step at cfg.Hz until ctx is done, step returns an error,
// or cfg.Steps steps have run (0 = forever).
func RunHeadless(ctx context.Context, step func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if step != nil {
				if err := step(); err != nil {
					if err == ErrStop {
						return nil
					}
					return err
				}
			}
			n++
			if cfg.Steps > 0 && n >= cfg.Steps {
				return nil
			}
		}
	}
}

func hostOf(h HAL) (*hostHAL, bool) {
	switch v := h.(type) {
	case *hostHAL:
		return v, true
	case *Sim:
		return v.hostHAL, true
	default:
		return nil, false
	}
}
