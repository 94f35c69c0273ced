// Package board loads board profiles: the kernel limits, the tick and an
// optional startup script.
package board

import (
	"fmt"
	"os"
	"strings"

	"alkyn/internal/klog"
	"alkyn/kernel"

	"gopkg.in/yaml.v2"
)

// Profile is the YAML form of a board profile. Unknown keys are errors.
type Profile struct {
	Name             string   `yaml:"name"`
	MaxThreads       int      `yaml:"max_threads"`
	SpinlockReserved *int     `yaml:"spinlock_reserved"`
	Mailbox          string   `yaml:"mailbox"`
	LogLevel         string   `yaml:"log_level"`
	TickPeriod       uint32   `yaml:"tick_period_us"`
	TickHz           int      `yaml:"tick_hz"`
	MonitorEvery     uint32   `yaml:"monitor_every"`
	Script           []string `yaml:"script"`
}

// Default is the RP2040 profile: 1 ms ticks, 256 threads, one spinlock
// left to the SDK.
func Default() Profile {
	return Profile{
		Name:         "rp2040",
		MaxThreads:   kernel.DefaultMaxThreads,
		Mailbox:      "lifo",
		LogLevel:     "info",
		TickPeriod:   1000,
		TickHz:       1000,
		MonitorEvery: 100,
	}
}

// Parse reads a profile. Fields missing from data keep their defaults.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return Profile{}, fmt.Errorf("board: %w", err)
	}
	if _, err := p.KernelConfig(); err != nil {
		return Profile{}, err
	}
	if p.TickHz <= 0 {
		return Profile{}, fmt.Errorf("board: tick_hz must be positive, got %d", p.TickHz)
	}
	return p, nil
}

func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("board: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// KernelConfig converts the profile's limits.
func (p Profile) KernelConfig() (kernel.Config, error) {
	cfg := kernel.DefaultConfig()
	if p.MaxThreads != 0 {
		cfg.MaxThreads = p.MaxThreads
	}
	if p.SpinlockReserved != nil {
		cfg.SpinlockReserved = *p.SpinlockReserved
	}
	switch strings.ToLower(p.Mailbox) {
	case "", "lifo":
		cfg.MailboxOrder = kernel.MailboxLIFO
	case "fifo":
		cfg.MailboxOrder = kernel.MailboxFIFO
	default:
		return cfg, fmt.Errorf("board: mailbox must be lifo or fifo, got %q", p.Mailbox)
	}
	if p.LogLevel != "" {
		lvl, err := klog.ParseLevel(p.LogLevel)
		if err != nil {
			return cfg, fmt.Errorf("board: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}
