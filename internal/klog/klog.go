// Package klog formats leveled kernel log lines for a hal.Logger.
//
// Lines look like "1:10423us INFO  thr: created worker (2.1)": the core that
// logged, the kernel counter in microseconds, the level and the message.
package klog

import (
	"fmt"
	"strings"
	"sync/atomic"

	"alkyn/hal"
)

type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "?"
	}
}

// ParseLevel accepts the names printed by Level.String, in any case.
func ParseLevel(s string) (Level, error) {
	for l := LevelTrace; l <= LevelOff; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is safe for concurrent use. A nil *Logger discards everything.
type Logger struct {
	out   hal.Logger
	level atomic.Uint32
	clock func() uint64
}

// New returns a logger writing to out at level. clock supplies the
// timestamp and may be nil.
func New(out hal.Logger, level Level, clock func() uint64) *Logger {
	l := &Logger{out: out, clock: clock}
	l.level.Store(uint32(level))
	return l
}

func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level.Store(uint32(level))
}

// Enabled reports whether lines at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil || l.out == nil {
		return false
	}
	return level >= Level(l.level.Load()) && level < LevelOff
}

func (l *Logger) Logf(core int, level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	var us uint64
	if l.clock != nil {
		us = l.clock()
	}
	msg := fmt.Sprintf(format, args...)
	l.out.WriteLineString(fmt.Sprintf("%d:%dus %-5s %s", core, us, level, msg))
}

func (l *Logger) Tracef(core int, format string, args ...any) {
	l.Logf(core, LevelTrace, format, args...)
}

func (l *Logger) Debugf(core int, format string, args ...any) {
	l.Logf(core, LevelDebug, format, args...)
}

func (l *Logger) Infof(core int, format string, args ...any) {
	l.Logf(core, LevelInfo, format, args...)
}

func (l *Logger) Warnf(core int, format string, args ...any) {
	l.Logf(core, LevelWarn, format, args...)
}

func (l *Logger) Errorf(core int, format string, args ...any) {
	l.Logf(core, LevelError, format, args...)
}

// Line is one parsed log line.
type Line struct {
	Core  int
	Micro uint64
	Level Level
	Msg   string
}

// Parse splits a line produced by Logf. ok is false for foreign lines.
func Parse(s string) (Line, bool) {
	var ln Line
	head, rest, found := strings.Cut(s, " ")
	if !found {
		return ln, false
	}
	core, stamp, found := strings.Cut(head, ":")
	if !found || !strings.HasSuffix(stamp, "us") {
		return ln, false
	}
	if _, err := fmt.Sscanf(core, "%d", &ln.Core); err != nil {
		return ln, false
	}
	if _, err := fmt.Sscanf(strings.TrimSuffix(stamp, "us"), "%d", &ln.Micro); err != nil {
		return ln, false
	}
	rest = strings.TrimLeft(rest, " ")
	lvl, msg, _ := strings.Cut(rest, " ")
	level, err := ParseLevel(lvl)
	if err != nil {
		return ln, false
	}
	ln.Level = level
	ln.Msg = strings.TrimLeft(msg, " ")
	return ln, true
}
