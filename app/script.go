package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"alkyn/diag"
	"alkyn/hal"
	"alkyn/kernel"
	"alkyn/server"

	"github.com/google/shlex"
)

// ScriptTimeout bounds how long a command waits for the kernel.
var ScriptTimeout = 5 * time.Second

// Script runs a line-oriented scenario against a running System:
//
//	spawn NAME PRIO AFFINITY [privileged]
//	sleep NAME TICKS
//	send NAME TEXT
//	kill NAME
//	tick N
//	ps
//	expect NAME STATUS
//
// Blank lines and lines starting with # are skipped.
type Script struct {
	sys *System
	// Clock drives "tick". With a nil Clock, "tick" waits for the board's
	// own timer instead.
	Clock *hal.ManualTimer
}

func NewScript(sys *System, clock *hal.ManualTimer) *Script {
	return &Script{sys: sys, Clock: clock}
}

// Run executes every line of r in order and stops at the first failure.
func (sc *Script) Run(ctx context.Context, r io.Reader) error {
	in := bufio.NewScanner(r)
	n := 0
	for in.Scan() {
		n++
		if err := sc.Exec(ctx, in.Text()); err != nil {
			return fmt.Errorf("script line %d: %w", n, err)
		}
	}
	return in.Err()
}

// RunLines is Run for a script held in memory.
func (sc *Script) RunLines(ctx context.Context, lines []string) error {
	for i, line := range lines {
		if err := sc.Exec(ctx, line); err != nil {
			return fmt.Errorf("script line %d: %w", i+1, err)
		}
	}
	return nil
}

// Exec runs one command.
func (sc *Script) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}
	k := sc.sys.k
	cmd, args := args[0], args[1:]
	switch cmd {
	case "spawn":
		return sc.spawn(ctx, args)
	case "sleep":
		if len(args) != 2 {
			return errors.New("usage: sleep NAME TICKS")
		}
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		return sc.send(args[0], tagSleep, kernel.Word(uint32(n)))
	case "send":
		if len(args) != 2 {
			return errors.New("usage: send NAME TEXT")
		}
		return sc.send(args[0], tagText, kernel.Text(args[1]))
	case "kill":
		if len(args) != 1 {
			return errors.New("usage: kill NAME")
		}
		id, err := sc.lookup(args[0])
		if err != nil {
			return err
		}
		return k.KillThread(id)
	case "tick":
		n := 1
		if len(args) == 1 {
			if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
				return fmt.Errorf("tick: bad count %q", args[0])
			}
		}
		return sc.tick(ctx, n)
	case "ps":
		for _, l := range diag.Table(k.Snapshot()) {
			fmt.Fprintln(sc.sys.out, l)
		}
		return nil
	case "expect":
		if len(args) != 2 {
			return errors.New("usage: expect NAME STATUS")
		}
		return sc.expect(ctx, args[0], args[1])
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (sc *Script) spawn(ctx context.Context, args []string) error {
	// Drain a stale result left by a timed-out spawn.
	select {
	case <-sc.sys.results:
	default:
	}
	if _, err := sc.sys.k.Send(sc.sys.shell, server.TagCast, kernel.Text(strings.Join(args, " "))); err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	select {
	case err := <-sc.sys.results:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-sc.sys.k.Done():
		return sc.sys.k.Err()
	case <-time.After(ScriptTimeout):
		return errors.New("spawn: shell did not answer")
	}
}

func (sc *Script) lookup(name string) (kernel.ThreadID, error) {
	id, ok := sc.sys.k.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("no thread named %q", name)
	}
	return id, nil
}

func (sc *Script) send(name string, tag kernel.Tag, p kernel.Payload) error {
	id, err := sc.lookup(name)
	if err != nil {
		return err
	}
	_, err = sc.sys.k.Send(id, tag, p)
	return err
}

func (sc *Script) tick(ctx context.Context, n int) error {
	k := sc.sys.k
	want := k.Ticks() + uint64(n)
	for i := 0; i < n && sc.Clock != nil; i++ {
		fired := make(chan struct{})
		go func() {
			sc.Clock.Fire()
			close(fired)
		}()
		select {
		case <-fired:
		case <-k.Done():
			return k.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.waitFor(ctx, fmt.Sprintf("tick %d", want), func() bool { return k.Ticks() >= want })
}

func (sc *Script) expect(ctx context.Context, name, status string) error {
	want, err := kernel.ParseStatus(status)
	if err != nil {
		return err
	}
	id, err := sc.lookup(name)
	if err != nil {
		return err
	}
	var last kernel.Status
	var serr error
	err = sc.waitFor(ctx, name+" "+status, func() bool {
		last, serr = sc.sys.k.Status(id)
		return serr != nil || last == want
	})
	if serr != nil {
		return fmt.Errorf("expect %s %s: %w", name, want, serr)
	}
	if err != nil {
		return fmt.Errorf("expect %s %s: last status %s: %w", name, want, last, err)
	}
	return nil
}

func (sc *Script) waitFor(ctx context.Context, what string, cond func() bool) error {
	deadline := time.After(ScriptTimeout)
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sc.sys.k.Done():
			return sc.sys.k.Err()
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}
