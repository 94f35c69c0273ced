package app

import (
	"fmt"
	"strconv"
	"strings"

	"alkyn/internal/klog"
	"alkyn/kernel"
	"alkyn/server"
)

// Worker command tags.
const (
	tagText kernel.Tag = iota + 1
	tagSleep
	tagExit
)

// shell is the privileged server that spawns workers after boot, when
// code outside the kernel may no longer create threads.
type shell struct {
	s *System
}

func (sh *shell) HandleCall(x *kernel.Context, req kernel.Payload, from kernel.ThreadID) server.Reply {
	line, err := req.Text()
	if err != nil {
		return server.OK(kernel.Text(err.Error()))
	}
	if _, err := sh.spawn(x, strings.Fields(line)); err != nil {
		return server.OK(kernel.Text(err.Error()))
	}
	return server.OK(kernel.Text(""))
}

// HandleCast serves requests from outside the kernel, which cannot wait
// for a reply envelope; the result goes to the system's result channel.
func (sh *shell) HandleCast(x *kernel.Context, req kernel.Payload, from kernel.ThreadID) server.Reply {
	line, err := req.Text()
	if err == nil {
		_, err = sh.spawn(x, strings.Fields(line))
	}
	select {
	case sh.s.results <- err:
	default:
		x.Logf(klog.LevelWarn, "sh: result dropped: %v", err)
	}
	return server.NoReply()
}

func (sh *shell) HandleInfo(x *kernel.Context, env kernel.Envelope) server.Reply {
	x.Logf(klog.LevelDebug, "sh: ignoring tag %d from %s", env.Tag, env.From)
	return server.NoReply()
}

// spawn handles "NAME PRIO AFFINITY [privileged]".
func (sh *shell) spawn(x *kernel.Context, args []string) (kernel.ThreadID, error) {
	if len(args) < 3 || len(args) > 4 {
		return 0, fmt.Errorf("spawn: want NAME PRIO AFFINITY [privileged], got %q", args)
	}
	prio, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("spawn: priority: %w", err)
	}
	aff, err := kernel.ParseAffinity(args[2])
	if err != nil {
		return 0, fmt.Errorf("spawn: %w", err)
	}
	cfg := kernel.ThreadConfig{Priority: uint8(prio), Affinity: aff}
	if len(args) == 4 {
		if args[3] != "privileged" {
			return 0, fmt.Errorf("spawn: unknown flag %q", args[3])
		}
		cfg.Privileged = true
	}
	return x.SpawnWithConfig(args[0], make([]uint32, workerStackWords), worker, cfg)
}

// worker obeys commands from its mailbox: text is logged, tagSleep sleeps
// for the given number of ticks and tagExit ends the thread.
func worker(x *kernel.Context) {
	for {
		env := x.Receive()
		switch env.Tag {
		case tagSleep:
			n, err := env.Word()
			if err != nil {
				x.Logf(klog.LevelWarn, "wrk: %s: %v", x.Name(), err)
				continue
			}
			x.Sleep(n)
		case tagExit:
			x.Logf(klog.LevelInfo, "wrk: %s exiting", x.Name())
			return
		default:
			s, err := env.Text()
			if err != nil {
				x.Logf(klog.LevelWarn, "wrk: %s: %v", x.Name(), err)
				continue
			}
			x.Logf(klog.LevelInfo, "wrk: %s got %q from %s", x.Name(), s, env.From)
		}
	}
}
