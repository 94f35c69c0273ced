// Package server runs request/response state machines on kernel threads.
//
// A server thread loops on Receive and dispatches each envelope by tag:
// calls expect a reply, casts do not, anything else is info. Clients use
// Call, Cast and Stop from their own threads.
package server

import (
	"fmt"

	"alkyn/internal/klog"
	"alkyn/kernel"
)

// Reserved tags. Application tags below TagCall reach HandleInfo.
const (
	TagCall kernel.Tag = 0xFF00 + iota
	TagCast
	TagStop
	TagReply
)

type ReplyKind uint8

const (
	// ReplyNone sends nothing back.
	ReplyNone ReplyKind = iota
	// ReplyOK sends Payload back to the caller of a call.
	ReplyOK
	// ReplyStop ends the server thread after handling the message.
	ReplyStop
)

type Reply struct {
	Kind    ReplyKind
	Payload kernel.Payload
}

func OK(p kernel.Payload) Reply { return Reply{Kind: ReplyOK, Payload: p} }
func NoReply() Reply            { return Reply{Kind: ReplyNone} }
func StopReply() Reply          { return Reply{Kind: ReplyStop} }

// Handler holds the server state. Its methods run on the server thread.
type Handler interface {
	HandleCall(x *kernel.Context, req kernel.Payload, from kernel.ThreadID) Reply
	HandleCast(x *kernel.Context, req kernel.Payload, from kernel.ThreadID) Reply
	HandleInfo(x *kernel.Context, env kernel.Envelope) Reply
}

// Terminator is implemented by handlers that want to know when the server
// stops.
type Terminator interface {
	Terminate(x *kernel.Context)
}

// Starter is the part of the kernel API Start needs: boot code passes the
// *kernel.Kernel, a privileged thread its *kernel.Context.
type Starter interface {
	SpawnWithConfig(name string, stack []uint32, entry func(*kernel.Context), cfg kernel.ThreadConfig) (kernel.ThreadID, error)
}

type bootStarter struct{ k *kernel.Kernel }

func (b bootStarter) SpawnWithConfig(name string, stack []uint32, entry func(*kernel.Context), cfg kernel.ThreadConfig) (kernel.ThreadID, error) {
	return b.k.CreateThreadWithConfig(name, stack, entry, cfg)
}

// FromKernel adapts a kernel for Start before the kernel is started.
func FromKernel(k *kernel.Kernel) Starter { return bootStarter{k: k} }

// Start creates the server thread.
func Start(s Starter, name string, stack []uint32, h Handler, cfg kernel.ThreadConfig) (kernel.ThreadID, error) {
	if h == nil {
		return 0, fmt.Errorf("server %s: nil handler", name)
	}
	id, err := s.SpawnWithConfig(name, stack, func(x *kernel.Context) { loop(x, h) }, cfg)
	if err != nil {
		return 0, fmt.Errorf("server %s: %w", name, err)
	}
	return id, nil
}

func loop(x *kernel.Context, h Handler) {
	if t, ok := h.(Terminator); ok {
		defer t.Terminate(x)
	}
	for {
		env := x.Receive()
		var r Reply
		switch env.Tag {
		case TagCall:
			r = h.HandleCall(x, env.Payload, env.From)
			if r.Kind == ReplyOK && env.From.Valid() {
				if _, err := x.Send(env.From, TagReply, r.Payload); err != nil {
					x.Logf(klog.LevelWarn, "srv: %s: reply to %s: %v", x.Name(), env.From, err)
				}
			}
		case TagCast:
			r = h.HandleCast(x, env.Payload, env.From)
		case TagStop:
			r = StopReply()
		default:
			r = h.HandleInfo(x, env)
		}
		if r.Kind == ReplyStop {
			x.Logf(klog.LevelDebug, "srv: %s stopping", x.Name())
			return
		}
	}
}

// Call sends req to the server and blocks until it replies. Messages from
// anyone else that arrive meanwhile stay in the caller's mailbox. Call does
// not notice a server that dies before replying.
func Call(x *kernel.Context, server kernel.ThreadID, req kernel.Payload) (kernel.Payload, error) {
	if _, err := x.Send(server, TagCall, req); err != nil {
		return kernel.Payload{}, fmt.Errorf("call %s: %w", server, err)
	}
	var held []kernel.Envelope
	for {
		env := x.Receive()
		if env.Tag == TagReply && env.From == server {
			x.Requeue(held...)
			return env.Payload, nil
		}
		held = append(held, env)
	}
}

// Cast sends req without waiting.
func Cast(x *kernel.Context, server kernel.ThreadID, req kernel.Payload) error {
	if _, err := x.Send(server, TagCast, req); err != nil {
		return fmt.Errorf("cast %s: %w", server, err)
	}
	return nil
}

// Stop asks the server to end. Which queued messages it handles first
// depends on the kernel's mailbox order.
func Stop(x *kernel.Context, server kernel.ThreadID) error {
	if _, err := x.Send(server, TagStop, kernel.Payload{}); err != nil {
		return fmt.Errorf("stop %s: %w", server, err)
	}
	return nil
}
