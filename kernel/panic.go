package kernel

import (
	"sync"
	"sync/atomic"
)

// PanicInfo describes a thread panic or a fatal kernel halt. Thread is zero
// for kernel faults.
type PanicInfo struct {
	Thread ThreadID
	Name   string
	Value  any
	Stack  []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a panic has been reported.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler runs at most once, for the first panic, and must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		if info.Stack == nil {
			info.Stack = captureStack()
		}
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
