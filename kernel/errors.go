package kernel

import "errors"

var (
	// ErrResourceExhausted: thread table full or no free spinlock.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrPermissionDenied: an unprivileged thread tried to spawn after boot.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidConfiguration: stack too small or bad kernel config.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTypeMismatch: an envelope was read as the wrong payload kind.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrDoubleInitialization: the tick was enabled twice.
	ErrDoubleInitialization = errors.New("double initialization")
	// ErrStaleHandle: the thread behind a handle is gone.
	ErrStaleHandle = errors.New("stale thread handle")
	// ErrHalted: the kernel hit a fatal condition and stopped.
	ErrHalted = errors.New("kernel halted")
)

// Error records the kernel operation that failed and why.
//
// Kind is one of the Err* sentinels; errors.Is matches against it.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	s := "kernel: " + e.Op + ": " + e.Kind.Error()
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

func (e *Error) Unwrap() error { return e.Kind }

func opError(op string, kind error, detail string) error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}
