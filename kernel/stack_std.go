//go:build !tinygo

package kernel

import (
	"bytes"
	"runtime"
)

// maxPanicStack bounds the trace kept in PanicInfo.
const maxPanicStack = 8 << 10

// captureStack returns the calling goroutine's trace without its header
// line.
func captureStack() []byte {
	buf := make([]byte, maxPanicStack)
	buf = buf[:runtime.Stack(buf, false)]
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[i+1:]
	}
	return buf
}
