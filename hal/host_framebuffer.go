//go:build !tinygo

package hal

import (
	"encoding/binary"
	"sync"
)

// hostFramebuffer is double buffered: threads draw into back without
// locking, Present publishes it, and the window only reads front.
type hostFramebuffer struct {
	width, height int
	back          []byte

	mu    sync.Mutex
	front []byte
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	n := width * height * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		back:   make([]byte, n),
		front:  make([]byte, n),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.width * 2 }
func (f *hostFramebuffer) Buffer() []byte      { return f.back }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	p := rgb565(r, g, b)
	for i := 0; i+1 < len(f.back); i += 2 {
		binary.LittleEndian.PutUint16(f.back[i:], p)
	}
}

func (f *hostFramebuffer) Present() error {
	f.mu.Lock()
	copy(f.front, f.back)
	f.mu.Unlock()
	return nil
}

// presented copies the last presented frame into dst.
func (f *hostFramebuffer) presented(dst []byte) {
	f.mu.Lock()
	copy(dst, f.front)
	f.mu.Unlock()
}
