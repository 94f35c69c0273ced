//go:build tinygo

package kernel

import "unsafe"

// A TinyGo func value is a {context, code} pair.
type funcValue struct {
	context unsafe.Pointer
	code    uintptr
}

func entryPC(fn func(*Context)) uint32 {
	return uint32((*funcValue)(unsafe.Pointer(&fn)).code) | 1
}
