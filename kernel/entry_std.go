//go:build !tinygo

package kernel

import "reflect"

// entryPC is the code address recorded in a thread's initial frame.
func entryPC(fn func(*Context)) uint32 {
	return uint32(reflect.ValueOf(fn).Pointer())
}
