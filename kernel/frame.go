package kernel

const (
	// MinStackWords is the smallest stack a thread may be given.
	MinStackWords = 32
	// FrameWords is the size of the initial exception frame.
	FrameWords = 16

	xpsrThumb          = 0x01000000
	excReturnThreadPSP = 0xFFFFFFFD
)

// Frame is the Cortex-M0+ exception frame as laid out in memory from the
// saved stack pointer upwards: the software-saved registers first, then the
// hardware-stacked ones.
type Frame struct {
	R8, R9, R10, R11 uint32
	R4, R5, R6, R7   uint32
	R0, R1, R2, R3   uint32
	R12, LR, PC      uint32
	XPSR             uint32
}

// initFrame writes a fresh frame at the top of stack that returns to pc in
// thread mode on the process stack. It returns the saved stack pointer as a
// word index into stack.
func initFrame(stack []uint32, pc uint32) int {
	sp := len(stack) - FrameWords
	f := stack[sp:]
	for i := range f {
		f[i] = 0
	}
	f[15] = xpsrThumb
	f[14] = pc
	f[13] = excReturnThreadPSP
	return sp
}

// ReadFrame decodes the frame stored at sp.
func ReadFrame(stack []uint32, sp int) (Frame, bool) {
	if sp < 0 || sp+FrameWords > len(stack) {
		return Frame{}, false
	}
	w := stack[sp : sp+FrameWords]
	return Frame{
		R8: w[0], R9: w[1], R10: w[2], R11: w[3],
		R4: w[4], R5: w[5], R6: w[6], R7: w[7],
		R0: w[8], R1: w[9], R2: w[10], R3: w[11],
		R12: w[12], LR: w[13], PC: w[14],
		XPSR: w[15],
	}, true
}
