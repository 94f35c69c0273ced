package kernel

import "testing"

func TestInitFrameLayout(t *testing.T) {
	stack := make([]uint32, 40)
	for i := range stack {
		stack[i] = 0xDEADBEEF
	}
	sp := initFrame(stack, 0x10000201)
	if sp != 24 {
		t.Fatalf("sp = %d, want 24", sp)
	}
	f, ok := ReadFrame(stack, sp)
	if !ok {
		t.Fatalf("ReadFrame() ok = false")
	}
	want := Frame{XPSR: 0x01000000, PC: 0x10000201, LR: 0xFFFFFFFD}
	if f != want {
		t.Fatalf("frame = %+v, want %+v", f, want)
	}
	if stack[23] != 0xDEADBEEF {
		t.Fatalf("initFrame wrote below the frame")
	}
}

func TestReadFrameBounds(t *testing.T) {
	stack := make([]uint32, MinStackWords)
	if _, ok := ReadFrame(stack, MinStackWords-FrameWords+1); ok {
		t.Fatalf("ReadFrame() past the end ok = true")
	}
	if _, ok := ReadFrame(stack, -1); ok {
		t.Fatalf("ReadFrame(-1) ok = true")
	}
}

func TestCreateThreadWritesFrame(t *testing.T) {
	k, _ := newTestKernel(t, Config{})
	st := make([]uint32, 48)
	id, err := k.CreateThread("f", st, noop)
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	info, _ := k.Snapshot().Thread(id)
	if info.SP != 48-FrameWords || info.StackWords != 48 {
		t.Fatalf("SP = %d, StackWords = %d, want %d and 48", info.SP, info.StackWords, 48-FrameWords)
	}
	f, _ := ReadFrame(st, info.SP)
	if f.XPSR != xpsrThumb || f.LR != excReturnThreadPSP || f.PC != entryPC(noop) {
		t.Fatalf("frame = %+v", f)
	}
}
