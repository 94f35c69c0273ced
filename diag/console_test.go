package diag

import (
	"strings"
	"testing"

	"alkyn/hal"
	"alkyn/kernel"
)

func testSnapshot() kernel.Snapshot {
	return kernel.Snapshot{
		Ticks:   12,
		Counter: 12000,
		Threads: []kernel.ThreadInfo{
			{Name: "idle0", Idle: true, Core: 0, StackWords: 64},
			{Name: "monitor", Priority: 3, Privileged: true, Core: -1, Status: kernel.StatusSleeping, StackWords: 256},
		},
	}
}

func TestTable(t *testing.T) {
	lines := Table(testSnapshot())
	if len(lines) != 6 {
		t.Fatalf("len(Table()) = %d, want 6: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "ticks 12") {
		t.Fatalf("header = %q", lines[0])
	}
	row := lines[5]
	for _, want := range []string{"monitor*", "sleeping", StackSize(256)} {
		if !strings.Contains(row, want) {
			t.Fatalf("row %q does not contain %q", row, want)
		}
	}
}

func TestStackSize(t *testing.T) {
	if got := StackSize(32); !strings.Contains(got, "128") {
		t.Fatalf("StackSize(32) = %q, want 128 bytes", got)
	}
}

func TestConsoleRenderDraws(t *testing.T) {
	sim := hal.NewSimulated(hal.SimConfig{Width: 160, Height: 120})
	fb := sim.Display().Framebuffer()
	c := NewConsole(fb)
	if err := c.Render(testSnapshot()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	lit := 0
	for _, b := range fb.Buffer() {
		if b != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatalf("Render() left the screen blank")
	}
}

func TestNilConsole(t *testing.T) {
	var c *Console
	if NewConsole(nil) != nil {
		t.Fatalf("NewConsole(nil) != nil")
	}
	if err := c.Render(testSnapshot()); err != nil {
		t.Fatalf("nil Render() error = %v", err)
	}
}
