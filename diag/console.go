package diag

import (
	"fmt"

	"alkyn/hal"
	"alkyn/kernel"

	"github.com/inhies/go-bytesize"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// Console draws kernel snapshots as a ps-style table on a framebuffer.
type Console struct {
	fb   hal.Framebuffer
	d    *fbDisplay
	term *tinyterm.Terminal
}

// NewConsole returns nil if fb is nil.
func NewConsole(fb hal.Framebuffer) *Console {
	if fb == nil {
		return nil
	}
	c := &Console{fb: fb, d: &fbDisplay{fb: fb}}
	c.reset()
	return c
}

func (c *Console) reset() {
	c.fb.ClearRGB(0, 0, 0)
	c.term = tinyterm.NewTerminal(c.d)
	c.term.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
}

// Render replaces the screen with s and presents it.
func (c *Console) Render(s kernel.Snapshot) error {
	if c == nil {
		return nil
	}
	c.reset()
	for _, line := range Table(s) {
		fmt.Fprintf(c.term, "%s\r\n", line)
	}
	c.term.Display()
	return nil
}

// Table formats s as text lines: a header with the tick count and each
// core's running thread, then one row per thread.
func Table(s kernel.Snapshot) []string {
	lines := []string{
		fmt.Sprintf("ticks %d  counter %dus", s.Ticks, s.Counter),
	}
	for i, c := range s.Cores {
		lines = append(lines, fmt.Sprintf("core%d %s -> %s", i, c.Current, c.Next))
	}
	lines = append(lines, fmt.Sprintf("%-6s %-10s %3s %-11s %-5s %4s %3s %9s",
		"ID", "NAME", "PRI", "STATUS", "AFF", "CORE", "MBX", "STACK"))
	for _, t := range s.Threads {
		core := "-"
		if t.Core >= 0 {
			core = fmt.Sprint(t.Core)
		}
		name := t.Name
		if t.Privileged {
			name += "*"
		}
		lines = append(lines, fmt.Sprintf("%-6s %-10s %3d %-11s %-5s %4s %3d %9s",
			t.ID, name, t.Priority, t.Status, t.Affinity, core, t.Mailbox, StackSize(t.StackWords)))
	}
	return lines
}

// StackSize formats a stack length given in 32-bit words.
func StackSize(words int) string {
	return bytesize.New(float64(words * 4)).String()
}
