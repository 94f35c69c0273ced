//go:build tinygo && bootdebug

package app

import (
	"image/color"

	"alkyn/hal"
	"alkyn/internal/buildinfo"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// bootScreen shows the boot step on the panel, if there is one, and keeps
// the boot heartbeat running.
func bootScreen(h hal.HAL, step string) {
	bootDiagSetStep(step)
	bootDiagStart(h)

	disp := h.Display()
	if disp == nil || disp.Framebuffer() == nil {
		return
	}
	fb := disp.Framebuffer()
	fb.ClearRGB(0, 0, 0x20)
	d := panicDisplay{fb: fb}
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 4, 12, "Alkyn "+buildinfo.Short(), white)
	tinyfont.WriteLine(d, &proggy.TinySZ8pt7b, 4, 26, step, white)
	_ = fb.Present()
}
