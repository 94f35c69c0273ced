//go:build !tinygo && cgo

package hal

import (
	"encoding/binary"
	"errors"

	"alkyn/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow shows the board's presented frames in a desktop window, scaled
// 2x. step runs once per frame; RunWindow returns when the window closes or
// step fails.
func RunWindow(h HAL, step func() error) error {
	hh, ok := hostOf(h)
	if !ok {
		return errors.New("window mode needs a host HAL")
	}
	fb := hh.fb
	w := &window{
		fb:   fb,
		step: step,
		raw:  make([]byte, len(fb.front)),
		rgba: make([]byte, fb.width*fb.height*4),
		img:  ebiten.NewImage(fb.width, fb.height),
	}
	ebiten.SetWindowTitle("Alkyn " + buildinfo.String())
	ebiten.SetWindowSize(fb.width*2, fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(w)
}

type window struct {
	fb   *hostFramebuffer
	step func() error
	raw  []byte
	rgba []byte
	img  *ebiten.Image
}

func (w *window) Update() error {
	if w.step == nil {
		return nil
	}
	return w.step()
}

func (w *window) Draw(screen *ebiten.Image) {
	w.fb.presented(w.raw)
	for i, j := 0, 0; i+1 < len(w.raw); i, j = i+2, j+4 {
		r, g, b := rgb888From565(binary.LittleEndian.Uint16(w.raw[i:]))
		w.rgba[j], w.rgba[j+1], w.rgba[j+2], w.rgba[j+3] = r, g, b, 0xFF
	}
	w.img.WritePixels(w.rgba)
	screen.DrawImage(w.img, nil)
}

func (w *window) Layout(int, int) (int, int) {
	return w.fb.width, w.fb.height
}
