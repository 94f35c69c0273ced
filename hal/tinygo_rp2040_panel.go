//go:build tinygo && rp2040 && picocalc

package hal

import (
	"errors"
	"machine"
	"time"
)

const panelSize = 320

// panelFramebuffer is an RGB565 little-endian buffer mirrored to an
// ILI9488 over SPI1 (PicoCalc wiring: SCK GP10, SDO GP11, SDI GP12,
// CS GP13, DC GP14, RST GP15).
type panelFramebuffer struct {
	buf []byte
	lcd *ili9488
}

type panelDisplay struct{ fb *panelFramebuffer }

func (d panelDisplay) Framebuffer() Framebuffer { return d.fb }

// boardDisplay brings up the panel. The console is optional, so a panel
// that fails to initialise leaves the board headless.
func boardDisplay() Display {
	lcd, err := initILI9488()
	if err != nil {
		return nil
	}
	return panelDisplay{fb: &panelFramebuffer{buf: make([]byte, panelSize*panelSize*2), lcd: lcd}}
}

func (f *panelFramebuffer) Width() int          { return panelSize }
func (f *panelFramebuffer) Height() int         { return panelSize }
func (f *panelFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *panelFramebuffer) StrideBytes() int    { return panelSize * 2 }
func (f *panelFramebuffer) Buffer() []byte      { return f.buf }

func (f *panelFramebuffer) ClearRGB(r, g, b uint8) {
	p := rgb565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

func (f *panelFramebuffer) Present() error {
	return f.lcd.blit(f.buf)
}

type ili9488 struct {
	spi         *machine.SPI
	cs, dc, rst machine.Pin
	chunk       []byte
}

func initILI9488() (*ili9488, error) {
	if machine.SPI1 == nil {
		return nil, errors.New("hal: SPI1 unavailable")
	}
	if err := machine.SPI1.Configure(machine.SPIConfig{
		SCK:       machine.GP10,
		SDO:       machine.GP11,
		SDI:       machine.GP12,
		Frequency: 40_000_000,
	}); err != nil {
		return nil, err
	}
	d := &ili9488{
		spi:   machine.SPI1,
		cs:    machine.GP13,
		dc:    machine.GP14,
		rst:   machine.GP15,
		chunk: make([]byte, 2048),
	}
	for _, p := range []machine.Pin{d.cs, d.dc, d.rst} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}

	d.rst.Low()
	time.Sleep(64 * time.Millisecond)
	d.rst.High()
	time.Sleep(140 * time.Millisecond)

	d.cmd(0xC0, 0x17, 0x15)             // power control 1
	d.cmd(0xC1, 0x41)                   // power control 2
	d.cmd(0xC5, 0x00, 0x12, 0x80, 0x40) // VCOM
	d.cmd(0x3A, 0x55)                   // 16bpp
	d.cmd(0xB1, 0xA0, 0x11)             // frame rate
	d.cmd(0xB6, 0x02, 0x22, 0x27)       // 320 lines
	d.cmd(0x21)                         // inversion on
	d.cmd(0x36, 0x40|0x04|0x08)         // MX, MH, BGR
	d.cmd(0x11)                         // sleep out
	time.Sleep(120 * time.Millisecond)
	d.cmd(0x29) // display on
	return d, nil
}

func (d *ili9488) cmd(c byte, data ...byte) {
	d.cs.Low()
	d.dc.Low()
	d.spi.Tx([]byte{c}, nil)
	d.dc.High()
	if len(data) > 0 {
		d.spi.Tx(data, nil)
	}
	d.cs.High()
}

// blit sends a full frame, swapping each pixel to the panel's big-endian
// order.
func (d *ili9488) blit(buf []byte) error {
	const n = panelSize * panelSize * 2
	if len(buf) < n {
		return errors.New("hal: short framebuffer")
	}
	const last = panelSize - 1
	d.cmd(0x2A, 0, 0, last>>8, last&0xFF)
	d.cmd(0x2B, 0, 0, last>>8, last&0xFF)
	d.cmd(0x2C)

	d.cs.Low()
	d.dc.High()
	for off := 0; off < n; off += len(d.chunk) {
		m := min(len(d.chunk), n-off)
		for i := 0; i < m; i += 2 {
			d.chunk[i], d.chunk[i+1] = buf[off+i+1], buf[off+i]
		}
		d.spi.Tx(d.chunk[:m], nil)
	}
	d.cs.High()
	return nil
}
