//go:build !tinygo

package main

import (
	"fmt"
	"strings"

	"alkyn/diag"
	"alkyn/hal"
	"alkyn/internal/klog"

	"github.com/fogleman/gg"
)

// span is one stretch of a thread running on a core.
type span struct {
	core       int
	thread     string
	start, end uint64
}

// timeline collects spans from "sched: switch to" trace lines.
type timeline struct {
	spans []span
	open  [hal.NumCores]int
	seen  [hal.NumCores]bool
	first uint64
	last  uint64
	any   bool
}

// switchTarget returns the thread name from a switch trace message.
func switchTarget(msg string) (string, bool) {
	rest, ok := strings.CutPrefix(msg, "sched: switch to ")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, " (")
	return name, name != ""
}

func (tl *timeline) add(ln klog.Line) {
	if ln.Core < 0 || ln.Core >= hal.NumCores {
		return
	}
	if !tl.any {
		tl.first, tl.any = ln.Micro, true
	}
	if ln.Micro > tl.last {
		tl.last = ln.Micro
	}
	name, ok := switchTarget(ln.Msg)
	if !ok {
		return
	}
	if tl.seen[ln.Core] {
		tl.spans[tl.open[ln.Core]].end = ln.Micro
	}
	tl.spans = append(tl.spans, span{core: ln.Core, thread: name, start: ln.Micro})
	tl.open[ln.Core] = len(tl.spans) - 1
	tl.seen[ln.Core] = true
}

// finish closes the spans still running at the last timestamp seen.
func (tl *timeline) finish() {
	for core, ok := range tl.seen {
		if ok {
			tl.spans[tl.open[core]].end = tl.last
			tl.seen[core] = false
		}
	}
}

// threadColor gives each thread name a stable color.
func threadColor(name string) (r, g, b float64) {
	if strings.HasPrefix(name, "idle") {
		return 0.3, 0.3, 0.3
	}
	c := diag.Checksum([]byte(name))
	return 0.35 + float64(c>>11&0x1F)/48, 0.35 + float64(c>>5&0x3F)/96, 0.35 + float64(c&0x1F)/48
}

const (
	laneHeight = 40
	margin     = 20
)

func (tl *timeline) render(path string, width int) error {
	if len(tl.spans) == 0 {
		return fmt.Errorf("timeline: no switch lines (log level must be trace)")
	}
	if width < 2*margin+1 {
		width = 2*margin + 1
	}
	height := 2*margin + hal.NumCores*(laneHeight+margin)
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dur := float64(tl.last - tl.first)
	if dur == 0 {
		dur = 1
	}
	scale := float64(width-2*margin) / dur
	for core := 0; core < hal.NumCores; core++ {
		dc.SetRGB(0, 0, 0)
		dc.DrawString(fmt.Sprintf("core%d", core), margin, float64(laneY(core))-4)
	}
	for _, s := range tl.spans {
		x0 := margin + float64(s.start-tl.first)*scale
		w := float64(s.end-s.start) * scale
		if w < 1 {
			w = 1
		}
		r, g, b := threadColor(s.thread)
		dc.SetRGB(r, g, b)
		dc.DrawRectangle(x0, float64(laneY(s.core)), w, laneHeight)
		dc.Fill()
		if w > 40 {
			dc.SetRGB(0, 0, 0)
			dc.DrawString(s.thread, x0+2, float64(laneY(s.core))+laneHeight/2)
		}
	}
	return dc.SavePNG(path)
}

func laneY(core int) int {
	return margin + core*(laneHeight+margin) + margin/2
}
