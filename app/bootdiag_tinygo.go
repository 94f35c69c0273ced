//go:build tinygo && bootdebug

package app

import (
	"machine"
	"strconv"
	"sync/atomic"
	"time"

	"alkyn/hal"
)

// bootStartStep ends the boot heartbeat: from there on the kernel logs.
const bootStartStep = "kernel: start"

var (
	bootStep    atomic.Value // string
	bootRunning atomic.Bool
)

func bootDiagSetStep(msg string) {
	bootStep.Store(msg)
}

// bootDiagStart reports the current boot step with the timer's uptime on
// the UART and on USB CDC four times a second until the kernel starts, so
// a hang before the first kernel line still names the step that hung.
func bootDiagStart(h hal.HAL) {
	if !bootRunning.CompareAndSwap(false, true) {
		return
	}
	l, tm := h.Logger(), h.Timer()
	go func() {
		for {
			step, _ := bootStep.Load().(string)
			line := "boot: " + strconv.FormatUint(uint64(tm.Counter()), 10) + "us " + step
			l.WriteLineString(line)
			if usb := machine.USBCDC; usb != nil {
				_, _ = usb.Write([]byte(line + "\r\n"))
			}
			if step == bootStartStep {
				return
			}
			time.Sleep(250 * time.Millisecond)
		}
	}()
}
