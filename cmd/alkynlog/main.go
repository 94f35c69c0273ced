//go:build !tinygo

// Command alkynlog reads framed kernel log lines from a serial port or a
// capture file, prints them and optionally renders a scheduling timeline.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"alkyn/diag"
	"alkyn/internal/klog"

	"github.com/gofrs/flock"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.bug.st/serial"
)

type options struct {
	port    string
	baud    int
	in      string
	raw     bool
	core    int
	level   string
	png     string
	width   int
	noColor bool
}

func main() {
	var o options
	flag.StringVar(&o.port, "port", "", "Serial port to read from.")
	flag.IntVar(&o.baud, "baud", 115200, "Serial baud rate.")
	flag.StringVar(&o.in, "in", "", "Capture file to read (written by -diag-out).")
	flag.BoolVar(&o.raw, "raw", false, "Input is plain text lines, not frames.")
	flag.IntVar(&o.core, "core", -1, "Only show lines from this core (-1 = both).")
	flag.StringVar(&o.level, "level", "trace", "Minimum level to show.")
	flag.StringVar(&o.png, "png", "", "Write a scheduling timeline PNG here.")
	flag.IntVar(&o.width, "width", 1200, "Timeline width in pixels.")
	flag.BoolVar(&o.noColor, "no-color", false, "Disable colored output.")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "alkynlog:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	if (o.port == "") == (o.in == "") {
		return errors.New("exactly one of -port and -in is required")
	}
	minLevel, err := klog.ParseLevel(o.level)
	if err != nil {
		return err
	}

	var r io.ReadCloser
	if o.port != "" {
		lock := flock.New(filepath.Join(os.TempDir(), "alkynlog-"+filepath.Base(o.port)+".lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("lock %s: %w", o.port, err)
		}
		if !ok {
			return fmt.Errorf("%s is in use by another alkynlog", o.port)
		}
		defer lock.Unlock()
		p, err := serial.Open(o.port, &serial.Mode{BaudRate: o.baud})
		if err != nil {
			return fmt.Errorf("open %s: %w", o.port, err)
		}
		r = p
	} else {
		f, err := os.Open(o.in)
		if err != nil {
			return err
		}
		r = f
	}
	defer r.Close()

	out := colorable.NewColorableStdout()
	color := !o.noColor && isatty.IsTerminal(os.Stdout.Fd())
	p := &printer{w: out, color: color, core: o.core, min: minLevel}

	var tl timeline
	next := lineSource(r, o.raw)
	bad := 0
	for {
		s, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, diag.ErrBadCRC) || errors.Is(err, diag.ErrTooLarge) {
			bad++
			continue
		}
		if err != nil {
			return err
		}
		ln, ok := klog.Parse(s)
		if !ok {
			p.foreign(s)
			continue
		}
		tl.add(ln)
		p.print(ln)
	}
	if bad > 0 {
		fmt.Fprintf(os.Stderr, "alkynlog: skipped %d damaged frames\n", bad)
	}
	if o.png != "" {
		tl.finish()
		return tl.render(o.png, o.width)
	}
	return nil
}

// lineSource returns a reader of log lines, framed or plain.
func lineSource(r io.Reader, raw bool) func() (string, error) {
	if raw {
		sc := bufio.NewScanner(r)
		return func() (string, error) {
			if sc.Scan() {
				return sc.Text(), nil
			}
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
	}
	dec := diag.NewDecoder(r)
	return func() (string, error) {
		p, err := dec.Decode()
		return string(p), err
	}
}

type printer struct {
	w     io.Writer
	color bool
	core  int
	min   klog.Level
}

var levelColors = map[klog.Level]string{
	klog.LevelTrace: "\x1b[90m",
	klog.LevelDebug: "\x1b[36m",
	klog.LevelWarn:  "\x1b[33m",
	klog.LevelError: "\x1b[31m",
}

func (p *printer) print(ln klog.Line) {
	if p.core >= 0 && ln.Core != p.core {
		return
	}
	if ln.Level < p.min {
		return
	}
	text := fmt.Sprintf("%d:%dus %-5s %s", ln.Core, ln.Micro, ln.Level, ln.Msg)
	if c, ok := levelColors[ln.Level]; ok && p.color {
		text = c + text + "\x1b[0m"
	}
	fmt.Fprintln(p.w, text)
}

func (p *printer) foreign(s string) {
	if p.core < 0 {
		fmt.Fprintln(p.w, s)
	}
}
