package diag

import "alkyn/hal"

type teeLogger []hal.Logger

// Tee returns a logger that writes each line to all of ls. Nil entries are
// skipped.
func Tee(ls ...hal.Logger) hal.Logger {
	var t teeLogger
	for _, l := range ls {
		if l != nil {
			t = append(t, l)
		}
	}
	return t
}

func (t teeLogger) WriteLineString(s string) {
	for _, l := range t {
		l.WriteLineString(s)
	}
}

func (t teeLogger) WriteLineBytes(b []byte) {
	for _, l := range t {
		l.WriteLineBytes(b)
	}
}
