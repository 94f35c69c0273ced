//go:build !tinygo

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alkyn/diag"
	"alkyn/internal/klog"
)

func parse(t *testing.T, s string) klog.Line {
	t.Helper()
	ln, ok := klog.Parse(s)
	if !ok {
		t.Fatalf("Parse(%q) failed", s)
	}
	return ln
}

func TestSwitchTarget(t *testing.T) {
	tests := []struct {
		msg  string
		name string
		ok   bool
	}{
		{"sched: switch to worker (3.1)", "worker", true},
		{"sched: switch to idle0 (0.1)", "idle0", true},
		{"tick: enabled, period 1000", "", false},
	}
	for _, tt := range tests {
		name, ok := switchTarget(tt.msg)
		if name != tt.name || ok != tt.ok {
			t.Errorf("switchTarget(%q) = %q, %v; want %q, %v", tt.msg, name, ok, tt.name, tt.ok)
		}
	}
}

func TestTimelineSpans(t *testing.T) {
	var tl timeline
	for _, s := range []string{
		"0:100us trace sched: switch to a (2.1)",
		"1:150us trace sched: switch to idle1 (1.1)",
		"0:300us trace sched: switch to b (3.1)",
		"0:350us info  thr: created c (4.1)",
		"1:400us trace sched: switch to c (4.1)",
		"0:500us debug tick: 5",
	} {
		tl.add(parse(t, s))
	}
	tl.finish()

	want := []span{
		{0, "a", 100, 300},
		{1, "idle1", 150, 400},
		{0, "b", 300, 500},
		{1, "c", 400, 500},
	}
	if len(tl.spans) != len(want) {
		t.Fatalf("spans = %+v, want %+v", tl.spans, want)
	}
	for i := range want {
		if tl.spans[i] != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, tl.spans[i], want[i])
		}
	}
}

func TestTimelineRender(t *testing.T) {
	var tl timeline
	if err := tl.render(filepath.Join(t.TempDir(), "empty.png"), 400); err == nil {
		t.Fatal("render with no spans succeeded")
	}
	tl.add(parse(t, "0:0us trace sched: switch to a (2.1)"))
	tl.add(parse(t, "0:1000us trace sched: switch to b (3.1)"))
	tl.finish()
	path := filepath.Join(t.TempDir(), "tl.png")
	if err := tl.render(path, 400); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
}

func TestLineSourceSkipsDamagedFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := diag.NewEncoder(&buf)
	enc.Encode([]byte("0:1us info  one"))
	start := buf.Len()
	enc.Encode([]byte("0:2us info  two"))
	buf.Bytes()[start+4] ^= 0xFF
	enc.Encode([]byte("0:3us info  three"))

	next := lineSource(&buf, false)
	var got []string
	bad := 0
	for {
		s, err := next()
		if err != nil {
			if strings.Contains(err.Error(), "checksum") {
				bad++
				continue
			}
			break
		}
		got = append(got, s)
	}
	if bad != 1 || strings.Join(got, "|") != "0:1us info  one|0:3us info  three" {
		t.Fatalf("got %q with %d bad frames", got, bad)
	}
}
