//go:build !tinygo

package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/lmittmann/tint"
)

// setFlags overrides the command line for one test.
func setFlags(t *testing.T, leds, n, skip int, txt string) {
	t.Helper()
	oldLEDs, oldFrames, oldSkip, oldText := numLEDs, frames, skipRefills, text
	numLEDs, frames, skipRefills, text = leds, n, skip, txt
	t.Cleanup(func() {
		numLEDs, frames, skipRefills, text = oldLEDs, oldFrames, oldSkip, oldText
	})
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(tint.NewHandler(buf, &tint.Options{
		Level:   slog.LevelDebug,
		NoColor: true,
	}))
}

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		name     string
		leds     int
		skip     int
		text     string
		underrun bool
	}{
		{name: "clean", leds: 20},
		{name: "starved first frame", leds: 20, skip: 100, underrun: true},
		{name: "late refills", leds: 40, skip: 2, underrun: true},
		{name: "text panel", leds: 64, text: "Hi"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			setFlags(t, tc.leds, 3, tc.skip, tc.text)
			var buf bytes.Buffer
			if err := run(context.Background(), testLogger(&buf)); err != nil {
				t.Fatalf("run: %v\n%s", err, buf.String())
			}
			out := buf.String()
			if got := strings.Contains(out, "refill underrun"); got != tc.underrun {
				t.Errorf("underrun logged = %v, want %v\n%s", got, tc.underrun, out)
			}
			// Frames after the first are verified either way.
			if n := strings.Count(out, "frame sent"); n < 2 {
				t.Errorf("%d frames verified, want at least 2\n%s", n, out)
			}
		})
	}
}

func TestRunBadOrder(t *testing.T) {
	old := orderName
	orderName = "RRG"
	t.Cleanup(func() { orderName = old })
	var buf bytes.Buffer
	if err := run(context.Background(), testLogger(&buf)); err == nil {
		t.Fatal("run accepted an invalid channel order")
	}
}
