package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGatesLowerSeverities(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warn)
	l.Debugf("ignored %d", 1)
	l.Infof("also ignored")
	l.Warnf("seen %s", "here")
	l.Errorf("also seen")

	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Fatalf("expected debug/info suppressed, got %q", out)
	}
	if !strings.Contains(out, "warn: seen here") || !strings.Contains(out, "error: also seen") {
		t.Fatalf("expected warn/error lines, got %q", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("bogus") != Info {
		t.Fatal("expected unrecognized level to default to Info")
	}
	if ParseLevel("debug") != Debug || ParseLevel("error") != Error {
		t.Fatal("expected recognized levels to round-trip")
	}
}
