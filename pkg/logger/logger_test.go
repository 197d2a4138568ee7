package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestInitAndLevelString(t *testing.T) {
	Init("debug")
	if got := LevelString(); got != "debug" {
		t.Fatalf("LevelString() = %q, want %q", got, "debug")
	}
	Init("WARN")
	if got := LevelString(); got != "warn" {
		t.Fatalf("LevelString() = %q, want %q", got, "warn")
	}
	Init("Error")
	if got := LevelString(); got != "error" {
		t.Fatalf("LevelString() = %q, want %q", got, "error")
	}
	Init("nonsense")
	if got := LevelString(); got != "info" {
		t.Fatalf("LevelString() = %q, want %q for unknown input", got, "info")
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	mu.Lock()
	orig := logger
	logger = log.New(&buf, "", 0)
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		logger = orig
		mu.Unlock()
		Init("info")
	})
	return &buf
}

func TestLevelFilteringAndPrintln(t *testing.T) {
	buf := captureOutput(t)

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg")
	Errorf("error-msg")

	out := buf.String()
	if strings.Contains(out, "debug-msg") {
		t.Fatalf("debug messages should be suppressed at warn level")
	}
	if strings.Contains(out, "info-msg") {
		t.Fatalf("info messages should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn-msg") {
		t.Fatalf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "error-msg") {
		t.Fatalf("error message missing: %q", out)
	}

	buf.Reset()
	Println("hello")
	if strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println should be suppressed at warn level")
	}

	Init("info")
	buf.Reset()
	Println("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println expected at info level, got: %q", buf.String())
	}
}

func TestNamedLoggerPrefixesComponent(t *testing.T) {
	buf := captureOutput(t)
	Init("debug")

	l := Named("listview")
	l.Debugf("snapshot applied: %d articles", 3)
	out := buf.String()
	if !strings.Contains(out, "[DEBUG] listview: snapshot applied: 3 articles") {
		t.Fatalf("unexpected output: %q", out)
	}

	Init("error")
	buf.Reset()
	l.Warnf("dropped")
	if buf.Len() != 0 {
		t.Fatalf("named logger should follow the global level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel(" Warning ") != LevelWarn {
		t.Fatalf("expected warn")
	}
	if ParseLevel("") != LevelInfo {
		t.Fatalf("expected info default")
	}
}
