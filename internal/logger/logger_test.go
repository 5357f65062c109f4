package logger

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func resetAfter(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

func TestSetVerbose(t *testing.T) {
	resetAfter(t)

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false after SetVerbose(false)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := resetAfter(t)
	SetVerbose(true)

	Debug("test message %s", "arg")

	if got := buf.String(); got != "[DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	buf := resetAfter(t)
	SetVerbose(false)

	Debug("test message")

	if buf.Len() > 0 {
		t.Error("expected no output when verbose is disabled")
	}
}

func TestSection(t *testing.T) {
	buf := resetAfter(t)
	SetVerbose(true)

	Section("Search Execution")

	if got := buf.String(); got != "\n=== Search Execution ===\n" {
		t.Errorf("unexpected section output: %q", got)
	}
}

func TestInfoAndWarn(t *testing.T) {
	buf := resetAfter(t)
	SetVerbose(true)

	Info("info message %d", 42)
	Warn("warning message")

	want := "[INFO] info message 42\n[WARN] warning message\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestTiming(t *testing.T) {
	buf := resetAfter(t)
	SetVerbose(true)

	Timing("fusion", 1500*time.Microsecond)

	if got := buf.String(); got != "[TIME] fusion     1.5ms\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	resetAfter(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			SetVerbose(true)
			Debug("concurrent %d", n)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
