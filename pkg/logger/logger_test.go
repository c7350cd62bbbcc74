package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// captureStdout redirects os.Stdout for the duration of f and returns
// everything written to it.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	var buf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&buf, r)
	}()

	f()
	w.Close()
	wg.Wait()
	r.Close()
	return buf.String()
}

func TestNewLoggerConsoleOutput(t *testing.T) {
	opts := DefaultOptions()
	opts.ConsoleLevel = DebugLevel
	opts.ColorConsole = false

	l, err := NewLogger(opts)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Sync()

	out := captureStdout(t, func() { l.Infof("hello console") })
	if !strings.Contains(out, "[INFO]") || !strings.Contains(out, "hello console") {
		t.Fatalf("got %q", out)
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	opts := DefaultOptions()
	opts.ConsoleOutput = false
	opts.FileOutput = true
	opts.FileLevel = InfoLevel
	opts.LogFilePath = path

	l, err := NewLogger(opts)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Infof("kept message")
	l.Debugf("dropped below FileLevel")
	l.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(content)
	if !strings.Contains(got, "kept message") {
		t.Fatalf("file missing message, got %q", got)
	}
	if strings.Contains(got, "dropped below FileLevel") {
		t.Fatalf("file should not contain a level below FileLevel, got %q", got)
	}
	if !strings.Contains(got, `"level":"INFO"`) {
		t.Fatalf("file entry missing JSON level field, got %q", got)
	}
}

func TestLoggerSuccessfIsColoredDistinctlyFromInfo(t *testing.T) {
	opts := DefaultOptions()
	opts.ColorConsole = true
	l, err := NewLogger(opts)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Sync()

	out := captureStdout(t, func() { l.Successf("shipped") })
	want := colorGreen + "[SUCCESS]" + colorReset
	if !strings.Contains(out, want) {
		t.Fatalf("got %q, want it to contain %q", out, want)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	opts := DefaultOptions()
	opts.ConsoleLevel = WarnLevel
	opts.ColorConsole = false

	l, err := NewLogger(opts)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Sync()

	out := captureStdout(t, func() {
		l.Debugf("debug_test")
		l.Infof("info_test")
		l.Successf("success_test")
		l.Warnf("warn_test")
		l.Errorf("error_test")
	})

	for _, dropped := range []string{"debug_test", "info_test", "success_test"} {
		if strings.Contains(out, dropped) {
			t.Errorf("output should not contain %q below WarnLevel, got %q", dropped, out)
		}
	}
	for _, kept := range []string{"warn_test", "error_test"} {
		if !strings.Contains(out, kept) {
			t.Errorf("output missing %q, got %q", kept, out)
		}
	}
}

func TestGlobalLoggerInitIsOnceOnly(t *testing.T) {
	originalGlobal, originalOnce := globalLogger, once
	defer func() { globalLogger, once = originalGlobal, originalOnce }()
	globalLogger, once = nil, sync.Once{}

	opts := DefaultOptions()
	opts.ColorConsole = false
	Init(opts)

	out := captureStdout(t, func() { Get().Infof("first init wins") })
	if !strings.Contains(out, "first init wins") {
		t.Fatalf("got %q", out)
	}

	secondOpts := DefaultOptions()
	secondOpts.ConsoleLevel = ErrorLevel
	Init(secondOpts) // no-op: Init only fires once

	out2 := captureStdout(t, func() { Get().Infof("should still appear: level unchanged") })
	if !strings.Contains(out2, "should still appear") {
		t.Fatal("a second Init call must not change the already-initialized global logger's level")
	}
}

func TestTeeFansOutToEveryLogger(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.log")
	pathB := filepath.Join(dir, "b.log")

	optsA := DefaultOptions()
	optsA.ConsoleOutput, optsA.FileOutput, optsA.FileLevel, optsA.LogFilePath = false, true, DebugLevel, pathA
	a, err := NewLogger(optsA)
	if err != nil {
		t.Fatalf("NewLogger a: %v", err)
	}

	optsB := optsA
	optsB.LogFilePath = pathB
	b, err := NewLogger(optsB)
	if err != nil {
		t.Fatalf("NewLogger b: %v", err)
	}

	Tee(a, b).Infof("fan out message")
	a.Sync()
	b.Sync()

	for _, p := range []string{pathA, pathB} {
		content, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", p, err)
		}
		if !strings.Contains(string(content), "fan out message") {
			t.Fatalf("%s missing the tee'd message, got %q", p, content)
		}
	}
}

func TestTeeReturnsSoleLoggerUnwrapped(t *testing.T) {
	l, err := NewLogger(DefaultOptions())
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if Tee(l) != l {
		t.Fatal("Tee with exactly one logger should return it unwrapped")
	}
}
