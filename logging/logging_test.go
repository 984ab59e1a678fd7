package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// failingWriter is a helper for testing error propagation.
type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestMonitorMode(t *testing.T) {
	if err := Init(Options{Buffer: true, Level: "DEBUG", Format: "text"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("Initial log")

	var pane bytes.Buffer
	if err := SetOutput(&pane); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}
	if !strings.Contains(pane.String(), "Initial log") {
		t.Errorf("Expected initial log to be flushed to the monitor, got: %s", pane.String())
	}

	slog.Info("Live log")
	if !strings.Contains(pane.String(), "Live log") {
		t.Errorf("Expected live log to be written to the monitor, got: %s", pane.String())
	}

	BufferOutput()
	slog.Info("Buffered log")
	if strings.Contains(pane.String(), "Buffered log") {
		t.Errorf("Expected log to be buffered, but it reached the monitor: %s", pane.String())
	}

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSessionAttribute(t *testing.T) {
	var out bytes.Buffer
	if err := Init(Options{Level: "INFO", Format: "text", Target: &out}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	if _, err := uuid.Parse(Session()); err != nil {
		t.Fatalf("Session is not a uuid: %q", Session())
	}
	slog.Info("Scheduler: sent", "fixture", "A")
	if !strings.Contains(out.String(), "session="+Session()) {
		t.Errorf("Expected session attribute, got: %s", out.String())
	}

	slog.Debug("hidden")
	if strings.Contains(out.String(), "hidden") {
		t.Errorf("DEBUG must be filtered at INFO level, got: %s", out.String())
	}
}

func TestFileLogging(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.log")

	var out bytes.Buffer
	if err := Init(Options{Level: "INFO", Format: "json", File: file, Target: &out}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	slog.Info("file log", "key", "value")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"file log"`) || !strings.Contains(string(content), `"key":"value"`) {
		t.Errorf("Expected JSON log in file, got: %s", string(content))
	}
	if !strings.Contains(out.String(), `"msg":"file log"`) {
		t.Errorf("Expected log to be teed to the target, got: %s", out.String())
	}
}

func TestInit_BadFile(t *testing.T) {
	err := Init(Options{File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Fatal("Expected an error for an unwritable log file")
	}
}

func TestStderrFallback(t *testing.T) {
	if err := Init(Options{Buffer: true, Level: "DEBUG", Format: "text"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("Shutdown log")

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	var wg sync.WaitGroup
	wg.Add(1)
	var capturedOutput string
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		n, _ := r.Read(buf)
		capturedOutput = string(buf[:n])
	}()

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	w.Close()
	wg.Wait()
	os.Stderr = oldStderr

	if !strings.Contains(capturedOutput, "Shutdown log") {
		t.Errorf("Expected shutdown log on stderr, got: %s", capturedOutput)
	}
}

func TestWriteErrorIsReported(t *testing.T) {
	if err := Init(Options{Target: &failingWriter{}}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	if _, err := writer.Write([]byte("x")); err == nil {
		t.Error("Expected the target's error to be returned")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"LOUD":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
