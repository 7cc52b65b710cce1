package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()

	dir := t.TempDir()
	l, err := NewLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestNewLogger_CreatesFiles(t *testing.T) {
	_, dir := newTestLogger(t)

	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(t.TempDir(), "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestLogger_LevelsGoToTheirFiles(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Info("saved %s", "1700000000_track.jpg")
	l.Warning("queue is %d%% full", 90)
	l.Error("inference failed: %v", "boom")

	info := readLog(t, dir, InfoFile)
	if !strings.Contains(info, "saved 1700000000_track.jpg") {
		t.Errorf("info log missing entry: %q", info)
	}
	if strings.Contains(info, "boom") {
		t.Errorf("info log should not contain error entries: %q", info)
	}

	if warning := readLog(t, dir, WarningFile); !strings.Contains(warning, "queue is 90% full") {
		t.Errorf("warning log missing entry: %q", warning)
	}
	if errLog := readLog(t, dir, ErrorFile); !strings.Contains(errLog, "inference failed: boom") {
		t.Errorf("error log missing entry: %q", errLog)
	}
}

func TestLogger_DebugSuppressedAtInfo(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Debug("hidden detail")

	if info := readLog(t, dir, InfoFile); strings.Contains(info, "hidden detail") {
		t.Errorf("debug entry should not be written: %q", info)
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Warning("first warning")
	if err := l.CleanLogs(WarningFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	if warning := readLog(t, dir, WarningFile); warning != "" {
		t.Errorf("expected empty warning log, got %q", warning)
	}

	if err := l.CleanLogs("other.log"); err == nil {
		t.Error("expected error for unknown log file")
	}
}
