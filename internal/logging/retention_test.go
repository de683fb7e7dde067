package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/logging"
)

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "worker.log")
	freshLog := filepath.Join(dir, "fresh.log")
	excluded := filepath.Join(dir, "current.log")
	other := filepath.Join(dir, "notes.txt")

	for _, path := range []string{oldLog, freshLog, excluded, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -60)
	for _, path := range []string{oldLog, excluded, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{excluded},
	})

	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatal("expired log should be removed")
	}
	for _, path := range []string{freshLog, excluded, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should survive the sweep: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -365)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if removed := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir, Pattern: "*.log"}); removed != 0 {
		t.Fatalf("retention disabled, expected 0 removals, got %d", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should remain: %v", err)
	}
}
