package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.MediaBasePath = t.TempDir()
	cfg.Paths.MediaBaseURL = "https://media.example.com/content"
	cfg.Paths.LogDir = t.TempDir()
	return &cfg
}

func fixedClock() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func TestOutputDir(t *testing.T) {
	got := OutputDir(42, fixedClock())
	if got != "2026/03/42" {
		t.Fatalf("OutputDir = %q, want 2026/03/42", got)
	}
}

func TestProvisionOutputDir(t *testing.T) {
	cfg := testConfig(t)
	p := NewProcessor(cfg, nil, nil,
		WithClock(fixedClock),
		WithDiskUsage(func(string) (uint64, uint64, error) { return 1000, 500, nil }))

	absolute, relative, err := p.provisionOutputDir(42)
	if err != nil {
		t.Fatalf("provisionOutputDir: %v", err)
	}
	if relative != "2026/03/42" {
		t.Fatalf("relative = %q", relative)
	}
	if !strings.HasSuffix(absolute, filepath.Join("2026", "03", "42")) {
		t.Fatalf("absolute = %q", absolute)
	}
	info, err := os.Stat(absolute)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestProvisionOutputDirRejectsLowDiskSpace(t *testing.T) {
	cfg := testConfig(t)
	p := NewProcessor(cfg, nil, nil,
		WithClock(fixedClock),
		WithDiskUsage(func(string) (uint64, uint64, error) { return 1000, 40, nil }))

	_, _, err := p.provisionOutputDir(42)
	if err == nil {
		t.Fatal("expected free space error")
	}
	if KindOf(err) != KindFilesystem {
		t.Fatalf("expected filesystem kind, got %s", KindOf(err))
	}
	if !strings.Contains(err.Error(), "insufficient disk space") {
		t.Fatalf("unexpected error: %v", err)
	}
}
