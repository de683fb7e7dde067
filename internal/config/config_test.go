package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Redis.QueueName != "video_compression_queue" {
		t.Fatalf("unexpected default queue name %q", cfg.Redis.QueueName)
	}
	if cfg.Redis.MaxRetries != 3 {
		t.Fatalf("unexpected default max retries %d", cfg.Redis.MaxRetries)
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[redis]
host = "queue-host"
port = 6380

[worker]
count = 2

[paths]
media_base_path = "` + dir + `/media"
log_dir = "` + dir + `/logs"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, got exists=%v path=%q", exists, resolved)
	}
	if cfg.Redis.Host != "queue-host" || cfg.Redis.Port != 6380 {
		t.Fatalf("redis overrides not applied: %+v", cfg.Redis)
	}
	if cfg.Worker.Count != 2 {
		t.Fatalf("worker count override not applied: %d", cfg.Worker.Count)
	}
	if cfg.Worker.ClaimTimeout != 5 {
		t.Fatalf("expected untouched default claim timeout, got %d", cfg.Worker.ClaimTimeout)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "override-host")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("WEBHOOK_SECRET", "env-secret")
	t.Setenv("WORKER_ID", "worker-42")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Host != "override-host" || cfg.Redis.Port != 7000 {
		t.Fatalf("environment overrides not applied: %+v", cfg.Redis)
	}
	if cfg.Webhook.Secret != "env-secret" {
		t.Fatalf("webhook secret override not applied: %q", cfg.Webhook.Secret)
	}
	if cfg.Worker.ID != "worker-42" {
		t.Fatalf("worker id override not applied: %q", cfg.Worker.ID)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty queue name", func(c *config.Config) { c.Redis.QueueName = " " }, "queue_name"},
		{"bad port", func(c *config.Config) { c.Redis.Port = 0 }, "redis.port"},
		{"zero workers", func(c *config.Config) { c.Worker.Count = 0 }, "worker.count"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero segment", func(c *config.Config) { c.HLS.SegmentSeconds = 0 }, "segment_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Redis.QueueName != "video_compression_queue" {
		t.Fatalf("unexpected queue name from sample: %q", cfg.Redis.QueueName)
	}
}
