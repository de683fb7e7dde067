package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Redis contains connection and queue naming settings for the job store.
type Redis struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	QueueName  string `toml:"queue_name"`
	MaxRetries int    `toml:"max_retries"`
}

// Paths contains directory and public URL configuration for media output.
type Paths struct {
	MediaBasePath string `toml:"media_base_path"`
	MediaBaseURL  string `toml:"media_base_url"`
	LogDir        string `toml:"log_dir"`
}

// Worker contains worker loop timing and pool sizing.
type Worker struct {
	Count              int    `toml:"count"`
	ID                 string `toml:"id"`
	ClaimTimeout       int    `toml:"claim_timeout"`
	ErrorRetryInterval int    `toml:"error_retry_interval"`
}

// Webhook contains completion notification settings.
type Webhook struct {
	Secret         string `toml:"secret"`
	RequestTimeout int    `toml:"request_timeout"`
}

// FFmpeg contains transcoding tool settings.
type FFmpeg struct {
	Binary  string `toml:"binary"`
	Timeout int    `toml:"timeout"`
	Preset  string `toml:"preset"`
	GopSize int    `toml:"gop_size"`
}

// Thumbnail contains image derivative settings.
type Thumbnail struct {
	WebPQuality          int `toml:"webp_quality"`
	WebPCompressionLevel int `toml:"webp_compression_level"`
}

// HLS contains segmentation settings.
type HLS struct {
	SegmentSeconds int `toml:"segment_seconds"`
}

// Download contains remote asset fetch settings.
type Download struct {
	Timeout int `toml:"timeout"`
}

// Logging contains log output settings.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Retention contains record and artifact expiry settings used by the
// maintenance sweep.
type Retention struct {
	CompletedJobTTLHours int `toml:"completed_job_ttl_hours"`
	MaxVideoAgeDays      int `toml:"max_video_age_days"`
}

// Config encapsulates all configuration for clipforge.
//
// Sections by subsystem:
//   - Redis: job store connection and queue naming
//   - Paths: media output hierarchy and log directory
//   - Worker: pool sizing and loop timing
//   - Webhook: completion notification signing and timeout
//   - FFmpeg: transcoding tool invocation
//   - Thumbnail / HLS / Download: pipeline stage settings
//   - Logging: format, level, retention
//   - Retention: completed job record and media directory expiry
type Config struct {
	Redis     Redis     `toml:"redis"`
	Paths     Paths     `toml:"paths"`
	Worker    Worker    `toml:"worker"`
	Webhook   Webhook   `toml:"webhook"`
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	Thumbnail Thumbnail `toml:"thumbnail"`
	HLS       HLS       `toml:"hls"`
	Download  Download  `toml:"download"`
	Logging   Logging   `toml:"logging"`
	Retention Retention `toml:"retention"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and deployment environment overrides
// (REDIS_HOST, REDIS_PORT, WEBHOOK_SECRET, WORKER_ID) applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	if host := strings.TrimSpace(os.Getenv("REDIS_HOST")); host != "" {
		c.Redis.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("REDIS_PORT")); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("parse REDIS_PORT: %w", err)
		}
		c.Redis.Port = parsed
	}
	if secret := strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")); secret != "" {
		c.Webhook.Secret = secret
	}
	if id := strings.TrimSpace(os.Getenv("WORKER_ID")); id != "" {
		c.Worker.ID = id
	}

	var err error
	if c.Paths.MediaBasePath, err = expandPath(c.Paths.MediaBasePath); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.MediaBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.MediaBaseURL), "/")
	return nil
}

// Addr returns the Redis host:port dial address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// EnsureDirectories creates the directories clipforge needs to run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MediaBasePath, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
