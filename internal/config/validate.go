package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants. It is called by Load after
// normalization but can be invoked directly on hand-built configs.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Redis.Host) == "" {
		problems = append(problems, "redis.host must not be empty")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		problems = append(problems, fmt.Sprintf("redis.port %d is out of range", c.Redis.Port))
	}
	if strings.TrimSpace(c.Redis.QueueName) == "" {
		problems = append(problems, "redis.queue_name must not be empty")
	}
	if c.Redis.MaxRetries < 0 {
		problems = append(problems, "redis.max_retries must not be negative")
	}

	if strings.TrimSpace(c.Paths.MediaBasePath) == "" {
		problems = append(problems, "paths.media_base_path must not be empty")
	}
	if strings.TrimSpace(c.Paths.MediaBaseURL) == "" {
		problems = append(problems, "paths.media_base_url must not be empty")
	}

	if c.Worker.Count < 1 {
		problems = append(problems, "worker.count must be at least 1")
	}
	if c.Worker.ClaimTimeout < 1 {
		problems = append(problems, "worker.claim_timeout must be at least 1 second")
	}
	if c.Worker.ErrorRetryInterval < 1 {
		problems = append(problems, "worker.error_retry_interval must be at least 1 second")
	}

	if c.Webhook.RequestTimeout < 1 {
		problems = append(problems, "webhook.request_timeout must be at least 1 second")
	}

	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		problems = append(problems, "ffmpeg.binary must not be empty")
	}
	if c.FFmpeg.Timeout < 1 {
		problems = append(problems, "ffmpeg.timeout must be at least 1 second")
	}
	if c.FFmpeg.GopSize < 1 {
		problems = append(problems, "ffmpeg.gop_size must be at least 1")
	}

	if c.Thumbnail.WebPQuality < 0 || c.Thumbnail.WebPQuality > 100 {
		problems = append(problems, "thumbnail.webp_quality must be between 0 and 100")
	}
	if c.HLS.SegmentSeconds < 1 {
		problems = append(problems, "hls.segment_seconds must be at least 1")
	}
	if c.Download.Timeout < 1 {
		problems = append(problems, "download.timeout must be at least 1 second")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of auto, console, json", c.Logging.Format))
	}

	if c.Retention.CompletedJobTTLHours < 1 {
		problems = append(problems, "retention.completed_job_ttl_hours must be at least 1")
	}
	if c.Retention.MaxVideoAgeDays < 1 {
		problems = append(problems, "retention.max_video_age_days must be at least 1")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
