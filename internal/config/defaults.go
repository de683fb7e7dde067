package config

const (
	defaultRedisHost            = "redis"
	defaultRedisPort            = 6379
	defaultQueueName            = "video_compression_queue"
	defaultMaxRetries           = 3
	defaultMediaBasePath        = "/var/www/media/content"
	defaultMediaBaseURL         = "https://media.example.com/content"
	defaultLogDir               = "~/.local/share/clipforge/logs"
	defaultWorkerCount          = 5
	defaultClaimTimeout         = 5
	defaultErrorRetryInterval   = 5
	defaultWebhookTimeout       = 30
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFmpegTimeout        = 600
	defaultFFmpegPreset         = "faster"
	defaultFFmpegGopSize        = 30
	defaultWebPQuality           = 87
	defaultWebPCompressionLevel  = 6
	defaultHLSSegmentSeconds     = 10
	defaultDownloadTimeout       = 300
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultCompletedJobTTLHours  = 24
	defaultMaxVideoAgeDays       = 90
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Redis: Redis{
			Host:       defaultRedisHost,
			Port:       defaultRedisPort,
			QueueName:  defaultQueueName,
			MaxRetries: defaultMaxRetries,
		},
		Paths: Paths{
			MediaBasePath: defaultMediaBasePath,
			MediaBaseURL:  defaultMediaBaseURL,
			LogDir:        defaultLogDir,
		},
		Worker: Worker{
			Count:              defaultWorkerCount,
			ClaimTimeout:       defaultClaimTimeout,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Webhook: Webhook{
			RequestTimeout: defaultWebhookTimeout,
		},
		FFmpeg: FFmpeg{
			Binary:  defaultFFmpegBinary,
			Timeout: defaultFFmpegTimeout,
			Preset:  defaultFFmpegPreset,
			GopSize: defaultFFmpegGopSize,
		},
		Thumbnail: Thumbnail{
			WebPQuality:          defaultWebPQuality,
			WebPCompressionLevel: defaultWebPCompressionLevel,
		},
		HLS: HLS{
			SegmentSeconds: defaultHLSSegmentSeconds,
		},
		Download: Download{
			Timeout: defaultDownloadTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Retention: Retention{
			CompletedJobTTLHours: defaultCompletedJobTTLHours,
			MaxVideoAgeDays:      defaultMaxVideoAgeDays,
		},
	}
}
