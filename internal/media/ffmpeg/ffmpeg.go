// Package ffmpeg wraps the external transcoding binary as a subprocess with
// argument builders for the operations the pipeline needs.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/media"
)

var commandContext = exec.CommandContext

// Runner executes a single ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// Option configures the CLI runner.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds every invocation with a hard deadline. Zero disables
// the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		c.timeout = timeout
	}
}

// CLI invokes the ffmpeg binary.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a runner using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Run executes ffmpeg with the given arguments, capturing combined output
// into the returned error on failure. A hung process is killed when the
// configured timeout elapses.
func (c *CLI) Run(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return errors.New("ffmpeg arguments required")
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, c.binary, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ffmpeg timed out after %s: %w", c.timeout, runCtx.Err())
	}
	return fmt.Errorf("ffmpeg failed: %w: %s", err, outputTail(output))
}

func outputTail(output []byte) string {
	const limit = 512
	text := strings.TrimSpace(string(output))
	if len(text) <= limit {
		return text
	}
	return "..." + text[len(text)-limit:]
}

var _ Runner = (*CLI)(nil)

// CompressArgs builds the argument list for one quality tier compression
// pass: lanczos scaling, constrained x264 rate control, AAC audio, and a
// faststart container.
func CompressArgs(input, output string, tier media.Tier, preset string, gopSize int) []string {
	sampleRate := tier.AudioSampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}
	gop := strconv.Itoa(gopSize)
	return []string{
		"-i", input,
		"-vf", fmt.Sprintf("scale=%s:flags=lanczos", tier.Scale),
		"-c:v", "libx264",
		"-preset", preset,
		"-profile:v", tier.Profile,
		"-level", tier.Level,
		"-b:v", tier.Bitrate,
		"-maxrate", tier.MaxRate,
		"-bufsize", tier.BufSize,
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", tier.AudioBitrate,
		"-ar", strconv.Itoa(sampleRate),
		"-movflags", "+faststart",
		"-y", output,
	}
}

// SegmentArgs builds the argument list for segmenting a compressed rendition
// into a fixed-duration VOD playlist without re-encoding.
func SegmentArgs(input, playlist, segmentPattern string, segmentSeconds int) []string {
	return []string{
		"-i", input,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
		"-y", playlist,
	}
}

// WebPArgs builds the argument list for transcoding a thumbnail to WebP at
// a fixed quality and compression level.
func WebPArgs(input, output string, quality, compressionLevel int) []string {
	return []string{
		"-y",
		"-i", input,
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(quality),
		"-compression_level", strconv.Itoa(compressionLevel),
		output,
	}
}
