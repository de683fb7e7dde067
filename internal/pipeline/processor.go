// Package pipeline turns a source video into multi-quality MP4 renditions,
// HLS playlists, and thumbnails under a dated output directory.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/media/ffmpeg"
)

// Outcome statuses reported to the queue and webhook consumers.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// Outcome is the result of one pipeline run. Artifact entries are public
// URLs under the configured media base URL.
type Outcome struct {
	Status         string   `json:"status"`
	PostID         int64    `json:"post_id"`
	Thumbnails     []string `json:"thumbnails,omitempty"`
	CompressedMP4s []string `json:"compressed_mp4s,omitempty"`
	HLSPlaylists   []string `json:"hls_playlists,omitempty"`
	MasterPlaylist string   `json:"master_playlist,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	ErrorMessage   string   `json:"error,omitempty"`

	Err *Error `json:"-"`
}

// Processor runs the full media pipeline for one job at a time.
type Processor struct {
	cfg        *config.Config
	baseURL    string
	runner     ffmpeg.Runner
	downloader *Downloader
	logger     *slog.Logger
	tiers      []media.Tier
	now        func() time.Time
	diskUsage  DiskUsage
}

// Option adjusts processor construction.
type Option func(*Processor)

// WithTiers replaces the default quality ladder.
func WithTiers(tiers []media.Tier) Option {
	return func(p *Processor) { p.tiers = tiers }
}

// WithDiskUsage replaces the filesystem usage probe.
func WithDiskUsage(usage DiskUsage) Option {
	return func(p *Processor) { p.diskUsage = usage }
}

// WithClock replaces the time source used for output directory dating.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithDownloader replaces the source media downloader.
func WithDownloader(d *Downloader) Option {
	return func(p *Processor) { p.downloader = d }
}

// NewProcessor builds a processor from configuration. The runner executes
// the transcoding tool; pass nil logger to discard output.
func NewProcessor(cfg *config.Config, runner ffmpeg.Runner, logger *slog.Logger, opts ...Option) *Processor {
	logger = logging.NewComponentLogger(logger, "pipeline")
	p := &Processor{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.Paths.MediaBaseURL, "/"),
		runner:     runner,
		downloader: NewDownloader(time.Duration(cfg.Download.Timeout)*time.Second, logger),
		logger:     logger,
		tiers:      media.DefaultTiers(),
		now:        time.Now,
		diskUsage:  statfsUsage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs every stage for one job: directory provisioning, thumbnail
// generation, source download, per-tier compression, HLS segmentation,
// and master playlist assembly. Individual tier and thumbnail failures
// degrade the outcome to partial success; a run only fails outright when
// nothing playable was produced.
func (p *Processor) Process(ctx context.Context, videoURL, thumbnailURL string, postID int64) Outcome {
	outcome := Outcome{PostID: postID}

	outputDir, relativeDir, err := p.provisionOutputDir(postID)
	if err != nil {
		return p.fail(outcome, err)
	}
	logger := p.logger.With(logging.Int64("post_id", postID), logging.String("output_dir", outputDir))

	// Thumbnails come first so they survive even when the video cannot be
	// fetched.
	if thumbnailURL != "" {
		thumbnails, err := p.processThumbnail(ctx, thumbnailURL, outputDir, relativeDir)
		if err != nil {
			logger.Warn("thumbnail stage failed", logging.Error(err))
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("thumbnail: %v", err))
		} else {
			outcome.Thumbnails = thumbnails
		}
	}

	original := filepath.Join(outputDir, "original.mp4")
	if err := p.downloader.FetchWithRetry(ctx, videoURL, original); err != nil {
		return p.fail(outcome, newError(KindDownload, err, "downloading source video"))
	}
	defer os.Remove(original)

	for _, tier := range p.tiers {
		rendition := filepath.Join(outputDir, tier.Name+".mp4")
		args := ffmpeg.CompressArgs(original, rendition, tier, p.cfg.FFmpeg.Preset, p.cfg.FFmpeg.GopSize)
		if err := p.runner.Run(ctx, args...); err != nil {
			logger.Warn("compression failed", logging.String("tier", tier.Name), logging.Error(err))
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("compression %s: %v", tier.Name, err))
			continue
		}
		outcome.CompressedMP4s = append(outcome.CompressedMP4s, p.artifactURL(relativeDir, tier.Name+".mp4"))

		playlist := filepath.Join(outputDir, tier.Name+".m3u8")
		segments := filepath.Join(outputDir, tier.Name+"_%03d.ts")
		args = ffmpeg.SegmentArgs(rendition, playlist, segments, p.cfg.HLS.SegmentSeconds)
		if err := p.runner.Run(ctx, args...); err != nil {
			logger.Warn("segmentation failed", logging.String("tier", tier.Name), logging.Error(err))
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("segmentation %s: %v", tier.Name, err))
			continue
		}
		outcome.HLSPlaylists = append(outcome.HLSPlaylists, p.artifactURL(relativeDir, tier.Name+".m3u8"))
	}

	if len(outcome.CompressedMP4s) == 0 {
		return p.fail(outcome, newError(KindTranscode, nil, "all quality tiers failed"))
	}
	if len(outcome.HLSPlaylists) == 0 {
		return p.fail(outcome, newError(KindSegmentation, nil, "all segmentation attempts failed"))
	}

	master, err := writeMasterPlaylist(outputDir, p.tiers)
	if err != nil {
		return p.fail(outcome, err)
	}
	outcome.MasterPlaylist = p.artifactURL(relativeDir, filepath.Base(master))

	if len(outcome.Warnings) > 0 {
		outcome.Status = StatusPartialSuccess
	} else {
		outcome.Status = StatusSuccess
	}
	logger.Info("pipeline finished",
		logging.String("status", outcome.Status),
		logging.Int("renditions", len(outcome.CompressedMP4s)),
		logging.Int("playlists", len(outcome.HLSPlaylists)))
	return outcome
}

// artifactURL builds the public URL for a file in the job's output
// directory.
func (p *Processor) artifactURL(relativeDir, name string) string {
	return p.baseURL + "/" + relativeDir + "/" + name
}

func (p *Processor) fail(outcome Outcome, err error) Outcome {
	outcome.Status = StatusError
	outcome.ErrorMessage = err.Error()
	if pe, ok := err.(*Error); ok {
		outcome.Err = pe
	} else {
		outcome.Err = newError(KindOf(err), err, "pipeline failed")
	}
	p.logger.Error("pipeline failed",
		logging.Int64("post_id", outcome.PostID),
		logging.String("kind", string(outcome.Err.Kind)),
		logging.Error(err))
	return outcome
}
