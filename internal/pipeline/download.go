package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/logging"
)

const minDownloadBytes = 1024

var downloadRetryDelays = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}

// Downloader fetches source media over HTTP with bounded retries.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewDownloader constructs a downloader with the given per-request timeout.
func NewDownloader(timeout time.Duration, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Fetch downloads sourceURL into destination, validating the response and
// the written size.
func (d *Downloader) Fetch(ctx context.Context, sourceURL, destination string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return newError(KindDownload, err, "invalid source url %q", sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return newError(KindDownload, err, "building request for %s", sourceURL)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return newError(KindDownload, err, "fetching %s", sourceURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newError(KindDownload, nil, "fetching %s: status %d", sourceURL, resp.StatusCode)
	}

	if filepath.Base(destination) == "original.mp4" {
		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "video/") {
			d.logger.Warn("unexpected content type for video download",
				logging.String("url", sourceURL),
				logging.String("content_type", contentType))
		}
	}

	out, err := os.Create(destination)
	if err != nil {
		return newError(KindFilesystem, err, "creating %s", destination)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destination)
		return newError(KindDownload, err, "writing %s", destination)
	}
	if written == 0 {
		os.Remove(destination)
		return newError(KindDownload, nil, "empty response from %s", sourceURL)
	}
	if written < minDownloadBytes {
		os.Remove(destination)
		return newError(KindDownload, nil,
			"suspiciously small download from %s: %d bytes", sourceURL, written)
	}
	return nil
}

// FetchWithRetry calls Fetch up to len(downloadRetryDelays) times, sleeping
// the configured delay between attempts.
func (d *Downloader) FetchWithRetry(ctx context.Context, sourceURL, destination string) error {
	var lastErr error
	for attempt, delay := range downloadRetryDelays {
		lastErr = d.Fetch(ctx, sourceURL, destination)
		if lastErr == nil {
			return nil
		}
		d.logger.Warn("download attempt failed",
			logging.String("url", sourceURL),
			logging.Int("attempt", attempt+1),
			logging.Error(lastErr))
		if attempt < len(downloadRetryDelays)-1 {
			d.sleep(delay)
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", len(downloadRetryDelays), lastErr)
}
