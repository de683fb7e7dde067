package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner records invocations and writes a placeholder file at the final
// argument, mirroring how the real tool leaves its output behind.
type fakeRunner struct {
	failPatterns []string
	calls        [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	output := args[len(args)-1]
	for _, pattern := range f.failPatterns {
		if strings.Contains(output, pattern) {
			return errors.New("simulated tool failure")
		}
	}
	return os.WriteFile(output, []byte("media"), 0o644)
}

func jpegBytes() []byte {
	payload := make([]byte, 2048)
	copy(payload, []byte{0xff, 0xd8, 0xff, 0xe0})
	return payload
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write(testVideoBytes())
		case "/thumb.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpegBytes())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProcessor(t *testing.T, runner *fakeRunner) *Processor {
	t.Helper()
	cfg := testConfig(t)
	p := NewProcessor(cfg, runner, nil,
		WithClock(fixedClock),
		WithDiskUsage(func(string) (uint64, uint64, error) { return 1000, 500, nil }))
	p.downloader.sleep = func(time.Duration) {}
	return p
}

func TestProcessSuccess(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/video.mp4", server.URL+"/thumb.jpg", 42)

	if outcome.Status != StatusSuccess {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.ErrorMessage)
	}
	if len(outcome.CompressedMP4s) != 4 || len(outcome.HLSPlaylists) != 4 {
		t.Fatalf("renditions = %v, playlists = %v", outcome.CompressedMP4s, outcome.HLSPlaylists)
	}
	if outcome.CompressedMP4s[0] != "https://media.example.com/content/2026/03/42/480p.mp4" {
		t.Fatalf("unexpected rendition url %q", outcome.CompressedMP4s[0])
	}
	if outcome.MasterPlaylist != "https://media.example.com/content/2026/03/42/master.m3u8" {
		t.Fatalf("master playlist = %q", outcome.MasterPlaylist)
	}
	if len(outcome.Thumbnails) != 2 {
		t.Fatalf("thumbnails = %v, want original and webp", outcome.Thumbnails)
	}
	if outcome.Thumbnails[0] != "https://media.example.com/content/2026/03/42/thumbnail.jpg" {
		t.Fatalf("unexpected thumbnail url %q", outcome.Thumbnails[0])
	}

	outputDir := filepath.Join(p.cfg.Paths.MediaBasePath, "2026", "03", "42")
	if _, err := os.Stat(filepath.Join(outputDir, "master.m3u8")); err != nil {
		t.Fatalf("master playlist missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "original.mp4")); !os.IsNotExist(err) {
		t.Fatal("source download should be removed after processing")
	}
}

func TestProcessPartialSuccess(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{failPatterns: []string{"360p"}}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/video.mp4", server.URL+"/thumb.jpg", 42)

	if outcome.Status != StatusPartialSuccess {
		t.Fatalf("status = %q, want partial_success", outcome.Status)
	}
	if len(outcome.CompressedMP4s) != 3 {
		t.Fatalf("renditions = %v", outcome.CompressedMP4s)
	}
	if len(outcome.Warnings) != 1 || !strings.Contains(outcome.Warnings[0], "compression 360p") {
		t.Fatalf("warnings = %v", outcome.Warnings)
	}
	if outcome.MasterPlaylist == "" {
		t.Fatal("surviving renditions should still produce a master playlist")
	}
}

func TestProcessThumbnailFailureIsNonFatal(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/video.mp4", server.URL+"/missing.jpg", 42)

	if outcome.Status != StatusPartialSuccess {
		t.Fatalf("status = %q, want partial_success", outcome.Status)
	}
	if len(outcome.Thumbnails) != 0 {
		t.Fatalf("thumbnails = %v, want none", outcome.Thumbnails)
	}
	if len(outcome.Warnings) != 1 || !strings.Contains(outcome.Warnings[0], "thumbnail") {
		t.Fatalf("warnings = %v", outcome.Warnings)
	}
}

func TestProcessAllTiersFailing(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{failPatterns: []string{"480p", "360p", "240p", "144p"}}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/video.mp4", "", 42)

	if outcome.Status != StatusError {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.Err == nil || outcome.Err.Kind != KindTranscode {
		t.Fatalf("expected transcode failure, got %+v", outcome.Err)
	}
	if !strings.Contains(outcome.ErrorMessage, "all quality tiers failed") {
		t.Fatalf("error message = %q", outcome.ErrorMessage)
	}
}

func TestProcessAllSegmentationsFailing(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{failPatterns: []string{".m3u8"}}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/video.mp4", "", 42)

	if outcome.Status != StatusError {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.Err == nil || outcome.Err.Kind != KindSegmentation {
		t.Fatalf("expected segmentation failure, got %+v", outcome.Err)
	}
	if len(outcome.CompressedMP4s) != 4 {
		t.Fatalf("renditions = %v", outcome.CompressedMP4s)
	}
	if !strings.Contains(outcome.ErrorMessage, "all segmentation attempts failed") {
		t.Fatalf("error message = %q", outcome.ErrorMessage)
	}
}

func TestProcessDownloadFailure(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/missing.mp4", "", 42)

	if outcome.Status != StatusError {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.Err == nil || outcome.Err.Kind != KindDownload {
		t.Fatalf("expected download failure, got %+v", outcome.Err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("tool should not run after a failed download, calls = %d", len(runner.calls))
	}
}

func TestProcessThumbnailsSurviveDownloadFailure(t *testing.T) {
	server := mediaServer(t)
	runner := &fakeRunner{}
	p := newTestProcessor(t, runner)

	outcome := p.Process(context.Background(), server.URL+"/missing.mp4", server.URL+"/thumb.jpg", 42)

	if outcome.Status != StatusError {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.Err == nil || outcome.Err.Kind != KindDownload {
		t.Fatalf("expected download failure, got %+v", outcome.Err)
	}
	if len(outcome.Thumbnails) != 2 {
		t.Fatalf("thumbnails = %v, want both generated before the download", outcome.Thumbnails)
	}
	outputDir := filepath.Join(p.cfg.Paths.MediaBasePath, "2026", "03", "42")
	if _, err := os.Stat(filepath.Join(outputDir, "thumbnail.jpg")); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
}
