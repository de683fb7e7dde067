// Package deps verifies the external pieces the service needs before it
// starts taking work: the transcoding binary, the queue backend, and a
// writable media tree.
package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/queue"
)

// Status reports one dependency probe.
type Status struct {
	Name      string
	Available bool
	Detail    string
}

// CheckAll probes every runtime dependency. The store may be nil when the
// queue backend is intentionally skipped.
func CheckAll(ctx context.Context, cfg *config.Config, store *queue.Store) []Status {
	results := []Status{
		CheckFFmpeg(cfg.FFmpeg.Binary),
		CheckMediaPath(cfg.Paths.MediaBasePath),
	}
	if store != nil {
		results = append(results, CheckRedis(ctx, store))
	}
	return results
}

// Healthy reports whether every probe passed.
func Healthy(results []Status) bool {
	for _, result := range results {
		if !result.Available {
			return false
		}
	}
	return true
}

// CheckFFmpeg resolves the transcoding binary on PATH and probes its
// version banner.
func CheckFFmpeg(binary string) Status {
	status := Status{Name: "ffmpeg"}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", binary)
		return status
	}

	output, err := exec.Command(resolved, "-version").Output()
	if err != nil {
		status.Detail = fmt.Sprintf("%s -version failed: %v", resolved, err)
		return status
	}
	status.Available = true
	status.Detail = firstLine(string(output))
	return status
}

// CheckRedis pings the queue backend.
func CheckRedis(ctx context.Context, store *queue.Store) Status {
	status := Status{Name: "redis"}
	if err := store.Ping(ctx); err != nil {
		status.Detail = fmt.Sprintf("ping failed: %v", err)
		return status
	}
	status.Available = true
	status.Detail = "reachable"
	return status
}

// CheckMediaPath verifies the media base path exists and is writable.
func CheckMediaPath(path string) Status {
	status := Status{Name: "media path"}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = fmt.Sprintf("%s: %v", path, err)
		return status
	}
	if !info.IsDir() {
		status.Detail = fmt.Sprintf("%s is not a directory", path)
		return status
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		status.Detail = fmt.Sprintf("%s is not writable: %v", path, err)
		return status
	}
	status.Available = true
	status.Detail = path
	return status
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
