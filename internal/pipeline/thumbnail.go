package pipeline

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffmpeg"
)

var thumbnailExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// processThumbnail downloads the source thumbnail, stores a copy named by
// its sniffed image type, and produces a WebP rendition alongside it. It
// returns the base-relative paths of the generated files.
func (p *Processor) processThumbnail(ctx context.Context, thumbnailURL, outputDir, relativeDir string) ([]string, error) {
	temp, err := os.CreateTemp(outputDir, "thumb_*")
	if err != nil {
		return nil, newError(KindFilesystem, err, "creating thumbnail scratch file")
	}
	tempPath := temp.Name()
	temp.Close()
	defer os.Remove(tempPath)

	if err := p.downloader.FetchWithRetry(ctx, thumbnailURL, tempPath); err != nil {
		return nil, err
	}

	ext, err := sniffImageExtension(tempPath)
	if err != nil {
		return nil, err
	}

	original := filepath.Join(outputDir, "thumbnail."+ext)
	if err := fileutil.MoveFile(tempPath, original); err != nil {
		return nil, newError(KindFilesystem, err, "storing thumbnail")
	}
	results := []string{p.artifactURL(relativeDir, "thumbnail."+ext)}

	webp := filepath.Join(outputDir, "thumbnail.webp")
	if ext == "webp" {
		return results, nil
	}
	args := ffmpeg.WebPArgs(original, webp,
		p.cfg.Thumbnail.WebPQuality, p.cfg.Thumbnail.WebPCompressionLevel)
	if err := p.runner.Run(ctx, args...); err != nil {
		p.logger.Warn("webp thumbnail conversion failed", logging.Error(err))
		return results, nil
	}
	return append(results, p.artifactURL(relativeDir, "thumbnail.webp")), nil
}

func sniffImageExtension(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", newError(KindFilesystem, err, "opening thumbnail for sniffing")
	}
	defer file.Close()

	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return "", newError(KindFilesystem, err, "reading thumbnail header")
	}
	contentType := http.DetectContentType(header[:n])
	if ext, ok := thumbnailExtensions[contentType]; ok {
		return ext, nil
	}
	return "jpg", nil
}
