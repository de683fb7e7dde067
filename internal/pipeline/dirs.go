package pipeline

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// minFreeSpaceRatio is the fraction of the filesystem that must remain free
// before a new job is allowed to write output.
const minFreeSpaceRatio = 0.05

var outputDirShape = regexp.MustCompile(`/\d{4}/\d{2}/\d+/?$`)

// DiskUsage reports total and available bytes for the filesystem holding
// the given path.
type DiskUsage func(path string) (total, available uint64, err error)

func statfsUsage(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	blockSize := uint64(stat.Bsize)
	return stat.Blocks * blockSize, stat.Bavail * blockSize, nil
}

// OutputDir returns the relative output directory for a post, partitioned
// by the current year and month.
func OutputDir(postID int64, now time.Time) string {
	return path.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		strconv.FormatInt(postID, 10),
	)
}

// provisionOutputDir creates the dated output directory under the media
// base path after verifying free space and writability. It returns the
// absolute directory and its base-relative form used in result URLs.
func (p *Processor) provisionOutputDir(postID int64) (string, string, error) {
	base := p.cfg.Paths.MediaBasePath

	total, available, err := p.diskUsage(base)
	if err != nil {
		return "", "", newError(KindFilesystem, err, "checking free space on %s", base)
	}
	if total > 0 && float64(available)/float64(total) < minFreeSpaceRatio {
		return "", "", newError(KindFilesystem, nil,
			"insufficient disk space on %s: %d of %d bytes free", base, available, total).
			With("available", strconv.FormatUint(available, 10))
	}

	relative := OutputDir(postID, p.now())
	absolute := path.Join(base, relative)
	if !outputDirShape.MatchString(absolute) {
		return "", "", newError(KindFilesystem, nil, "malformed output directory %s", absolute)
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return "", "", newError(KindFilesystem, err, "creating output directory %s", absolute)
	}
	if err := unix.Access(absolute, unix.W_OK); err != nil {
		return "", "", newError(KindFilesystem, err, "output directory %s is not writable", absolute)
	}
	return absolute, relative, nil
}
