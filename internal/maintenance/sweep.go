// Package maintenance prunes aged artifacts: expired job records, old media
// directories, stale temp files, and rotated logs.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/config"
	"clipforge/internal/fileutil"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
)

const tempFileMaxAge = time.Hour

var (
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
	monthPattern = regexp.MustCompile(`^\d{2}$`)
	postPattern  = regexp.MustCompile(`^\d+$`)
)

// Options tunes one sweep run.
type Options struct {
	// DryRun reports what would be removed without touching anything.
	DryRun bool
	// MaxAge overrides the configured media age cutoff when positive.
	MaxAge time.Duration
}

// Result counts what a sweep removed, or would remove under DryRun.
type Result struct {
	JobRecords int
	MediaDirs  int
	EmptyDirs  int
	TempFiles  int
	LogFiles   int
}

// Sweeper runs maintenance passes over the queue and the media tree.
type Sweeper struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper builds a sweeper. The store may be nil when only filesystem
// pruning is wanted.
func NewSweeper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "maintenance"),
		now:    time.Now,
	}
}

// Run executes one sweep under an exclusive file lock so overlapping
// invocations cannot race on the same tree.
func (s *Sweeper) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result

	lock := flock.New(filepath.Join(s.cfg.Paths.LogDir, "sweep.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !locked {
		return result, fmt.Errorf("another sweep is already running")
	}
	defer lock.Unlock()

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = time.Duration(s.cfg.Retention.MaxVideoAgeDays) * 24 * time.Hour
	}
	cutoff := s.now().Add(-maxAge)

	if s.store != nil && !opts.DryRun {
		removed, err := s.store.SweepCompleted(ctx)
		if err != nil {
			return result, fmt.Errorf("sweeping job records: %w", err)
		}
		result.JobRecords = removed
	}

	if err := s.sweepMediaDirs(cutoff, opts.DryRun, &result); err != nil {
		return result, err
	}
	if err := s.sweepTempFiles(opts.DryRun, &result); err != nil {
		return result, err
	}

	if !opts.DryRun {
		result.LogFiles = logging.CleanupOldLogs(s.logger, s.cfg.Logging.RetentionDays,
			logging.RetentionTarget{
				Dir:     s.cfg.Paths.LogDir,
				Pattern: "*.log",
				Exclude: []string{logging.LogFilePath(s.cfg)},
			})
	}

	s.logger.Info("sweep finished",
		logging.Bool("dry_run", opts.DryRun),
		logging.Int("job_records", result.JobRecords),
		logging.Int("media_dirs", result.MediaDirs),
		logging.Int("empty_dirs", result.EmptyDirs),
		logging.Int("temp_files", result.TempFiles),
		logging.Int("log_files", result.LogFiles))
	return result, nil
}

// sweepMediaDirs removes post directories whose last modification predates
// the cutoff, then prunes month and year directories left empty.
func (s *Sweeper) sweepMediaDirs(cutoff time.Time, dryRun bool, result *Result) error {
	base := s.cfg.Paths.MediaBasePath
	years, err := os.ReadDir(base)
	if err != nil {
		return fmt.Errorf("reading media base %s: %w", base, err)
	}

	for _, year := range years {
		if !year.IsDir() || !yearPattern.MatchString(year.Name()) {
			continue
		}
		yearDir := filepath.Join(base, year.Name())
		months, err := os.ReadDir(yearDir)
		if err != nil {
			continue
		}
		for _, month := range months {
			if !month.IsDir() || !monthPattern.MatchString(month.Name()) {
				continue
			}
			monthDir := filepath.Join(yearDir, month.Name())
			posts, err := os.ReadDir(monthDir)
			if err != nil {
				continue
			}
			for _, post := range posts {
				if !post.IsDir() || !postPattern.MatchString(post.Name()) {
					continue
				}
				postDir := filepath.Join(monthDir, post.Name())
				info, err := post.Info()
				if err != nil || !info.ModTime().Before(cutoff) {
					continue
				}
				result.MediaDirs++
				if dryRun {
					continue
				}
				if err := os.RemoveAll(postDir); err != nil {
					s.logger.Warn("removing media directory failed",
						logging.String("dir", postDir), logging.Error(err))
					result.MediaDirs--
					continue
				}
				s.logger.Info("removed media directory", logging.String("dir", postDir))
			}
			s.pruneEmptyDir(monthDir, dryRun, result)
		}
		s.pruneEmptyDir(yearDir, dryRun, result)
	}
	return nil
}

func (s *Sweeper) pruneEmptyDir(dir string, dryRun bool, result *Result) {
	empty, err := fileutil.IsDirEmpty(dir)
	if err != nil || !empty {
		return
	}
	result.EmptyDirs++
	if dryRun {
		return
	}
	if err := os.Remove(dir); err != nil {
		result.EmptyDirs--
	}
}

// sweepTempFiles removes abandoned thumbnail scratch files older than an
// hour anywhere under the media tree.
func (s *Sweeper) sweepTempFiles(dryRun bool, result *Result) error {
	cutoff := s.now().Add(-tempFileMaxAge)
	stack := []string{s.cfg.Paths.MediaBasePath}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			if !strings.HasPrefix(entry.Name(), "thumb_") {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			result.TempFiles++
			if dryRun {
				continue
			}
			if err := os.Remove(path); err != nil {
				result.TempFiles--
			}
		}
	}
	return nil
}
