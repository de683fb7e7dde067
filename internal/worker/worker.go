// Package worker drains the job queue: each worker claims jobs, runs the
// media pipeline, delivers the completion webhook, and records the outcome.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
)

// Pipeline runs the media stages for one job.
type Pipeline interface {
	Process(ctx context.Context, videoURL, thumbnailURL string, postID int64) pipeline.Outcome
}

// Deliverer posts a completion notification.
type Deliverer interface {
	Notify(ctx context.Context, url string, payload any) error
}

// webhookFailureMessage is recorded on the job when the pipeline succeeded
// but the notification could not be delivered.
const webhookFailureMessage = "webhook delivery failed after all retries"

type completionPayload struct {
	PostID         int64    `json:"post_id"`
	Status         string   `json:"status"`
	Thumbnails     []string `json:"thumbnails,omitempty"`
	CompressedMP4s []string `json:"compressed_mp4s,omitempty"`
	HLSPlaylists   []string `json:"hls_playlists,omitempty"`
	MasterPlaylist string   `json:"master_playlist,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	ProcessingTime float64  `json:"processing_time"`
}

// Worker is one queue consumer.
type Worker struct {
	id            string
	store         *queue.Store
	pipeline      Pipeline
	notifier      Deliverer
	claimTimeout  time.Duration
	errorInterval time.Duration
	logger        *slog.Logger
	sleep         func(time.Duration)
	now           func() time.Time
}

// New builds a worker with the given id.
func New(id string, cfg *config.Config, store *queue.Store, pipe Pipeline, notifier Deliverer, logger *slog.Logger) *Worker {
	return &Worker{
		id:            id,
		store:         store,
		pipeline:      pipe,
		notifier:      notifier,
		claimTimeout:  time.Duration(cfg.Worker.ClaimTimeout) * time.Second,
		errorInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		logger:        logging.NewComponentLogger(logger, "worker").With(logging.String("worker_id", id)),
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// Run consumes jobs until ctx is canceled. Shutdown is graceful: a job
// already claimed is carried through its pipeline, webhook, and queue
// transition before the loop exits.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	defer w.logger.Info("worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.store.ClaimNext(ctx, w.id, w.claimTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim failed", logging.Error(err))
			w.sleep(w.errorInterval)
			continue
		}
		if job == nil {
			if _, err := w.store.PromoteDelayed(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("promoting delayed jobs failed", logging.Error(err))
			}
			continue
		}
		w.handle(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	logger := w.logger.With(
		logging.String("job_id", job.ID),
		logging.Int64("post_id", job.Payload.PostID),
		logging.Int("attempt", job.Attempts))
	logger.Info("processing job")

	started := w.now()
	outcome := w.pipeline.Process(ctx, job.Payload.VideoURL, job.Payload.ThumbnailURL, job.Payload.PostID)
	duration := w.now().Sub(started)

	if outcome.Status == pipeline.StatusError {
		w.fail(ctx, logger, job.ID, outcome.ErrorMessage)
		return
	}

	if job.Payload.WebhookURL != "" {
		payload := completionPayload{
			PostID:         outcome.PostID,
			Status:         outcome.Status,
			Thumbnails:     outcome.Thumbnails,
			CompressedMP4s: outcome.CompressedMP4s,
			HLSPlaylists:   outcome.HLSPlaylists,
			MasterPlaylist: outcome.MasterPlaylist,
			Warnings:       outcome.Warnings,
			ProcessingTime: math.Round(duration.Seconds()*100) / 100,
		}
		if err := w.notifier.Notify(ctx, job.Payload.WebhookURL, payload); err != nil {
			logger.Error("webhook delivery failed", logging.Error(err))
			w.fail(ctx, logger, job.ID, webhookFailureMessage)
			return
		}
	}

	result, err := json.Marshal(outcome)
	if err != nil {
		w.fail(ctx, logger, job.ID, "encoding result: "+err.Error())
		return
	}
	done, err := w.store.Complete(ctx, job.ID, result)
	if err != nil {
		logger.Error("recording completion failed", logging.Error(err))
		return
	}
	if done {
		logger.Info("job finished",
			logging.String("status", outcome.Status),
			logging.Duration("duration", duration))
	}
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, jobID, message string) {
	requeued, err := w.store.Fail(ctx, jobID, message)
	if err != nil {
		logger.Error("recording failure failed", logging.Error(err))
		return
	}
	logger.Warn("job failed",
		logging.String("error", message),
		logging.Bool("will_retry", requeued))
}
