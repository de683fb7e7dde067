package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clipforge/internal/logging"
)

const retryBaseDelay = 60 * time.Second

// retryDelay doubles per prior attempt: one minute after the first failure,
// two after the second, four after the third.
func retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return retryBaseDelay * (1 << (attempts - 1))
}

// newJob validates a payload and builds the pending job record for it.
func (s *Store) newJob(payload Payload) (*Job, error) {
	if payload.VideoURL == "" {
		return nil, errors.New("enqueue: video url required")
	}
	if payload.PostID <= 0 {
		return nil, errors.New("enqueue: post id required")
	}

	now := s.now().Unix()
	return &Job{
		ID:         "job_" + uuid.NewString(),
		Status:     StatusPending,
		Payload:    payload,
		MaxRetries: s.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Enqueue records a new job and pushes it onto the pending queue.
func (s *Store) Enqueue(ctx context.Context, payload Payload) (*Job, error) {
	job, err := s.newJob(payload)
	if err != nil {
		return nil, err
	}
	data, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), "data", data)
	pipe.LPush(ctx, s.pendingKey(), job.ID)
	pipe.Incr(ctx, statsEnqueuedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueuing job %s: %w", job.ID, err)
	}

	s.logger.Info("job enqueued",
		logging.String("job_id", job.ID),
		logging.Int64("post_id", payload.PostID),
		logging.String("batch_id", payload.BatchID))
	return job, nil
}

// EnqueueBatch enqueues a group of jobs under a shared batch id whose
// progress counters advance as members finish. The batch record and
// every member land in one pipeline, so a bad payload leaves Redis
// untouched rather than stranding a batch with missing members.
func (s *Store) EnqueueBatch(ctx context.Context, payloads []Payload) (string, []*Job, error) {
	if len(payloads) == 0 {
		return "", nil, errors.New("enqueue batch: no payloads")
	}

	batchID := "batch_" + uuid.NewString()
	jobs := make([]*Job, 0, len(payloads))
	encoded := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		payload.BatchID = batchID
		job, err := s.newJob(payload)
		if err != nil {
			return "", nil, fmt.Errorf("batch %s: %w", batchID, err)
		}
		data, err := encodeJob(job)
		if err != nil {
			return "", nil, fmt.Errorf("batch %s: %w", batchID, err)
		}
		jobs = append(jobs, job)
		encoded = append(encoded, data)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, batchKey(batchID),
		"total", len(payloads),
		"completed", 0,
		"failed", 0,
		"created_at", s.now().Unix(),
	)
	for i, job := range jobs {
		pipe.HSet(ctx, jobKey(job.ID), "data", encoded[i])
		pipe.LPush(ctx, s.pendingKey(), job.ID)
	}
	pipe.IncrBy(ctx, statsEnqueuedKey, int64(len(jobs)))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", nil, fmt.Errorf("creating batch %s: %w", batchID, err)
	}

	s.logger.Info("batch enqueued",
		logging.String("batch_id", batchID),
		logging.Int("jobs", len(jobs)))
	return batchID, jobs, nil
}

// ClaimNext blocks up to timeout for a pending job, atomically moving its
// id onto the processing list, then stamps the claim on the record. The
// worker owns the record exclusively once the id sits in the processing
// list, so the stamp needs no script. Returns (nil, nil) on timeout.
func (s *Store) ClaimNext(ctx context.Context, workerID string, timeout time.Duration) (*Job, error) {
	id, err := s.client.BRPopLPush(ctx, s.pendingKey(), s.processingKey(), timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	job, err := s.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// Record vanished while queued; drop the orphaned id.
		s.client.LRem(ctx, s.processingKey(), 1, id)
		s.logger.Warn("dropped orphaned queue entry", logging.String("job_id", id))
		return nil, nil
	}

	now := s.now().Unix()
	job.Status = StatusProcessing
	job.Attempts++
	job.StartedAt = now
	job.UpdatedAt = now
	job.WorkerID = workerID
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete finalizes a processing job with its result. The recorded
// duration spans the job's whole life, creation to completion. Returns
// false when the job was no longer on the processing list, which makes
// duplicate completions harmless.
func (s *Store) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	now := s.now().Unix()
	job.Status = StatusCompleted
	job.FinishedAt = now
	job.UpdatedAt = now
	job.Result = result
	job.Duration = float64(now - job.CreatedAt)
	data, err := encodeJob(job)
	if err != nil {
		return false, err
	}

	inBatch := "0"
	if job.Payload.BatchID != "" {
		inBatch = "1"
	}
	moved, err := completeScript.Run(ctx, s.client,
		[]string{s.processingKey(), jobKey(id), batchKey(job.Payload.BatchID), statsCompletedKey},
		id, data, int64(s.completedTTL.Seconds()), inBatch,
	).Int()
	if err != nil {
		return false, fmt.Errorf("completing job %s: %w", id, err)
	}
	if moved == 0 {
		return false, nil
	}

	s.logger.Info("job completed",
		logging.String("job_id", id),
		logging.Int64("post_id", job.Payload.PostID),
		logging.Float64("duration_seconds", job.Duration))
	return true, nil
}

// Fail records a processing failure. Jobs with attempts remaining are
// scheduled for a delayed retry with exponential backoff; exhausted jobs
// move to the dead letter list. Returns true when the job will retry.
func (s *Store) Fail(ctx context.Context, id, message string) (bool, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	now := s.now()
	job.UpdatedAt = now.Unix()
	job.LastError = message

	if job.Attempts < job.MaxRetries {
		readyAt := now.Add(retryDelay(job.Attempts))
		job.Status = StatusRetry
		job.ReadyAt = readyAt.Unix()
		data, err := encodeJob(job)
		if err != nil {
			return false, err
		}
		moved, err := retryScript.Run(ctx, s.client,
			[]string{s.processingKey(), jobKey(id), s.delayedKey()},
			id, data, readyAt.Unix(),
		).Int()
		if err != nil {
			return false, fmt.Errorf("scheduling retry for job %s: %w", id, err)
		}
		if moved == 0 {
			return false, nil
		}
		s.logger.Warn("job scheduled for retry",
			logging.String("job_id", id),
			logging.Int("attempt", job.Attempts),
			logging.Duration("delay", retryDelay(job.Attempts)),
			logging.String("error", message))
		return true, nil
	}

	job.Status = StatusFailed
	job.FinishedAt = now.Unix()
	data, err := encodeJob(job)
	if err != nil {
		return false, err
	}
	inBatch := "0"
	if job.Payload.BatchID != "" {
		inBatch = "1"
	}
	moved, err := deadLetterScript.Run(ctx, s.client,
		[]string{s.processingKey(), jobKey(id), s.deadLetterKey(), batchKey(job.Payload.BatchID), statsFailedKey},
		id, data, inBatch,
	).Int()
	if err != nil {
		return false, fmt.Errorf("dead lettering job %s: %w", id, err)
	}
	if moved == 1 {
		s.logger.Error("job moved to dead letter",
			logging.String("job_id", id),
			logging.Int("attempts", job.Attempts),
			logging.String("error", message))
	}
	return false, nil
}

// PromoteDelayed moves every delayed job whose ready time has passed back
// onto the pending queue and returns how many moved.
func (s *Store) PromoteDelayed(ctx context.Context) (int, error) {
	promoted, err := promoteScript.Run(ctx, s.client,
		[]string{s.delayedKey(), s.pendingKey()},
		s.now().Unix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promoting delayed jobs: %w", err)
	}
	if promoted > 0 {
		s.logger.Info("promoted delayed jobs", logging.Int("count", promoted))
	}
	return promoted, nil
}

// Stats reports queue depths and lifetime counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	pipe := s.client.Pipeline()
	pending := pipe.LLen(ctx, s.pendingKey())
	processing := pipe.LLen(ctx, s.processingKey())
	delayed := pipe.ZCard(ctx, s.delayedKey())
	deadLetter := pipe.LLen(ctx, s.deadLetterKey())
	enqueued := pipe.Get(ctx, statsEnqueuedKey)
	completed := pipe.Get(ctx, statsCompletedKey)
	failed := pipe.Get(ctx, statsFailedKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return stats, fmt.Errorf("reading queue stats: %w", err)
	}

	stats.Pending = pending.Val()
	stats.Processing = processing.Val()
	stats.Delayed = delayed.Val()
	stats.DeadLetter = deadLetter.Val()
	stats.Enqueued = counterValue(enqueued)
	stats.Completed = counterValue(completed)
	stats.Failed = counterValue(failed)
	return stats, nil
}

func counterValue(cmd *redis.StringCmd) int64 {
	value, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return value
}

// BatchStats reports progress for one batch.
func (s *Store) BatchStats(ctx context.Context, batchID string) (BatchStats, error) {
	fields, err := s.client.HGetAll(ctx, batchKey(batchID)).Result()
	if err != nil {
		return BatchStats{}, fmt.Errorf("loading batch %s: %w", batchID, err)
	}
	if len(fields) == 0 {
		return BatchStats{}, fmt.Errorf("batch %s not found", batchID)
	}

	stats := BatchStats{
		BatchID:   batchID,
		Total:     parseField(fields, "total"),
		Completed: parseField(fields, "completed"),
		Failed:    parseField(fields, "failed"),
		CreatedAt: parseField(fields, "created_at"),
	}
	stats.Pending = stats.Total - stats.Completed - stats.Failed
	if stats.Pending < 0 {
		stats.Pending = 0
	}
	stats.Done = stats.Completed+stats.Failed >= stats.Total
	return stats, nil
}

func parseField(fields map[string]string, name string) int64 {
	value, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// DeadLetterJobs returns up to limit exhausted jobs, oldest first.
func (s *Store) DeadLetterJobs(ctx context.Context, limit int64) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.client.LRange(ctx, s.deadLetterKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letter jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Clear removes every queue structure, job record, batch, and counter.
// Returns the number of keys deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	keys := []string{
		s.pendingKey(), s.processingKey(), s.delayedKey(), s.deadLetterKey(),
		statsEnqueuedKey, statsCompletedKey, statsFailedKey,
	}
	for _, pattern := range []string{"job:*", "batch:*"} {
		matched, err := s.scanKeys(ctx, pattern)
		if err != nil {
			return 0, err
		}
		keys = append(keys, matched...)
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("clearing queue: %w", err)
	}
	s.logger.Warn("queue cleared", logging.Int64("keys_deleted", deleted))
	return deleted, nil
}

// SweepCompleted deletes completed job records older than the retention
// TTL. Records normally expire on their own; this catches any written
// without an expiry.
func (s *Store) SweepCompleted(ctx context.Context) (int, error) {
	if s.completedTTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.completedTTL).Unix()

	keys, err := s.scanKeys(ctx, "job:*")
	if err != nil {
		return 0, err
	}

	var removed int
	for _, key := range keys {
		data, err := s.client.HGet(ctx, key, "data").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("sweeping %s: %w", key, err)
		}
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			continue
		}
		if job.Status == StatusCompleted && job.FinishedAt > 0 && job.FinishedAt < cutoff {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("sweeping %s: %w", key, err)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
