// Package queue implements the durable job queue on Redis: a pending list
// consumed from the tail, a processing list for claimed work, a delayed set
// scored by ready time, and a dead letter list for exhausted jobs. Every
// multi-key transition runs as a single server-side script.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"clipforge/internal/config"
	"clipforge/internal/logging"
)

// Store is the Redis-backed job queue.
type Store struct {
	client       *redis.Client
	queue        string
	maxRetries   int
	completedTTL time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Open connects to Redis using the configured address and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr()})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr(), err)
	}
	return newStore(client, cfg, logger), nil
}

func newStore(client *redis.Client, cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		client:       client,
		queue:        cfg.Redis.QueueName,
		maxRetries:   cfg.Redis.MaxRetries,
		completedTTL: time.Duration(cfg.Retention.CompletedJobTTLHours) * time.Hour,
		logger:       logging.NewComponentLogger(logger, "queue"),
		now:          time.Now,
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) pendingKey() string    { return s.queue }
func (s *Store) processingKey() string { return s.queue + ":processing" }
func (s *Store) delayedKey() string    { return s.queue + ":delayed" }
func (s *Store) deadLetterKey() string { return s.queue + ":dead_letter" }

func jobKey(id string) string   { return "job:" + id }
func batchKey(id string) string { return "batch:" + id }

const (
	statsEnqueuedKey  = "stats:enqueued"
	statsCompletedKey = "stats:completed"
	statsFailedKey    = "stats:failed"
)

// Job loads one job record by id. A missing record returns (nil, nil):
// completed records expire and callers treat absence as routine.
func (s *Store) Job(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.HGet(ctx, jobKey(id), "data").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return decodeJob(id, []byte(data))
}

func decodeJob(id string, data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &job, nil
}

func encodeJob(job *Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return string(data), nil
}

func (s *Store) saveJob(ctx context.Context, job *Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, jobKey(job.ID), "data", data).Err(); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}
