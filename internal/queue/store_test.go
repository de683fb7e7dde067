package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clipforge/internal/config"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.Default()
	cfg.Redis.QueueName = "video_compression_queue"
	cfg.Redis.MaxRetries = 3
	cfg.Retention.CompletedJobTTLHours = 24
	return newStore(client, &cfg, nil), mr
}

func testPayload(postID int64) Payload {
	return Payload{
		PostID:     postID,
		VideoURL:   "https://cdn.example.com/source.mp4",
		WebhookURL: "https://app.example.com/hooks/video",
	}
}

func TestEnqueueAndClaim(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, testPayload(1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !strings.HasPrefix(job.ID, "job_") {
		t.Fatalf("job id = %q", job.ID)
	}
	if job.Status != StatusPending || job.MaxRetries != 3 {
		t.Fatalf("job = %+v", job)
	}

	claimed, err := store.ClaimNext(ctx, "worker_1", time.Second)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed = %+v", claimed)
	}
	if claimed.Status != StatusProcessing || claimed.Attempts != 1 {
		t.Fatalf("claim did not stamp job: %+v", claimed)
	}
	if claimed.WorkerID != "worker_1" || claimed.StartedAt == 0 {
		t.Fatalf("claim did not stamp worker: %+v", claimed)
	}

	stored, err := store.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if stored.Status != StatusProcessing {
		t.Fatalf("stored status = %q", stored.Status)
	}
}

func TestClaimOrderIsFIFO(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	first, _ := store.Enqueue(ctx, testPayload(1))
	second, _ := store.Enqueue(ctx, testPayload(2))

	claimed, err := store.ClaimNext(ctx, "w", time.Second)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v %v", claimed, err)
	}
	if claimed.ID != first.ID {
		t.Fatalf("claimed %s first, want %s", claimed.ID, first.ID)
	}
	claimed, _ = store.ClaimNext(ctx, "w", time.Second)
	if claimed.ID != second.ID {
		t.Fatalf("claimed %s second, want %s", claimed.ID, second.ID)
	}
}

func TestClaimTimesOutEmpty(t *testing.T) {
	store, _ := testStore(t)

	job, err := store.ClaimNext(context.Background(), "w", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %+v from empty queue", job)
	}
}

func TestCompleteFinalizesAndExpires(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	job, _ := store.Enqueue(ctx, testPayload(1))
	if _, err := store.ClaimNext(ctx, "w", time.Second); err != nil {
		t.Fatal(err)
	}

	store.now = func() time.Time { return base.Add(100 * time.Second) }
	result := json.RawMessage(`{"status":"success"}`)
	done, err := store.Complete(ctx, job.ID, result)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done {
		t.Fatal("expected completion to apply")
	}

	stored, _ := store.Job(ctx, job.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.Duration != 100 {
		t.Fatalf("duration = %v, want completed_at - created_at = 100", stored.Duration)
	}
	if ttl := mr.TTL("job:" + job.ID); ttl != 24*time.Hour {
		t.Fatalf("record ttl = %s, want 24h", ttl)
	}

	stats, _ := store.Stats(ctx)
	if stats.Processing != 0 || stats.Completed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	again, err := store.Complete(ctx, job.ID, result)
	if err != nil {
		t.Fatalf("duplicate Complete: %v", err)
	}
	if again {
		t.Fatal("duplicate completion should be a no-op")
	}
	if stats, _ = store.Stats(ctx); stats.Completed != 1 {
		t.Fatalf("duplicate completion bumped counters: %+v", stats)
	}
}

func TestFailSchedulesRetryWithBackoff(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	job, _ := store.Enqueue(ctx, testPayload(1))
	if _, err := store.ClaimNext(ctx, "w", time.Second); err != nil {
		t.Fatal(err)
	}

	requeued, err := store.Fail(ctx, job.ID, "transcode failed")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !requeued {
		t.Fatal("first failure should schedule a retry")
	}

	stored, _ := store.Job(ctx, job.ID)
	if stored.Status != StatusRetry || stored.LastError != "transcode failed" {
		t.Fatalf("stored = %+v", stored)
	}
	if want := base.Add(60 * time.Second).Unix(); stored.ReadyAt != want {
		t.Fatalf("ready at %d, want %d", stored.ReadyAt, want)
	}

	stats, _ := store.Stats(ctx)
	if stats.Processing != 0 || stats.Delayed != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRetryDelaySchedule(t *testing.T) {
	want := map[int]time.Duration{
		1: 60 * time.Second,
		2: 120 * time.Second,
		3: 240 * time.Second,
	}
	for attempts, delay := range want {
		if got := retryDelay(attempts); got != delay {
			t.Fatalf("retryDelay(%d) = %s, want %s", attempts, got, delay)
		}
	}
}

func TestFailDeadLettersAfterMaxAttempts(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	var offset time.Duration
	store.now = func() time.Time { return time.Now().Add(offset) }

	job, _ := store.Enqueue(ctx, testPayload(1))
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := store.PromoteDelayed(ctx); err != nil {
			t.Fatal(err)
		}
		claimed, err := store.ClaimNext(ctx, "w", time.Second)
		if err != nil || claimed == nil {
			t.Fatalf("attempt %d claim: %+v %v", attempt, claimed, err)
		}
		requeued, err := store.Fail(ctx, job.ID, "boom")
		if err != nil {
			t.Fatalf("attempt %d fail: %v", attempt, err)
		}
		if attempt < 3 && !requeued {
			t.Fatalf("attempt %d should retry", attempt)
		}
		if attempt == 3 && requeued {
			t.Fatal("attempt 3 should dead letter")
		}
		offset += time.Hour
	}

	stored, _ := store.Job(ctx, job.ID)
	if stored.Status != StatusFailed || stored.Attempts != 3 {
		t.Fatalf("stored = %+v", stored)
	}

	dead, err := store.DeadLetterJobs(ctx, 10)
	if err != nil {
		t.Fatalf("DeadLetterJobs: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != job.ID {
		t.Fatalf("dead letter = %+v", dead)
	}

	stats, _ := store.Stats(ctx)
	if stats.DeadLetter != 1 || stats.Failed != 1 || stats.Delayed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFailThenSucceedOnLaterAttempt(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, testPayload(1))
	for attempt := 1; attempt <= 2; attempt++ {
		store.now = time.Now
		if _, err := store.ClaimNext(ctx, "w", time.Second); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Fail(ctx, job.ID, "boom"); err != nil {
			t.Fatal(err)
		}
		store.now = func() time.Time { return time.Now().Add(time.Hour) }
		if _, err := store.PromoteDelayed(ctx); err != nil {
			t.Fatal(err)
		}
	}

	claimed, err := store.ClaimNext(ctx, "w", time.Second)
	if err != nil || claimed == nil {
		t.Fatalf("final claim: %+v %v", claimed, err)
	}
	if claimed.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", claimed.Attempts)
	}
	done, err := store.Complete(ctx, job.ID, json.RawMessage(`{}`))
	if err != nil || !done {
		t.Fatalf("Complete: %v %v", done, err)
	}

	stored, _ := store.Job(ctx, job.ID)
	if stored.Status != StatusCompleted || stored.LastError == "" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestPromoteDelayedMovesOnlyDueJobs(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	due, _ := store.Enqueue(ctx, testPayload(1))
	later, _ := store.Enqueue(ctx, testPayload(2))
	for i := 0; i < 2; i++ {
		if _, err := store.ClaimNext(ctx, "w", time.Second); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Fail(ctx, due.ID, "boom"); err != nil {
		t.Fatal(err)
	}
	store.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, err := store.Fail(ctx, later.ID, "boom"); err != nil {
		t.Fatal(err)
	}

	store.now = func() time.Time { return base.Add(70 * time.Second) }
	promoted, err := store.PromoteDelayed(ctx)
	if err != nil {
		t.Fatalf("PromoteDelayed: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("promoted = %d, want 1", promoted)
	}

	claimed, _ := store.ClaimNext(ctx, "w", time.Second)
	if claimed == nil || claimed.ID != due.ID {
		t.Fatalf("claimed = %+v, want %s", claimed, due.ID)
	}

	promoted, _ = store.PromoteDelayed(ctx)
	if promoted != 0 {
		t.Fatalf("second promote moved %d jobs", promoted)
	}
}

func TestEnqueueBatchTracksProgress(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	batchID, jobs, err := store.EnqueueBatch(ctx, []Payload{
		testPayload(1), testPayload(2), testPayload(3),
	})
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	if len(jobs) != 3 || !strings.HasPrefix(batchID, "batch_") {
		t.Fatalf("batch = %s jobs = %d", batchID, len(jobs))
	}
	for _, job := range jobs {
		if job.Payload.BatchID != batchID {
			t.Fatalf("job %s missing batch id", job.ID)
		}
	}

	for i := 0; i < 3; i++ {
		claimed, err := store.ClaimNext(ctx, "w", time.Second)
		if err != nil || claimed == nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if i < 2 {
			if _, err := store.Complete(ctx, claimed.ID, json.RawMessage(`{}`)); err != nil {
				t.Fatal(err)
			}
		} else {
			claimed.Attempts = claimed.MaxRetries
			if err := store.saveJob(ctx, claimed); err != nil {
				t.Fatal(err)
			}
			if _, err := store.Fail(ctx, claimed.ID, "boom"); err != nil {
				t.Fatal(err)
			}
		}
	}

	progress, err := store.BatchStats(ctx, batchID)
	if err != nil {
		t.Fatalf("BatchStats: %v", err)
	}
	if progress.Total != 3 || progress.Completed != 2 || progress.Failed != 1 {
		t.Fatalf("progress = %+v", progress)
	}
	if progress.Pending != 0 || !progress.Done {
		t.Fatalf("progress = %+v", progress)
	}
}

func TestEnqueueBatchRejectsBadPayloadWithoutWrites(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	_, _, err := store.EnqueueBatch(ctx, []Payload{
		testPayload(1),
		{PostID: 2}, // no video url
		testPayload(3),
	})
	if err == nil {
		t.Fatal("expected error for invalid payload")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 0 || stats.Enqueued != 0 {
		t.Fatalf("partial batch left state behind: %+v", stats)
	}
	keys, err := store.scanKeys(ctx, "batch:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("partial batch left records %v", keys)
	}
}

func TestBatchStatsUnknownBatch(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.BatchStats(context.Background(), "batch_missing"); err == nil {
		t.Fatal("expected error for unknown batch")
	}
}

func TestEnqueueValidation(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, Payload{PostID: 1}); err == nil {
		t.Fatal("expected error for missing video url")
	}
	if _, err := store.Enqueue(ctx, Payload{VideoURL: "https://x/y.mp4"}); err == nil {
		t.Fatal("expected error for missing post id")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, _, err := store.EnqueueBatch(ctx, []Payload{testPayload(1), testPayload(2)}); err != nil {
		t.Fatal(err)
	}
	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if deleted == 0 {
		t.Fatal("expected deleted keys")
	}

	stats, _ := store.Stats(ctx)
	if stats.Pending != 0 || stats.Enqueued != 0 {
		t.Fatalf("stats after clear = %+v", stats)
	}
}

func TestSweepCompletedRemovesExpiredRecords(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	job, _ := store.Enqueue(ctx, testPayload(1))
	if _, err := store.ClaimNext(ctx, "w", time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Complete(ctx, job.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}

	removed, err := store.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("SweepCompleted: %v", err)
	}
	if removed != 0 {
		t.Fatal("fresh record should survive the sweep")
	}

	store.now = func() time.Time { return base.Add(25 * time.Hour) }
	removed, err = store.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("SweepCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if stored, _ := store.Job(ctx, job.ID); stored != nil {
		t.Fatal("expired record should be gone")
	}
}
