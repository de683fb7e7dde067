package queue

import "encoding/json"

// Status describes where a job sits in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetry      Status = "retry"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Payload is the caller-supplied description of the work to perform.
type Payload struct {
	PostID       int64  `json:"post_id"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
}

// Job is the durable record tracked through the queue. Timestamps are unix
// seconds.
type Job struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Payload    Payload         `json:"payload"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
	StartedAt  int64           `json:"started_at,omitempty"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	ReadyAt    int64           `json:"ready_at,omitempty"`
	WorkerID   string          `json:"worker_id,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Duration   float64         `json:"duration_seconds,omitempty"`
}

// Stats is a point-in-time snapshot of queue depth and lifetime counters.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Delayed    int64 `json:"delayed"`
	DeadLetter int64 `json:"dead_letter"`
	Enqueued   int64 `json:"enqueued"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// BatchStats summarizes progress for a group of jobs enqueued together.
type BatchStats struct {
	BatchID   string `json:"batch_id"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Pending   int64  `json:"pending"`
	Done      bool   `json:"done"`
	CreatedAt int64  `json:"created_at"`
}
