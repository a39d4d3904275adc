// Package queue implements the durable parse-queue pipeline (C6/C7): a
// Redis Streams producer/consumer-group client and the parse worker loop
// that drains it, grounded on original_source's redis_client.py (both
// the API-side producer and the worker-side consumer) and on the
// teacher's pool.go/worker.go pool-of-goroutines shape.
package queue

import "errors"

// StreamName is the single stream every file upload is enqueued on
// (spec.md §6).
const StreamName = "file_parsing_queue"

// FieldFileID is the required message field carrying the file's ID.
const FieldFileID = "file_id"

// Sentinel errors for queue operations.
var (
	// ErrNoMessages indicates a read_group call returned nothing before
	// its block timeout elapsed.
	ErrNoMessages = errors.New("queue: no messages available")
)

// PoolHealth summarizes the worker pool for the API's health endpoint.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	WorkerCount   int            `json:"worker_count"`
	QueueLength   int64          `json:"queue_length"`
	PendingCount  int64          `json:"pending_count"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth reports one worker's current state.
type WorkerHealth struct {
	ID                string `json:"id"`
	Status            string `json:"status"` // "idle" or "working"
	CurrentFileID     string `json:"current_file_id,omitempty"`
	FilesProcessed    int    `json:"files_processed"`
}
