// Package queue provides the worker pool that drains the job queue and
// hands claimed jobs to the pipeline executor.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrAtCapacity indicates the replica-wide concurrent job limit has been
// reached and no further jobs should be claimed right now.
var ErrAtCapacity = errors.New("at capacity")

// JobExecutor runs one claimed job end to end.
//
// The executor owns the ENTIRE job lifecycle internally: it loads the
// submission, runs all stages, writes artifacts, publishes events, and
// persists the terminal job status. The worker only handles claiming,
// the job timeout, and concurrency accounting. The returned error is
// for logging; by the time Execute returns, the job record already
// carries its terminal state.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string) error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveJobs    int            `json:"active_jobs"`
	MaxConcurrent int            `json:"max_concurrent"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
