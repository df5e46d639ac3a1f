// Package jobstore persists job records and submissions, and hands
// queued work to the worker pool. The production store is Redis; an
// in-memory store backs tests.
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// JobTTL is the sliding retention window for job records. Any read or
// write pushes expiry out again.
const JobTTL = 24 * time.Hour

var (
	ErrJobNotFound   = errors.New("jobstore: job not found")
	ErrNoPendingJob  = errors.New("jobstore: no pending job")
	ErrAlreadyExists = errors.New("jobstore: job already exists")
)

// StageOptions is the per-stage slice of a submission's options block.
type StageOptions struct {
	IncludeTranscript *bool  `json:"include_transcript,omitempty"`
	Mode              string `json:"mode,omitempty"`
	MaxChars          int    `json:"max_chars,omitempty"`
}

// Submission is the immutable request payload a worker needs to run a
// job: the raw transcript plus the resolved selections and overrides.
type Submission struct {
	JobID      string `json:"job_id"`
	Filename   string `json:"filename,omitempty"`
	Transcript string `json:"transcript"`

	StageA []string `json:"stage_a"`
	StageB []string `json:"stage_b"`
	Final  []string `json:"final"`

	// PromptOverrides maps stage → slug → prompt path.
	PromptOverrides map[models.StageKey]map[string]string `json:"prompt_overrides,omitempty"`
	// Models maps stage → model override.
	Models map[models.StageKey]string `json:"models,omitempty"`

	StageBOptions StageOptions `json:"stage_b_options,omitempty"`
	FinalOptions  StageOptions `json:"final_options,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// Store is the persistence surface shared by the API and worker pool.
type Store interface {
	// CreateJob persists the job record and submission, then enqueues
	// the job for a worker.
	CreateJob(ctx context.Context, job *models.Job, sub *Submission) error

	// GetJob returns a snapshot of the job and refreshes its TTL.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// GetSubmission returns the submission payload for a job.
	GetSubmission(ctx context.Context, jobID string) (*Submission, error)

	// UpdateJob applies fn to the current record under optimistic
	// concurrency and persists the result. fn may be retried.
	UpdateJob(ctx context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error)

	// ClaimNext blocks up to timeout for a queued job and claims it for
	// the caller by moving it to processing. Returns ErrNoPendingJob
	// when the wait times out.
	ClaimNext(ctx context.Context, timeout time.Duration) (string, error)

	Close() error
}

// claim transitions a popped job to processing. A job that is no
// longer queued (requeued duplicate, cancelled) is not claimable.
func claim(job *models.Job) error {
	if job.Status != models.JobStatusQueued {
		return ErrNoPendingJob
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	return nil
}
