package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// MemoryStore is a Store for tests and single-process runs. Records
// round-trip through JSON so behavior matches the Redis store.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[string][]byte
	submissions map[string][]byte
	pending     chan string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string][]byte),
		submissions: make(map[string][]byte),
		pending:     make(chan string, 1024),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.Job, sub *Submission) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return err
	}
	subData, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.jobs[job.JobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, job.JobID)
	}
	s.jobs[job.JobID] = jobData
	s.submissions[job.JobID] = subData
	s.mu.Unlock()

	s.pending <- job.JobID
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	data, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, jobID string) (*Submission, error) {
	s.mu.Lock()
	data, ok := s.submissions[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if err := fn(&job); err != nil {
		return nil, err
	}
	job.RecomputeTokenTotal()

	out, err := json.Marshal(&job)
	if err != nil {
		return nil, err
	}
	s.jobs[jobID] = out
	return &job, nil
}

func (s *MemoryStore) ClaimNext(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case jobID := <-s.pending:
		if _, err := s.UpdateJob(ctx, jobID, claim); err != nil {
			return "", ErrNoPendingJob
		}
		return jobID, nil
	case <-timer.C:
		return "", ErrNoPendingJob
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *MemoryStore) Close() error {
	return nil
}
