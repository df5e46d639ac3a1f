package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

const (
	jobKeyPrefix        = "job:"
	submissionKeySuffix = ":request"
	pendingQueueKey     = "jobs:pending"

	// casAttempts bounds optimistic-concurrency retries per update.
	casAttempts = 10
)

// RedisStore keeps each job as a JSON document at job:<id> with a
// sliding TTL, the submission at job:<id>:request, and queued job ids
// on a list the workers block on.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{
		rdb:    rdb,
		ttl:    JobTTL,
		logger: logger.With("component", "jobstore"),
	}, nil
}

func jobKey(jobID string) string        { return jobKeyPrefix + jobID }
func submissionKey(jobID string) string { return jobKey(jobID) + submissionKeySuffix }

func (s *RedisStore) CreateJob(ctx context.Context, job *models.Job, sub *Submission) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.JobID, err)
	}
	subData, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission %s: %w", job.JobID, err)
	}

	ok, err := s.rdb.SetNX(ctx, jobKey(job.JobID), jobData, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.JobID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, job.JobID)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, submissionKey(job.JobID), subData, s.ttl)
	pipe.RPush(ctx, pendingQueueKey, job.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}

	s.logger.Info("job enqueued", "job_id", job.JobID)
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := s.rdb.GetEx(ctx, jobKey(jobID), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	// Keep the request alive as long as the record is being read.
	s.rdb.Expire(ctx, submissionKey(jobID), s.ttl)
	return &job, nil
}

func (s *RedisStore) GetSubmission(ctx context.Context, jobID string) (*Submission, error) {
	data, err := s.rdb.GetEx(ctx, submissionKey(jobID), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission %s: %w", jobID, err)
	}
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", jobID, err)
	}
	return &sub, nil
}

// UpdateJob reads, mutates, and writes the record inside a WATCH so a
// concurrent writer forces a retry instead of a lost update.
func (s *RedisStore) UpdateJob(ctx context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error) {
	key := jobKey(jobID)
	var updated *models.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		if err != nil {
			return err
		}

		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to decode job %s: %w", jobID, err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		job.RecomputeTokenTotal()

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job %s: %w", jobID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to update job %s: too many concurrent writers", jobID)
}

func (s *RedisStore) ClaimNext(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.rdb.BLPop(ctx, timeout, pendingQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoPendingJob
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop pending queue: %w", err)
	}
	jobID := res[1]

	if _, err := s.UpdateJob(ctx, jobID, claim); err != nil {
		if errors.Is(err, ErrNoPendingJob) || errors.Is(err, ErrJobNotFound) {
			return "", ErrNoPendingJob
		}
		return "", err
	}
	return jobID, nil
}

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
