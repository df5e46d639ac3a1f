package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
)

// workerStatus represents the current state of a worker.
type workerStatus string

const (
	workerStatusIdle    workerStatus = "idle"
	workerStatusWorking workerStatus = "working"
)

// jobRegistry is the subset of WorkerPool used by Worker for job
// registration and concurrency slots.
type jobRegistry interface {
	RegisterJob(jobID string, cancel context.CancelFunc)
	UnregisterJob(jobID string)
	acquireSlot() error
	releaseSlot()
}

// Worker is a single queue worker that claims and processes jobs.
type Worker struct {
	id       string
	store    jobstore.Store
	config   *config.QueueConfig
	executor JobExecutor
	pool     jobRegistry
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu            sync.RWMutex
	status        workerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

func newWorker(index int, store jobstore.Store, cfg *config.QueueConfig, executor JobExecutor, pool jobRegistry, logger *slog.Logger) *Worker {
	id := fmt.Sprintf("worker-%d", index)
	return &Worker{
		id:           id,
		store:        store,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		logger:       logger.With("worker_id", id),
		stopCh:       make(chan struct{}),
		status:       workerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for its current job to
// finish. It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.logger.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			w.logger.Info("worker shutting down")
			return
		case <-ctx.Done():
			w.logger.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.claimAndProcess(ctx); err != nil {
				switch {
				case errors.Is(err, jobstore.ErrNoPendingJob):
					// ClaimNext already blocked for the poll interval;
					// only the jitter remains.
					w.sleep(w.pollJitter())
				case errors.Is(err, ErrAtCapacity):
					w.sleep(w.pollInterval())
				case ctx.Err() != nil:
					continue
				default:
					w.logger.Error("error processing job", "error", err)
					w.sleep(time.Second)
				}
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// claimAndProcess takes a concurrency slot, claims a job, and runs it.
func (w *Worker) claimAndProcess(ctx context.Context) error {
	if err := w.pool.acquireSlot(); err != nil {
		return err
	}
	defer w.pool.releaseSlot()

	jobID, err := w.store.ClaimNext(ctx, w.config.PollInterval)
	if err != nil {
		return err
	}

	log := w.logger.With("job_id", jobID)
	log.Info("job claimed")

	w.setStatus(workerStatusWorking, jobID)
	defer w.setStatus(workerStatusIdle, "")

	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancelJob()

	// Register for API-triggered cancellation.
	w.pool.RegisterJob(jobID, cancelJob)
	defer w.pool.UnregisterJob(jobID)

	start := time.Now()
	if err := w.executor.Execute(jobCtx, jobID); err != nil {
		log.Error("job finished with error", "error", err, "duration", time.Since(start))
	} else {
		log.Info("job processing complete", "duration", time.Since(start))
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	return nil
}

// pollInterval returns the poll duration with jitter applied.
// Range: [base - jitter, base + jitter].
func (w *Worker) pollInterval() time.Duration {
	return w.config.PollInterval - w.config.PollIntervalJitter + w.pollJitter()
}

// pollJitter returns a random duration in [0, 2*jitter).
func (w *Worker) pollJitter() time.Duration {
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(2 * jitter)))
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status workerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
