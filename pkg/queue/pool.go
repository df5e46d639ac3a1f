package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
)

// WorkerPool manages a pool of queue workers sharing one job store.
type WorkerPool struct {
	store    jobstore.Store
	config   *config.QueueConfig
	executor JobExecutor
	logger   *slog.Logger
	workers  []*Worker
	stopOnce sync.Once

	// Replica-wide concurrency limit. Workers acquire a slot before
	// claiming so a claimed job never waits behind the semaphore.
	slots chan struct{}

	// Job cancel registry: job_id -> cancel function.
	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool
}

// NewWorkerPool creates a worker pool. Start must be called to begin
// draining the queue.
func NewWorkerPool(store jobstore.Store, cfg *config.QueueConfig, executor JobExecutor, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:      store,
		config:     cfg,
		executor:   executor,
		logger:     logger,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		slots:      make(chan struct{}, cfg.MaxConcurrentJobs),
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Start spawns the worker goroutines. It is safe to call multiple
// times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		p.logger.Warn("worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true

	p.logger.Info("starting worker pool",
		"worker_count", p.config.WorkerCount,
		"max_concurrent_jobs", p.config.MaxConcurrentJobs)

	for i := 0; i < p.config.WorkerCount; i++ {
		worker := newWorker(i, p.store, p.config, p.executor, p, p.logger)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.logger.Info("worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for in-flight jobs to
// finish, up to GracefulShutdownTimeout. Jobs still running after the
// deadline keep their contexts and are abandoned to process exit.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(p.stop)
}

func (p *WorkerPool) stop() {
	active := p.activeJobIDs()
	if len(active) > 0 {
		p.logger.Info("waiting for active jobs to complete",
			"count", len(active), "job_ids", active)
	}

	done := make(chan struct{})
	go func() {
		for _, worker := range p.workers {
			worker.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-time.After(p.config.GracefulShutdownTimeout):
		p.logger.Warn("graceful shutdown timeout exceeded, abandoning active jobs",
			"timeout", p.config.GracefulShutdownTimeout,
			"job_ids", p.activeJobIDs())
	}
}

// RegisterJob stores a cancel function for the running job.
func (p *WorkerPool) RegisterJob(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[jobID] = cancel
}

// UnregisterJob removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterJob(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, jobID)
}

// CancelJob triggers context cancellation for a job running on this
// replica. Returns true if the job was found and cancelled.
func (p *WorkerPool) CancelJob(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeJobs[jobID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(workerStatusWorking) {
			activeWorkers++
		}
	}

	p.mu.RLock()
	activeJobs := len(p.activeJobs)
	p.mu.RUnlock()

	return &PoolHealth{
		IsHealthy:     len(p.workers) > 0 && activeJobs <= p.config.MaxConcurrentJobs,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		ActiveJobs:    activeJobs,
		MaxConcurrent: p.config.MaxConcurrentJobs,
		WorkerStats:   workerStats,
	}
}

// acquireSlot takes a concurrency slot, or fails fast with
// ErrAtCapacity when all slots are busy.
func (p *WorkerPool) acquireSlot() error {
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
		return ErrAtCapacity
	}
}

func (p *WorkerPool) releaseSlot() {
	<-p.slots
}

func (p *WorkerPool) activeJobIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeJobs))
	for id := range p.activeJobs {
		ids = append(ids, id)
	}
	return ids
}
