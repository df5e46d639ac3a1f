package config

import "time"

// QueueConfig contains worker pool configuration. These values control how
// queued jobs are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica.
	// Each worker independently polls and claims queued jobs.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentJobs limits how many jobs this replica processes at once.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// PollInterval is the base interval for checking queued jobs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// JobTimeout is the maximum wall-clock time for one pipeline run.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// AnalyzerTimeout is the soft per-analyzer deadline. A timed-out
	// analyzer records an error; siblings continue.
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active jobs
	// to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentJobs:       5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              15 * time.Minute,
		AnalyzerTimeout:         10 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
	}
}
