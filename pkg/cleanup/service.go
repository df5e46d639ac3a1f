// Package cleanup provides the event retention service.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Config controls the retention loop.
type Config struct {
	// Interval between cleanup passes.
	Interval time.Duration
	// EventTTL is how long persisted events are kept. Should track the
	// job store's document TTL so the event table does not outlive jobs.
	EventTTL time.Duration
}

// DefaultConfig returns the standard retention settings: hourly passes,
// events kept for 24 hours.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		EventTTL: 24 * time.Hour,
	}
}

// eventPruner removes events past their retention window.
// *database.EventService satisfies it.
type eventPruner interface {
	CleanupExpiredEvents(ctx context.Context, ttl time.Duration) (int, error)
}

// Service periodically removes expired event rows. Deletes are
// idempotent and safe to run from multiple replicas.
type Service struct {
	config Config
	events eventPruner
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, events eventPruner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = DefaultConfig().EventTTL
	}
	return &Service{
		config: cfg,
		events: events,
		logger: logger.With("component", "cleanup"),
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"event_ttl", s.config.EventTTL,
		"interval", s.config.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.cleanupExpiredEvents(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpiredEvents(ctx)
		}
	}
}

func (s *Service) cleanupExpiredEvents(ctx context.Context) {
	count, err := s.events.CleanupExpiredEvents(ctx, s.config.EventTTL)
	if err != nil {
		s.logger.Error("Retention: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: removed expired events", "count", count)
	}
}
