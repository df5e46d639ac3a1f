// Minuteman server: accepts meeting transcripts over HTTP, runs the
// staged analysis pipeline on queue workers, and streams progress
// events over WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minuteman-ai/minuteman/pkg/analyzer"
	"github.com/minuteman-ai/minuteman/pkg/api"
	"github.com/minuteman-ai/minuteman/pkg/cleanup"
	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/contextbuild"
	"github.com/minuteman-ai/minuteman/pkg/database"
	"github.com/minuteman-ai/minuteman/pkg/events"
	"github.com/minuteman-ai/minuteman/pkg/insights"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/metrics"
	"github.com/minuteman-ai/minuteman/pkg/pipeline"
	"github.com/minuteman-ai/minuteman/pkg/prompt"
	"github.com/minuteman-ai/minuteman/pkg/queue"
	"github.com/minuteman-ai/minuteman/pkg/tokens"
	"github.com/minuteman-ai/minuteman/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting minuteman", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration and analyzer registry
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	registry := config.NewRegistryHolder(cfg.Analyzers)

	// 2. PostgreSQL (event persistence + NOTIFY fan-out)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Redis job store
	store, err := jobstore.NewRedisStore(ctx, cfg.Redis, slog.Default())
	if err != nil {
		slog.Error("Failed to connect to Redis job store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Error closing job store", "error", err)
		}
	}()
	slog.Info("Connected to Redis job store", "addr", cfg.Redis.Addr)

	// 4. Streaming infrastructure
	eventService := database.NewEventService(dbClient)
	eventPublisher := events.NewEventPublisher(dbClient.DB())
	catchupQuerier := events.NewEventServiceAdapter(eventService)
	connManager := events.NewConnectionManager(catchupQuerier, 10*time.Second)

	notifyListener := events.NewNotifyListener(dbConfig.ConnString(), connManager)
	if err := notifyListener.Start(ctx); err != nil {
		slog.Error("Failed to start NotifyListener", "error", err)
		os.Exit(1)
	}
	defer notifyListener.Stop(ctx)
	connManager.SetListener(notifyListener)
	slog.Info("Streaming infrastructure initialized")

	// Event retention tracks the job store's 24h document TTL.
	retention := cleanup.NewService(cleanup.DefaultConfig(), eventService, slog.Default())
	retention.Start(ctx)
	defer retention.Stop()

	// 5. LLM client and pipeline collaborators
	llmClient, err := llm.NewClient(cfg.LLM, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	counter := tokens.NewCounter(cfg.LLM.Model)
	prompts := prompt.NewBuilder(cfg.Analyzers)
	runner := analyzer.NewRunner(llmClient, prompts, cfg.LLM, cfg.Output, slog.Default())
	summarizer := contextbuild.NewSummarizer(llmClient, counter, cfg.Summary, slog.Default())
	contexts := contextbuild.NewBuilder(counter, cfg.Processing, cfg.Summary, summarizer, slog.Default())
	aggregator := insights.NewAggregator(llmClient, cfg.Insights, slog.Default())

	// 6. Metrics
	promRegistry := prometheus.NewRegistry()
	appMetrics := metrics.New(promRegistry)
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	// 7. Pipeline executor and worker pool
	executor := pipeline.NewExecutor(pipeline.Deps{
		Store:      store,
		Registry:   registry,
		Runner:     runner,
		Contexts:   contexts,
		Aggregator: aggregator,
		Publisher:  eventPublisher,
		Counter:    counter,
		Processing: cfg.Processing,
		Queue:      cfg.Queue,
		Output:     cfg.Output,
		Metrics:    appMetrics,
		Logger:     slog.Default(),
	})

	workerPool := queue.NewWorkerPool(store, cfg.Queue, executor, slog.Default())
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 8. HTTP server
	httpServer := api.NewServer(cfg.Server, store, registry, workerPool, connManager, dbClient, slog.Default())
	httpServer.SetEventPublisher(eventPublisher)
	httpServer.SetMetrics(appMetrics, metricsHandler)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Minuteman started", "workers", cfg.Queue.WorkerCount)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: drain workers first, then close HTTP.
	workerShutdownCtx, workerCancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, in-flight jobs will be reclaimed on restart")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
