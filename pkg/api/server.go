// Package api exposes the HTTP surface: submission, job status,
// analyzer management, the WebSocket event stream, health, and
// metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/database"
	"github.com/minuteman-ai/minuteman/pkg/events"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/metrics"
	"github.com/minuteman-ai/minuteman/pkg/queue"
)

// queuedPublisher is the slice of the event publisher the API needs.
type queuedPublisher interface {
	PublishJobQueued(ctx context.Context, jobID string) error
}

// storePinger is implemented by stores that can report connectivity.
type storePinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server. Construct with NewServer, then attach
// optional collaborators with the Set methods before Start.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	cfg         *config.ServerConfig
	store       jobstore.Store
	analyzers   *config.RegistryHolder
	pool        *queue.WorkerPool
	connManager *events.ConnectionManager
	dbClient    *database.Client
	publisher   queuedPublisher
	metrics     *metrics.Metrics
	metricsH    http.Handler
	logger      *slog.Logger
}

func NewServer(cfg *config.ServerConfig, store jobstore.Store, analyzers *config.RegistryHolder, pool *queue.WorkerPool, connManager *events.ConnectionManager, dbClient *database.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		echo:        echo.New(),
		cfg:         cfg,
		store:       store,
		analyzers:   analyzers,
		pool:        pool,
		connManager: connManager,
		dbClient:    dbClient,
		logger:      logger.With("component", "api"),
	}
	s.setupRoutes()
	return s
}

// SetEventPublisher wires the publisher used for job.queued events.
func (s *Server) SetEventPublisher(p queuedPublisher) {
	s.publisher = p
}

// SetMetrics wires the Prometheus collectors plus the /metrics handler.
func (s *Server) SetMetrics(m *metrics.Metrics, handler http.Handler) {
	s.metrics = m
	s.metricsH = handler
}

// securityHeaders sets hardening headers on every response. The API
// serves no HTML, so framing and sensor permissions are denied.
func securityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		return next(c)
	}
}

func (s *Server) setupRoutes() {
	e := s.echo
	e.Use(securityHeaders)

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", s.metricsHandler)
	e.GET("/ws", s.wsHandler)

	e.POST("/api/v1/jobs", s.submitHandler)
	e.GET("/api/v1/jobs/:id", s.getJobHandler)

	e.GET("/api/v1/analyzers", s.listAnalyzersHandler)
	e.POST("/api/v1/analyzers", s.createAnalyzerHandler)
	e.POST("/api/v1/analyzers/rescan", s.rescanAnalyzersHandler)
}

// Start runs the HTTP server. Blocks until shutdown or failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting new connections and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) metricsHandler(c *echo.Context) error {
	if s.metricsH == nil {
		return echo.NewHTTPError(http.StatusNotFound, "metrics not enabled")
	}
	s.metricsH.ServeHTTP(c.Response(), c.Request())
	return nil
}
