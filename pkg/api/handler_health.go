package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/minuteman-ai/minuteman/pkg/database"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health. Only the process's own
// dependencies (database, job store, worker pool) are checked; the LLM
// provider is external and excluded so its outages do not restart us.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if s.dbClient != nil {
		if _, err := database.Health(reqCtx, s.dbClient.DB()); err != nil {
			status = healthStatusUnhealthy
			checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["database"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if pinger, ok := s.store.(storePinger); ok {
		if err := pinger.Ping(reqCtx); err != nil {
			status = healthStatusUnhealthy
			checks["job_store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["job_store"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.pool != nil {
		poolHealth := s.pool.Health()
		if poolHealth != nil && !poolHealth.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: "no active workers"}
		} else {
			checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{Status: status, Checks: checks})
}
