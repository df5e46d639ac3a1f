package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/minuteman-ai/minuteman/pkg/jobstore"
)

// mapStoreError maps job store errors to HTTP error responses.
func mapStoreError(err error) *echo.HTTPError {
	if errors.Is(err, jobstore.ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if errors.Is(err, jobstore.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "job already exists")
	}

	slog.Error("Unexpected job store error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
