package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// listAnalyzersHandler handles GET /api/v1/analyzers.
func (s *Server) listAnalyzersHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, analyzersResponse(s.analyzers.Load()))
}

// createAnalyzerHandler handles POST /api/v1/analyzers: write a custom
// prompt file under the stage's prompt directory and rescan.
func (s *Server) createAnalyzerHandler(c *echo.Context) error {
	var req CreateAnalyzerRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	stage := models.StageKey(req.Stage)
	if !stage.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "stage must be stage_a, stage_b, or final")
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	filename := req.Name
	if !strings.EqualFold(filepath.Ext(filename), ".md") {
		filename += ".md"
	}
	if filepath.Base(filename) != filename {
		return echo.NewHTTPError(http.StatusBadRequest, "name must not contain path separators")
	}

	slug := config.SlugFromFilename(filename)
	if config.IsBuiltinSlug(slug) {
		return echo.NewHTTPError(http.StatusConflict, "slug collides with a built-in analyzer: "+slug)
	}
	reg := s.analyzers.Load()
	if _, exists := reg.Get(slug); exists {
		return echo.NewHTTPError(http.StatusConflict, "analyzer already exists: "+slug)
	}

	rel := filepath.ToSlash(filepath.Join(config.StageDir(stage), filename))
	abs, err := reg.ResolvePromptPath(rel)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := os.WriteFile(abs, []byte(req.Content), 0o644); err != nil {
		s.logger.Error("failed to write prompt file", "path", abs, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to write prompt file")
	}

	if _, err := reg.ValidatePromptFile(rel, stage); err != nil {
		// Roll the file back so an invalid template does not linger.
		_ = os.Remove(abs)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fresh, err := s.analyzers.Rescan()
	if err != nil {
		s.logger.Error("analyzer rescan failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "analyzer rescan failed")
	}

	spec, ok := fresh.Get(slug)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "analyzer not visible after rescan")
	}

	s.logger.Info("custom analyzer created", "slug", slug, "stage", stage)
	return c.JSON(http.StatusCreated, analyzerInfo(spec))
}

// rescanAnalyzersHandler handles POST /api/v1/analyzers/rescan.
func (s *Server) rescanAnalyzersHandler(c *echo.Context) error {
	fresh, err := s.analyzers.Rescan()
	if err != nil {
		s.logger.Error("analyzer rescan failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "analyzer rescan failed")
	}
	return c.JSON(http.StatusOK, analyzersResponse(fresh))
}

func analyzersResponse(reg *config.AnalyzerRegistry) *AnalyzersResponse {
	return &AnalyzersResponse{
		StageA: analyzerInfos(reg.StageA),
		StageB: analyzerInfos(reg.StageB),
		Final:  analyzerInfos(reg.Final),
	}
}

func analyzerInfos(specs []config.AnalyzerSpec) []AnalyzerInfo {
	out := make([]AnalyzerInfo, len(specs))
	for i, spec := range specs {
		out[i] = analyzerInfo(spec)
	}
	return out
}

func analyzerInfo(spec config.AnalyzerSpec) AnalyzerInfo {
	return AnalyzerInfo{
		Slug:        spec.Slug,
		DisplayName: spec.DisplayName,
		Stage:       string(spec.Stage),
		Builtin:     spec.Builtin,
		PromptPath:  spec.PromptPath,
	}
}
