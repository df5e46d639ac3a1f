package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// bodySlackBytes allows for JSON overhead around the transcript when
// bounding the request body.
const bodySlackBytes = 1 << 20

// submitHandler handles POST /api/v1/jobs. Validation failures reject
// the request before any job state is created.
func (s *Server) submitHandler(c *echo.Context) error {
	limit := s.cfg.MaxTranscriptBytes + bodySlackBytes
	body := http.MaxBytesReader(c.Response(), c.Request().Body, limit)

	var req SubmitRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", limit))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if strings.TrimSpace(req.Transcript) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}
	if s.cfg.MaxTranscriptBytes > 0 && int64(len(req.Transcript)) > s.cfg.MaxTranscriptBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("transcript exceeds %d bytes", s.cfg.MaxTranscriptBytes))
	}

	reg := s.analyzers.Load()

	stageA, err := resolveSelection(reg, models.StageA, req.Selected.StageA)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stageB, err := resolveSelection(reg, models.StageB, req.Selected.StageB)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	final, err := resolveSelection(reg, models.StageFinal, req.Selected.Final)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(stageA)+len(stageB)+len(final) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no analyzers selected")
	}

	overrides, err := resolveOverrides(reg, req.PromptOverrides)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	modelOverrides, err := resolveModels(req.Options.Models)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stageBOpts, err := stageOptions(req.Options.StageB)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	finalOpts, err := stageOptions(req.Options.Final)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	jobID := uuid.New().String()
	job := models.NewJob(jobID, stageA, stageB, final)
	sub := &jobstore.Submission{
		JobID:           jobID,
		Filename:        req.Filename,
		Transcript:      req.Transcript,
		StageA:          stageA,
		StageB:          stageB,
		Final:           final,
		PromptOverrides: overrides,
		Models:          modelOverrides,
		StageBOptions:   stageBOpts,
		FinalOptions:    finalOpts,
		SubmittedAt:     time.Now().UTC(),
	}

	ctx := c.Request().Context()
	if err := s.store.CreateJob(ctx, job, sub); err != nil {
		return mapStoreError(err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishJobQueued(ctx, jobID); err != nil {
			s.logger.Warn("failed to publish job.queued", "job_id", jobID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.JobsSubmitted.Inc()
	}

	s.logger.Info("job submitted",
		"job_id", jobID,
		"stage_a", len(stageA), "stage_b", len(stageB), "final", len(final),
		"transcript_bytes", len(req.Transcript))

	return c.JSON(http.StatusAccepted, &SubmitResponse{JobID: jobID, QueuedAt: sub.SubmittedAt})
}

// getJobHandler handles GET /api/v1/jobs/:id.
func (s *Server) getJobHandler(c *echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job id is required")
	}

	job, err := s.store.GetJob(c.Request().Context(), jobID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, job)
}

// resolveSelection validates a stage's requested slugs. A nil list
// selects the stage's built-ins; an empty list skips the stage.
func resolveSelection(reg *config.AnalyzerRegistry, stage models.StageKey, requested []string) ([]string, error) {
	if requested == nil {
		return reg.DefaultSlugs(stage), nil
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, slug := range requested {
		if seen[slug] {
			return nil, fmt.Errorf("duplicate analyzer %q in %s selection", slug, stage)
		}
		seen[slug] = true

		spec, ok := reg.Get(slug)
		if !ok {
			return nil, fmt.Errorf("unknown analyzer %q", slug)
		}
		if spec.Stage != stage {
			return nil, fmt.Errorf("analyzer %q belongs to stage %s, not %s", slug, spec.Stage, stage)
		}
		out = append(out, slug)
	}
	return out, nil
}

// resolveOverrides validates prompt override paths against the prompts
// root and each stage's required template variables.
func resolveOverrides(reg *config.AnalyzerRegistry, raw map[string]map[string]string) (map[models.StageKey]map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[models.StageKey]map[string]string, len(raw))
	for stageStr, bySlug := range raw {
		stage := models.StageKey(stageStr)
		if !stage.IsValid() {
			return nil, fmt.Errorf("unknown stage %q in prompt_overrides", stageStr)
		}
		for slug, path := range bySlug {
			if _, err := reg.ValidatePromptFile(path, stage); err != nil {
				return nil, fmt.Errorf("prompt override for %s/%s: %v", stage, slug, err)
			}
			if out[stage] == nil {
				out[stage] = make(map[string]string)
			}
			out[stage][slug] = path
		}
	}
	return out, nil
}

func resolveModels(raw map[string]string) (map[models.StageKey]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[models.StageKey]string, len(raw))
	for stageStr, model := range raw {
		stage := models.StageKey(stageStr)
		if !stage.IsValid() {
			return nil, fmt.Errorf("unknown stage %q in options.models", stageStr)
		}
		if model != "" {
			out[stage] = model
		}
	}
	return out, nil
}

func stageOptions(req *StageOptionsRequest) (jobstore.StageOptions, error) {
	if req == nil {
		return jobstore.StageOptions{}, nil
	}
	if req.Mode != "" && !config.TranscriptMode(req.Mode).IsValid() {
		return jobstore.StageOptions{}, fmt.Errorf("invalid transcript mode %q: must be full or summary", req.Mode)
	}
	if req.MaxChars < 0 {
		return jobstore.StageOptions{}, fmt.Errorf("max_chars must not be negative")
	}
	return jobstore.StageOptions{
		IncludeTranscript: req.IncludeTranscript,
		Mode:              req.Mode,
		MaxChars:          req.MaxChars,
	}, nil
}
