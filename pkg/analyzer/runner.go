// Package analyzer executes a single analyzer: render its prompt, call
// the model, normalize the output, and mine insights and concepts.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/prompt"
)

// RunOptions carries per-run overrides from the submit request.
type RunOptions struct {
	// PromptOverride replaces the spec's prompt path for this run.
	PromptOverride string
	// ModelOverride replaces the configured model for this run's stage.
	ModelOverride string
}

// Runner executes analyzers against a completion client. Stateless and
// safe for concurrent use.
type Runner struct {
	client  llm.Client
	prompts *prompt.Builder
	llmCfg  *config.LLMConfig
	output  *config.OutputConfig
	logger  *slog.Logger
}

func NewRunner(client llm.Client, prompts *prompt.Builder, llmCfg *config.LLMConfig, output *config.OutputConfig, logger *slog.Logger) *Runner {
	return &Runner{
		client:  client,
		prompts: prompts,
		llmCfg:  llmCfg,
		output:  output,
		logger:  logger.With("component", "analyzer"),
	}
}

// Run executes one analyzer. The returned result always carries the
// analyzer name; on failure its status is error and the error is also
// returned so callers can classify it.
func (r *Runner) Run(ctx context.Context, spec config.AnalyzerSpec, vars map[string]string, opts RunOptions) (*models.AnalysisResult, error) {
	start := time.Now()
	result := &models.AnalysisResult{
		AnalyzerName: spec.Slug,
		Status:       models.AnalyzerStatusProcessing,
		Timestamp:    start.UTC(),
	}

	rendered, err := r.prompts.Build(spec, opts.PromptOverride, vars)
	if err != nil {
		return r.fail(result, start, err), err
	}

	req := llm.Request{
		UserPrompt:  rendered,
		Model:       r.resolveModel(spec, opts),
		MaxTokens:   r.llmCfg.MaxTokens,
		Temperature: r.resolveTemperature(spec),
	}

	r.logger.Info("running analyzer",
		"analyzer", spec.Slug,
		"stage", spec.Stage,
		"model", req.Model,
		"prompt_tokens_estimate", r.client.CountTokens(rendered))

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return r.fail(result, start, err), err
	}

	raw := NormalizeMarkdown(resp.Content)
	result.RawOutput = raw
	result.StructuredData = Parse(spec.Slug, raw)
	result.Insights = InsightsFromStructured(result.StructuredData, spec.Slug, r.output.MaxInsightsPerAnalyzer)
	if result.Insights == nil {
		result.Insights = ExtractInsights(raw, spec.Slug, r.output.MaxInsightsPerAnalyzer)
	}
	result.Concepts = ConceptsFromStructured(result.StructuredData, r.output.MaxConceptsPerAnalyzer)
	if result.Concepts == nil {
		result.Concepts = ExtractConcepts(raw, r.output.MaxConceptsPerAnalyzer)
	}
	result.TokenUsage = resp.Usage
	result.ModelUsed = resp.Model
	result.ProcessingTime = time.Since(start).Seconds()
	result.Status = models.AnalyzerStatusCompleted

	r.logger.Info("analyzer completed",
		"analyzer", spec.Slug,
		"stage", spec.Stage,
		"tokens", resp.Usage.TotalTokens,
		"duration", time.Since(start))
	return result, nil
}

func (r *Runner) resolveModel(spec config.AnalyzerSpec, opts RunOptions) string {
	if opts.ModelOverride != "" {
		return opts.ModelOverride
	}
	if spec.Model != "" {
		return spec.Model
	}
	return r.llmCfg.ModelForStage(string(spec.Stage))
}

func (r *Runner) resolveTemperature(spec config.AnalyzerSpec) float64 {
	if spec.Temperature != nil {
		return *spec.Temperature
	}
	return r.llmCfg.Temperature
}

func (r *Runner) fail(result *models.AnalysisResult, start time.Time, err error) *models.AnalysisResult {
	result.Status = models.AnalyzerStatusError
	result.ErrorMessage = err.Error()
	result.ProcessingTime = time.Since(start).Seconds()
	r.logger.Error("analyzer failed",
		"analyzer", result.AnalyzerName,
		"error", err,
		"duration", time.Since(start))
	return result
}
