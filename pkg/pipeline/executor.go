// Package pipeline orchestrates one job through Stage A → Stage B →
// Final with fan-out barriers, then insight aggregation and
// finalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/minuteman-ai/minuteman/pkg/analyzer"
	"github.com/minuteman-ai/minuteman/pkg/artifacts"
	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/contextbuild"
	"github.com/minuteman-ai/minuteman/pkg/insights"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/metrics"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/prompt"
	"github.com/minuteman-ai/minuteman/pkg/tokens"
	"github.com/minuteman-ai/minuteman/pkg/transcript"
)

// ErrorCodePipeline is the error code carried by job.error events for
// pipeline-level failures (store failures, broken invariants).
const ErrorCodePipeline = "PIPELINE_ERROR"

// storeRetries bounds retries of job store writes before the failure
// is treated as fatal to the job.
const storeRetries = 3

// EventPublisher is the progress event surface the executor needs.
// *events.EventPublisher satisfies it; a nil publisher disables events.
type EventPublisher interface {
	PublishAnalyzerStarted(ctx context.Context, jobID string, stage models.StageKey, analyzer string) error
	PublishAnalyzerCompleted(ctx context.Context, jobID string, stage models.StageKey, analyzer string, processingTimeMs int64, usage models.TokenUsage, costUSD float64) error
	PublishAnalyzerError(ctx context.Context, jobID string, stage models.StageKey, analyzer, errorMessage string, processingTimeMs int64) error
	PublishStageCompleted(ctx context.Context, jobID string, stage models.StageKey) error
	PublishInsightsUpdated(ctx context.Context, jobID string, counts map[string]int, items int) error
	PublishJobCompleted(ctx context.Context, jobID string, totalMs int64, usage models.TokenUsage, costUSD float64) error
	PublishJobError(ctx context.Context, jobID, errorCode, message string) error
}

// AnalyzerResolver resolves analyzer slugs to specs. Both
// *config.AnalyzerRegistry and *config.RegistryHolder satisfy it.
type AnalyzerResolver interface {
	Get(slug string) (config.AnalyzerSpec, bool)
}

// Executor runs one job end to end. It implements queue.JobExecutor.
type Executor struct {
	store      jobstore.Store
	registry   AnalyzerResolver
	runner     *analyzer.Runner
	contexts   *contextbuild.Builder
	aggregator *insights.Aggregator
	publisher  EventPublisher
	counter    tokens.Counter
	processing *config.ProcessingConfig
	queue      *config.QueueConfig
	output     *config.OutputConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Deps carries the executor's collaborators. Publisher and Metrics may
// be nil.
type Deps struct {
	Store      jobstore.Store
	Registry   AnalyzerResolver
	Runner     *analyzer.Runner
	Contexts   *contextbuild.Builder
	Aggregator *insights.Aggregator
	Publisher  EventPublisher
	Counter    tokens.Counter
	Processing *config.ProcessingConfig
	Queue      *config.QueueConfig
	Output     *config.OutputConfig
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func NewExecutor(deps Deps) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:      deps.Store,
		registry:   deps.Registry,
		runner:     deps.Runner,
		contexts:   deps.Contexts,
		aggregator: deps.Aggregator,
		publisher:  deps.Publisher,
		counter:    deps.Counter,
		processing: deps.Processing,
		queue:      deps.Queue,
		output:     deps.Output,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "pipeline"),
	}
}

// run carries the per-job state threaded through the stages.
type run struct {
	jobID      string
	sub        *jobstore.Submission
	transcript *models.Transcript
	workspace  *artifacts.Workspace
	log        *slog.Logger

	mu      sync.Mutex
	costUSD float64
}

func (r *run) addCost(c float64) {
	r.mu.Lock()
	r.costUSD += c
	r.mu.Unlock()
}

func (r *run) totalCost() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.costUSD
}

// Execute runs the full pipeline for a claimed job. The job record
// carries its terminal state by the time Execute returns; the error is
// informational for the worker.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	if e.metrics != nil {
		e.metrics.ActiveJobs.Inc()
		defer e.metrics.ActiveJobs.Dec()
	}

	log := e.logger.With("job_id", jobID)

	sub, err := e.store.GetSubmission(ctx, jobID)
	if err != nil {
		err = fmt.Errorf("loading submission: %w", err)
		e.finalizeError(ctx, &run{jobID: jobID, log: log}, err)
		return err
	}

	workspace, err := artifacts.NewWorkspace(e.output, jobID)
	if err != nil {
		err = fmt.Errorf("preparing artifact directory: %w", err)
		e.finalizeError(ctx, &run{jobID: jobID, log: log}, err)
		return err
	}

	r := &run{
		jobID:      jobID,
		sub:        sub,
		transcript: transcript.Parse(sub.Transcript, sub.Filename),
		workspace:  workspace,
		log:        log,
	}

	log.Info("pipeline started",
		"stage_a", len(sub.StageA), "stage_b", len(sub.StageB), "final", len(sub.Final),
		"segments", len(r.transcript.Segments))

	stageAResults, err := e.runStageA(ctx, r)
	if err != nil {
		e.finalizeError(ctx, r, err)
		return err
	}

	stageBResults, err := e.runStageB(ctx, r, stageAResults)
	if err != nil {
		e.finalizeError(ctx, r, err)
		return err
	}

	combined := append(append([]*models.AnalysisResult{}, stageAResults...), stageBResults...)

	finalResults, finalContext, err := e.runFinal(ctx, r, combined)
	if err != nil {
		e.finalizeError(ctx, r, err)
		return err
	}

	e.aggregateInsights(ctx, r, append(append([]*models.AnalysisResult{}, combined...), finalResults...), finalContext)

	if err := e.finalizeSuccess(ctx, r); err != nil {
		return err
	}

	log.Info("pipeline completed")
	return nil
}

// runStageA executes the first-pass analyzers against the trimmed
// transcript and returns the completed results in selection order.
func (e *Executor) runStageA(ctx context.Context, r *run) ([]*models.AnalysisResult, error) {
	trimmed := tokens.TrimToTokens(e.counter, r.transcript.TextForAnalysis(), e.processing.ChunkSize, 0)
	vars := prompt.StageAVars(r.transcript)
	vars[prompt.VarTranscript] = trimmed

	results, err := e.runStage(ctx, r, models.StageA, r.sub.StageA, vars)
	if err != nil {
		return nil, err
	}
	return completedOnly(results), nil
}

// runStageB builds the fair-share combined context from the Stage A
// snapshot and executes the synthesis analyzers.
func (e *Executor) runStageB(ctx context.Context, r *run, stageAResults []*models.AnalysisResult) ([]*models.AnalysisResult, error) {
	if len(r.sub.StageB) == 0 {
		// Immediate barrier.
		if err := e.publishStageCompleted(ctx, r, models.StageB); err != nil {
			return nil, err
		}
		return nil, nil
	}

	combined, usage := e.contexts.BuildContext(ctx, models.StageB, stageAResults, r.transcript,
		stageOpts(r.sub.StageBOptions), r.workspace.SummarySink())
	if usage.TotalTokens > 0 {
		r.log.Info("transcript summarized for stage context", "stage", models.StageB, "tokens", usage.TotalTokens)
	}
	if err := r.workspace.WriteStageBContext(combined); err != nil {
		r.log.Warn("failed to write stage context artifact", "error", err)
	}

	results, err := e.runStage(ctx, r, models.StageB, r.sub.StageB, prompt.StageBVars(combined, ""))
	if err != nil {
		return nil, err
	}
	return completedOnly(results), nil
}

// runFinal builds the combined A+B context and executes the final
// analyzers, persisting each completed output under final/.
func (e *Executor) runFinal(ctx context.Context, r *run, combined []*models.AnalysisResult) ([]*models.AnalysisResult, string, error) {
	finalContext, usage := e.contexts.BuildContext(ctx, models.StageFinal, combined, r.transcript,
		stageOpts(r.sub.FinalOptions), r.workspace.SummarySink())
	if usage.TotalTokens > 0 {
		r.log.Info("transcript summarized for stage context", "stage", models.StageFinal, "tokens", usage.TotalTokens)
	}
	if err := r.workspace.WriteFinalContext(finalContext); err != nil {
		r.log.Warn("failed to write final context artifact", "error", err)
	}

	if len(r.sub.Final) == 0 {
		if err := e.publishStageCompleted(ctx, r, models.StageFinal); err != nil {
			return nil, finalContext, err
		}
		return nil, finalContext, nil
	}

	results, err := e.runStage(ctx, r, models.StageFinal, r.sub.Final, prompt.StageBVars(finalContext, ""))
	if err != nil {
		return nil, finalContext, err
	}

	completed := completedOnly(results)
	for _, res := range completed {
		if err := r.workspace.WriteFinalOutput(res.AnalyzerName, res.RawOutput); err != nil {
			r.log.Warn("failed to write final output artifact", "analyzer", res.AnalyzerName, "error", err)
		}
	}
	return completed, finalContext, nil
}

// runStage fans the stage's analyzers out with bounded concurrency,
// waits for all of them to reach a terminal state, and publishes the
// stage barrier event. The returned slice preserves selection order
// and contains one result per analyzer, completed or errored.
func (e *Executor) runStage(ctx context.Context, r *run, stage models.StageKey, slugs []string, vars map[string]string) ([]*models.AnalysisResult, error) {
	if len(slugs) == 0 {
		return nil, e.publishStageCompleted(ctx, r, stage)
	}

	results := make([]*models.AnalysisResult, len(slugs))
	errs := make([]error, len(slugs))
	sem := make(chan struct{}, e.processing.MaxConcurrent)
	var wg sync.WaitGroup

	for i, slug := range slugs {
		wg.Add(1)
		go func(i int, slug string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = e.runAnalyzer(ctx, r, stage, slug, vars)
		}(i, slug)
	}
	wg.Wait()

	// Analyzer failures are recorded per analyzer and do not fail the
	// stage; runAnalyzer returns an error only for store failures.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if err := e.publishStageCompleted(ctx, r, stage); err != nil {
		return nil, err
	}
	return results, nil
}

// runAnalyzer executes one analyzer task: record transition, events,
// execution with the soft timeout, artifact write, and the atomic
// record-plus-token update. The returned error is non-nil only for
// store failures; analyzer errors are reflected in the result.
func (e *Executor) runAnalyzer(ctx context.Context, r *run, stage models.StageKey, slug string, vars map[string]string) (*models.AnalysisResult, error) {
	spec, ok := e.registry.Get(slug)
	if !ok || spec.Stage != stage {
		result := &models.AnalysisResult{
			AnalyzerName: slug,
			Status:       models.AnalyzerStatusError,
			ErrorMessage: fmt.Sprintf("unknown analyzer %q for stage %s", slug, stage),
			Timestamp:    time.Now().UTC(),
		}
		return result, e.writeRecord(ctx, r, stage, slug, result, "")
	}

	if err := e.markProcessing(ctx, r, stage, slug); err != nil {
		return nil, err
	}
	e.publishEvent(r, "analyzer.started", func() error {
		return e.publisher.PublishAnalyzerStarted(ctx, r.jobID, stage, slug)
	})

	opts := analyzer.RunOptions{
		PromptOverride: r.sub.PromptOverrides[stage][slug],
		ModelOverride:  r.sub.Models[stage],
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.queue.AnalyzerTimeout)
	result, runErr := e.runner.Run(taskCtx, spec, vars, opts)
	cancel()

	if runErr != nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		result.ErrorMessage = fmt.Sprintf("timeout after %s", e.queue.AnalyzerTimeout)
	}

	if err := r.workspace.WriteIntermediate(stage, result); err != nil {
		r.log.Warn("failed to write intermediate artifact", "analyzer", slug, "error", err)
	}

	if err := e.writeRecord(ctx, r, stage, slug, result, opts.PromptOverride); err != nil {
		return nil, err
	}

	processingMs := int64(result.ProcessingTime * 1000)
	e.metrics.RecordAnalyzer(string(stage), slug, result.ProcessingTime, runErr != nil)
	e.metrics.RecordTokens(result.TokenUsage.PromptTokens, result.TokenUsage.CompletionTokens)

	if runErr != nil {
		e.publishEvent(r, "analyzer.error", func() error {
			return e.publisher.PublishAnalyzerError(ctx, r.jobID, stage, slug, result.ErrorMessage, processingMs)
		})
		return result, nil
	}

	cost := llm.EstimateCost(result.ModelUsed, result.TokenUsage)
	r.addCost(cost)
	e.publishEvent(r, "analyzer.completed", func() error {
		return e.publisher.PublishAnalyzerCompleted(ctx, r.jobID, stage, slug, processingMs, result.TokenUsage, cost)
	})
	return result, nil
}

// markProcessing advances the analyzer record to processing.
func (e *Executor) markProcessing(ctx context.Context, r *run, stage models.StageKey, slug string) error {
	return e.updateJob(ctx, r.jobID, func(job *models.Job) error {
		records := job.StageRecords(stage)
		rec := records[slug]
		if !rec.Status.CanTransitionTo(models.AnalyzerStatusProcessing) {
			return fmt.Errorf("analyzer %s/%s cannot transition from %s to processing", stage, slug, rec.Status)
		}
		rec.Status = models.AnalyzerStatusProcessing
		records[slug] = rec
		return nil
	})
}

// writeRecord persists the terminal analyzer record. Token totals are
// recomputed inside the same atomic update.
func (e *Executor) writeRecord(ctx context.Context, r *run, stage models.StageKey, slug string, result *models.AnalysisResult, promptOverride string) error {
	promptPath := promptOverride
	if promptPath == "" {
		if spec, ok := e.registry.Get(slug); ok {
			promptPath = spec.PromptPath
		}
	}
	return e.updateJob(ctx, r.jobID, func(job *models.Job) error {
		records := job.StageRecords(stage)
		rec := records[slug]
		if rec.Status.IsTerminal() {
			return fmt.Errorf("analyzer %s/%s already terminal in state %s", stage, slug, rec.Status)
		}
		records[slug] = models.AnalyzerRecord{
			Status:         result.Status,
			ProcessingTime: result.ProcessingTime,
			TokenUsage:     result.TokenUsage,
			RawOutput:      result.RawOutput,
			StructuredData: result.StructuredData,
			Insights:       result.Insights,
			Concepts:       result.Concepts,
			ModelUsed:      result.ModelUsed,
			ErrorMessage:   result.ErrorMessage,
			PromptPath:     promptPath,
		}
		return nil
	})
}

// aggregateInsights runs the aggregator and writes the dashboard
// artifacts. Failures are logged but never fail the job; a dashboard
// file is written even when empty.
func (e *Executor) aggregateInsights(ctx context.Context, r *run, results []*models.AnalysisResult, finalContext string) {
	sources := make([]insights.Source, 0, len(results))
	for _, res := range results {
		if res == nil || res.Status != models.AnalyzerStatusCompleted {
			continue
		}
		sources = append(sources, insights.Source{
			Analyzer:   res.AnalyzerName,
			RawOutput:  res.RawOutput,
			Structured: res.StructuredData,
		})
	}

	items := e.aggregator.Aggregate(ctx, sources, r.transcript, finalContext)
	now := time.Now()

	if data, err := insights.RenderJSON(items, now); err != nil {
		r.log.Error("failed to render insight dashboard json", "error", err)
	} else if err := r.workspace.WriteDashboard("json", data); err != nil {
		r.log.Error("failed to write insight dashboard json", "error", err)
	}

	if err := r.workspace.WriteDashboard("md", insights.RenderMarkdown(items, now)); err != nil {
		r.log.Error("failed to write insight dashboard markdown", "error", err)
	}

	if data, err := insights.RenderCSV(items); err != nil {
		r.log.Error("failed to render insight dashboard csv", "error", err)
	} else if err := r.workspace.WriteDashboard("csv", data); err != nil {
		r.log.Error("failed to write insight dashboard csv", "error", err)
	}

	e.publishEvent(r, "insights.updated", func() error {
		return e.publisher.PublishInsightsUpdated(ctx, r.jobID, insights.CountsByType(items), len(items))
	})
}

// finalizeSuccess marks the job completed, writes final_status.json
// and the COMPLETED sentinel, and emits job.completed.
func (e *Executor) finalizeSuccess(ctx context.Context, r *run) error {
	job, err := e.updateJobReturning(ctx, r.jobID, func(job *models.Job) error {
		now := time.Now().UTC()
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
		if job.StartedAt != nil {
			job.TotalProcessingTimeMs = now.Sub(*job.StartedAt).Milliseconds()
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("persisting terminal status: %w", err)
		e.finalizeError(ctx, r, err)
		return err
	}

	if err := r.workspace.WriteFinalStatus(artifacts.BuildFinalStatus(job, r.workspace.Dir())); err != nil {
		r.log.Error("failed to write final status", "error", err)
	}
	if err := r.workspace.MarkCompleted(); err != nil {
		r.log.Error("failed to write completion sentinel", "error", err)
	}

	e.metrics.RecordJobTerminal(false)
	e.publishEvent(r, "job.completed", func() error {
		return e.publisher.PublishJobCompleted(ctx, r.jobID, job.TotalProcessingTimeMs, job.TokenUsageTotal, r.totalCost())
	})
	return nil
}

// finalizeError marks the job as failed with the pipeline error code.
// Best-effort: the store itself may be the failing component.
func (e *Executor) finalizeError(ctx context.Context, r *run, cause error) {
	r.log.Error("pipeline failed", "error", cause)

	job, err := e.updateJobReturning(ctx, r.jobID, func(job *models.Job) error {
		now := time.Now().UTC()
		job.Status = models.JobStatusError
		job.CompletedAt = &now
		job.Errors = append(job.Errors, cause.Error())
		if job.StartedAt != nil {
			job.TotalProcessingTimeMs = now.Sub(*job.StartedAt).Milliseconds()
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to persist job error state", "error", err)
	}

	if r.workspace != nil && job != nil {
		if err := r.workspace.WriteFinalStatus(artifacts.BuildFinalStatus(job, r.workspace.Dir())); err != nil {
			r.log.Error("failed to write final status", "error", err)
		}
	}

	e.metrics.RecordJobTerminal(true)
	e.publishEvent(r, "job.error", func() error {
		return e.publisher.PublishJobError(ctx, r.jobID, ErrorCodePipeline, cause.Error())
	})
}

func (e *Executor) publishStageCompleted(ctx context.Context, r *run, stage models.StageKey) error {
	e.publishEvent(r, "stage.completed", func() error {
		return e.publisher.PublishStageCompleted(ctx, r.jobID, stage)
	})
	return nil
}

// publishEvent sends one event when a publisher is configured. Event
// delivery is best-effort and never affects pipeline control flow.
func (e *Executor) publishEvent(r *run, name string, fn func() error) {
	if e.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		r.log.Warn("failed to publish event", "event", name, "error", err)
	}
}

// updateJob applies fn through the store with bounded retries.
func (e *Executor) updateJob(ctx context.Context, jobID string, fn func(*models.Job) error) error {
	_, err := e.updateJobReturning(ctx, jobID, fn)
	return err
}

func (e *Executor) updateJobReturning(ctx context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error) {
	var job *models.Job
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), storeRetries), ctx)
	err := backoff.Retry(func() error {
		var err error
		job, err = e.store.UpdateJob(ctx, jobID, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, jobstore.ErrJobNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("job store update failed: %w", err)
	}
	return job, nil
}

// completedOnly filters a stage's results to completed ones, keeping
// order.
func completedOnly(results []*models.AnalysisResult) []*models.AnalysisResult {
	out := make([]*models.AnalysisResult, 0, len(results))
	for _, res := range results {
		if res != nil && res.Status == models.AnalyzerStatusCompleted {
			out = append(out, res)
		}
	}
	return out
}

// stageOpts converts submission stage options to context options.
func stageOpts(opts jobstore.StageOptions) contextbuild.StageOptions {
	return contextbuild.StageOptions{
		IncludeTranscript: opts.IncludeTranscript,
		Mode:              opts.Mode,
		MaxChars:          opts.MaxChars,
	}
}
