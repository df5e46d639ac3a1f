package contextbuild

import (
	"context"
	"log/slog"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/tokens"
)

// StageOptions carries per-run context overrides from the submit
// request. Nil / zero fields fall back to configured defaults.
type StageOptions struct {
	IncludeTranscript *bool
	Mode              string // "full" or "summary"
	MaxChars          int
}

// Builder assembles the combined context document for a synthesis
// stage from upstream analyzer results plus an optional transcript
// section.
type Builder struct {
	counter    tokens.Counter
	processing *config.ProcessingConfig
	summary    *config.SummaryConfig
	summarizer *Summarizer
	logger     *slog.Logger
}

func NewBuilder(counter tokens.Counter, processing *config.ProcessingConfig, summary *config.SummaryConfig, summarizer *Summarizer, logger *slog.Logger) *Builder {
	return &Builder{
		counter:    counter,
		processing: processing,
		summary:    summary,
		summarizer: summarizer,
		logger:     logger.With("component", "contextbuild"),
	}
}

const transcriptHeading = "## Original Transcript\n\n"

// BuildContext combines the context sections of completed upstream
// results under the stage's token budget, appending a transcript
// section when enabled. The returned usage covers summarizer calls.
func (b *Builder) BuildContext(ctx context.Context, stage models.StageKey, results []*models.AnalysisResult, transcript *models.Transcript, opts StageOptions, sink ArtifactSink) (string, models.TokenUsage) {
	var sections []string
	for _, r := range results {
		if r == nil || r.Status != models.AnalyzerStatusCompleted {
			continue
		}
		sections = append(sections, r.ToContextSection())
	}

	budget, minPer := b.stageBudget(stage)
	combined := CombineSections(b.counter, sections, budget, minPer)

	var usage models.TokenUsage
	if transcript != nil && b.includeTranscript(stage, opts) {
		section, u := b.transcriptSection(ctx, stage, transcript, opts, sink)
		usage = usage.Add(u)
		if section != "" {
			if combined != "" {
				combined += SectionSeparator
			}
			combined += transcriptHeading + section
		}
	}
	return combined, usage
}

func (b *Builder) stageBudget(stage models.StageKey) (budget, minPer int) {
	if stage == models.StageB {
		return b.processing.StageBContextTokenBudget, b.processing.StageBMinTokensPerAnalyzer
	}
	return b.processing.FinalContextTokenBudget, 0
}

func (b *Builder) includeTranscript(stage models.StageKey, opts StageOptions) bool {
	if opts.IncludeTranscript != nil {
		return *opts.IncludeTranscript
	}
	// Only the final stage includes the transcript by default.
	return stage == models.StageFinal && b.processing.FinalIncludeTranscript
}

func (b *Builder) transcriptSection(ctx context.Context, stage models.StageKey, transcript *models.Transcript, opts StageOptions, sink ArtifactSink) (string, models.TokenUsage) {
	mode := opts.Mode
	if mode == "" {
		mode = b.processing.FinalTranscriptMode
	}
	if mode == string(config.TranscriptModeSummary) && b.summary.Enabled && b.summarizer != nil {
		target := b.summary.FinalTargetTokens
		if stage == models.StageB {
			target = b.summary.StageBTargetTokens
		}
		return b.summarizer.Summarize(ctx, transcript.TextForAnalysis(), string(stage), target, sink)
	}

	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = b.processing.FinalTranscriptCharLimit
	}
	text := transcript.TextForAnalysis()
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, models.TokenUsage{}
}
