package contextbuild

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/tokens"
)

// ArtifactSink receives summarizer work products for the job's
// artifact directory. A nil sink disables artifact capture.
type ArtifactSink interface {
	Save(name string, data []byte) error
}

// Summarizer condenses transcripts with a single LLM pass when they
// fit, and map-reduce over overlapping chunks when they do not. It
// never fails: when the model is unavailable it degrades to a leading
// slice of the original text.
type Summarizer struct {
	client  llm.Client
	counter tokens.Counter
	cfg     *config.SummaryConfig
	logger  *slog.Logger
}

func NewSummarizer(client llm.Client, counter tokens.Counter, cfg *config.SummaryConfig, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		client:  client,
		counter: counter,
		cfg:     cfg,
		logger:  logger.With("component", "summarizer"),
	}
}

const (
	mapMaxTokens        = 512
	singlePassMinTokens = 512
	reduceMinTokens     = 768
	combinedFloorRatio  = 0.2
)

// Summarize produces a summary of text targeting roughly target tokens.
// The stage tag names the artifacts (summary.<stage>.<kind>.md).
func (s *Summarizer) Summarize(ctx context.Context, text, stage string, target int, sink ArtifactSink) (string, models.TokenUsage) {
	total := s.counter.Count(text)

	if total <= s.cfg.SinglePassMaxTokens {
		summary, usage, err := s.singlePass(ctx, text, target)
		if err != nil {
			return s.fallback(text, stage, target, sink, err), models.TokenUsage{}
		}
		s.save(sink, fmt.Sprintf("summary.%s.single.md", stage), summary)
		return summary, usage
	}

	summary, usage, err := s.mapReduce(ctx, text, stage, target, total, sink)
	if err != nil {
		return s.fallback(text, stage, target, sink, err), models.TokenUsage{}
	}
	s.save(sink, fmt.Sprintf("summary.%s.reduce.md", stage), summary)
	return summary, usage
}

func (s *Summarizer) singlePass(ctx context.Context, text string, target int) (string, models.TokenUsage, error) {
	maxTokens := target + 200
	if maxTokens < singlePassMinTokens {
		maxTokens = singlePassMinTokens
	}
	resp, err := s.client.Complete(ctx, llm.Request{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   fmt.Sprintf(summarizePromptFmt, target, text),
		Model:        s.cfg.ReduceModel,
		MaxTokens:    maxTokens,
		Temperature:  0,
	})
	if err != nil {
		return "", models.TokenUsage{}, err
	}
	return strings.TrimSpace(resp.Content), resp.Usage, nil
}

func (s *Summarizer) mapReduce(ctx context.Context, text, stage string, target, total int, sink ArtifactSink) (string, models.TokenUsage, error) {
	chunkTarget := target / 2
	if chunkTarget < 200 {
		chunkTarget = 200
	}

	var usage models.TokenUsage
	var parts []string

	step := s.cfg.MapChunkTokens - s.cfg.MapOverlapTokens
	if step <= 0 {
		step = s.cfg.MapChunkTokens
	}
	for i, start := 0, 0; start < total; i, start = i+1, start+step {
		chunk := tokens.SliceByTokens(text, start, start+s.cfg.MapChunkTokens)
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		resp, err := s.client.Complete(ctx, llm.Request{
			SystemPrompt: summarySystemPrompt,
			UserPrompt:   fmt.Sprintf(summarizePromptFmt, chunkTarget, chunk),
			Model:        s.cfg.MapModel,
			MaxTokens:    mapMaxTokens,
			Temperature:  0,
		})
		if err != nil {
			return "", usage, fmt.Errorf("map pass chunk %d: %w", i, err)
		}
		part := strings.TrimSpace(resp.Content)
		parts = append(parts, part)
		usage = usage.Add(resp.Usage)
		s.save(sink, fmt.Sprintf("chunk_%03d.md", i), part)
	}

	combined := strings.Join(parts, "\n\n")
	combinedCap := 3 * target
	if combinedCap < 1200 {
		combinedCap = 1200
	}
	if s.counter.Count(combined) > combinedCap {
		combined = tokens.TrimToTokens(s.counter, combined, combinedCap, combinedFloorRatio)
	}

	reduceMax := target + 300
	if reduceMax < reduceMinTokens {
		reduceMax = reduceMinTokens
	}
	resp, err := s.client.Complete(ctx, llm.Request{
		SystemPrompt: summarySystemPrompt,
		UserPrompt:   fmt.Sprintf(reducePromptFmt, target, combined),
		Model:        s.cfg.ReduceModel,
		MaxTokens:    reduceMax,
		Temperature:  0,
	})
	if err != nil {
		return "", usage, fmt.Errorf("reduce pass: %w", err)
	}
	usage = usage.Add(resp.Usage)
	return strings.TrimSpace(resp.Content), usage, nil
}

// fallback returns the leading slice of the original text, sized from
// the target by the character heuristic.
func (s *Summarizer) fallback(text, stage string, target int, sink ArtifactSink, cause error) string {
	s.logger.Warn("summarization failed, using leading slice",
		"stage", stage, "error", cause)

	keep := tokens.CharsPerToken * target
	if keep < 500 {
		keep = 500
	}
	if keep > len(text) {
		keep = len(text)
	}
	out := text[:keep]
	s.save(sink, fmt.Sprintf("summary.%s.fallback.md", stage), out)
	return out
}

func (s *Summarizer) save(sink ArtifactSink, name, content string) {
	if sink == nil {
		return
	}
	if err := sink.Save(name, []byte(content)); err != nil {
		s.logger.Warn("failed to save summary artifact", "name", name, "error", err)
	}
}

const summarySystemPrompt = "You summarize meeting transcripts faithfully. " +
	"Preserve decisions, action items, owners, dates, and disagreements. Do not invent content."

const summarizePromptFmt = "Summarize the following transcript portion in roughly %d tokens. " +
	"Keep speaker attributions for decisions and commitments.\n\n%s"

const reducePromptFmt = "Merge the following partial summaries into one coherent summary of roughly %d tokens. " +
	"Remove duplication from overlapping portions.\n\n%s"
