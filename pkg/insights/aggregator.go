// Package insights consolidates actions, decisions, and risks mined
// from analyzer outputs into the evidence-linked insight dashboard.
package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// Source is one analyzer's contribution to aggregation.
type Source struct {
	Analyzer   string
	RawOutput  string
	Structured map[string]any
}

// Aggregator mines insight items from analyzer outputs in four passes:
// fenced JSON islands, structured data, heuristic text patterns, and an
// optional LLM extraction pass. Later passes only add items; dedup
// keeps the first occurrence of each equivalence key.
type Aggregator struct {
	client llm.Client
	cfg    *config.InsightsConfig
	logger *slog.Logger
}

// NewAggregator creates an aggregator. client may be nil, which
// disables the LLM pass regardless of configuration.
func NewAggregator(client llm.Client, cfg *config.InsightsConfig, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "insights"),
	}
}

// Aggregate runs all extraction passes over the sources, links items to
// transcript evidence, and deduplicates. It never fails; on pass errors
// it returns whatever was collected. The result is deterministic for
// identical inputs apart from CreatedAt.
func (a *Aggregator) Aggregate(ctx context.Context, sources []Source, transcript *models.Transcript, combinedContext string) []models.InsightItem {
	var items []models.InsightItem

	for _, src := range sources {
		items = append(items, extractJSONIslands(src)...)
		items = append(items, extractStructured(src)...)
		items = append(items, extractHeuristic(src)...)
	}

	if a.cfg.LLMEnabled && a.client != nil {
		llmItems, err := a.runLLMPass(ctx, transcript, combinedContext)
		if err != nil {
			a.logger.Warn("LLM insight pass failed, continuing without it", "error", err)
		} else {
			items = append(items, llmItems...)
		}
	}

	linkEvidence(items, transcript)
	items = dedup(items)

	now := time.Now().UTC()
	for i := range items {
		items[i].InsightID = insightID(&items[i])
		items[i].CreatedAt = now
	}

	a.logger.Info("insight aggregation complete",
		"sources", len(sources), "items", len(items))
	return items
}

// CountsByType tallies items per insight type for the dashboard header
// and the insights.updated event.
func CountsByType(items []models.InsightItem) map[string]int {
	counts := map[string]int{
		string(models.InsightAction):   0,
		string(models.InsightDecision): 0,
		string(models.InsightRisk):     0,
	}
	for _, item := range items {
		counts[string(item.Type)]++
	}
	return counts
}

// dedupKey is the equivalence key for insight items.
func dedupKey(item *models.InsightItem) string {
	return strings.Join([]string{
		string(item.Type),
		strings.ToLower(strings.TrimSpace(item.Title)),
		item.Owner,
		item.DueDate,
	}, "\x00")
}

// dedup collapses items sharing an equivalence key, keeping the first
// occurrence but backfilling evidence and detail fields from later
// duplicates.
func dedup(items []models.InsightItem) []models.InsightItem {
	seen := make(map[string]int, len(items))
	out := make([]models.InsightItem, 0, len(items))

	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" || !item.Type.IsValid() {
			continue
		}
		key := dedupKey(&item)
		if idx, ok := seen[key]; ok {
			kept := &out[idx]
			if kept.Description == "" {
				kept.Description = item.Description
			}
			if kept.Evidence.SegmentID == nil && item.Evidence.SegmentID != nil {
				kept.Evidence = item.Evidence
				kept.Links = item.Links
			}
			if kept.Confidence == nil {
				kept.Confidence = item.Confidence
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, item)
	}
	return out
}

// insightID derives a stable id from the equivalence key so repeat runs
// over the same inputs produce identical dashboards.
func insightID(item *models.InsightItem) string {
	sum := sha256.Sum256([]byte(dedupKey(item)))
	return hex.EncodeToString(sum[:6])
}
