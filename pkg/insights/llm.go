package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

const llmPassSystemPrompt = "You extract Actions, Decisions, and Risks from meeting material. " +
	"Respond with strict JSON only. Ground evidence with SEGMENT IDs from the transcript."

const llmPassPromptFmt = `Extract up to %d insight items from the meeting material below.

Return a JSON array (or {"items": [...]}) where each item is:
{"type": "action"|"decision"|"risk", "summary": "...", "owner": "...", "due": "...",
 "source": "...", "evidence": {"segment_ids": [..], "speakers": [..], "timestamps": [..],
 "quotes": [..], "confidence": 0.0}}

Omit fields you cannot ground. Do not invent owners or dates.

## Transcript

%s

## Analysis Context

%s`

// llmInsightItem is the wire shape of one item in the LLM response.
type llmInsightItem struct {
	Type     string `json:"type"`
	Summary  string `json:"summary"`
	Owner    string `json:"owner"`
	Due      string `json:"due"`
	Source   string `json:"source"`
	Evidence struct {
		SegmentIDs []int    `json:"segment_ids"`
		Speakers   []string `json:"speakers"`
		Timestamps []string `json:"timestamps"`
		Quotes     []string `json:"quotes"`
		Confidence *float64 `json:"confidence"`
	} `json:"evidence"`
}

// runLLMPass asks the model for grounded items over the segmented
// transcript plus the combined analysis context.
func (a *Aggregator) runLLMPass(ctx context.Context, transcript *models.Transcript, combinedContext string) ([]models.InsightItem, error) {
	if transcript == nil {
		return nil, nil
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		SystemPrompt: llmPassSystemPrompt,
		UserPrompt:   fmt.Sprintf(llmPassPromptFmt, a.cfg.LLMMaxItems, segmentedTranscript(transcript), combinedContext),
		Model:        a.cfg.LLMModel,
		MaxTokens:    a.cfg.LLMMaxTokens,
		Temperature:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("insight extraction call failed: %w", err)
	}

	parsed, err := parseLLMItems(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("insight extraction returned unparseable JSON: %w", err)
	}
	if len(parsed) > a.cfg.LLMMaxItems {
		parsed = parsed[:a.cfg.LLMMaxItems]
	}

	items := make([]models.InsightItem, 0, len(parsed))
	for _, p := range parsed {
		typ := models.InsightType(strings.ToLower(strings.TrimSpace(p.Type)))
		if !typ.IsValid() || strings.TrimSpace(p.Summary) == "" {
			continue
		}
		item := models.InsightItem{
			Type:           typ,
			Title:          strings.TrimSpace(p.Summary),
			Owner:          strings.TrimSpace(p.Owner),
			DueDate:        strings.TrimSpace(p.Due),
			SourceAnalyzer: sourceOrDefault(p.Source),
			Confidence:     p.Evidence.Confidence,
		}
		if len(p.Evidence.SegmentIDs) > 0 {
			id := p.Evidence.SegmentIDs[0]
			item.Evidence.SegmentID = &id
		}
		if len(p.Evidence.Speakers) > 0 {
			item.Evidence.Speaker = p.Evidence.Speakers[0]
		}
		if len(p.Evidence.Timestamps) > 0 {
			item.Evidence.Timestamp = p.Evidence.Timestamps[0]
		}
		if len(p.Evidence.Quotes) > 0 {
			item.Evidence.Quote = truncateQuote(p.Evidence.Quotes[0])
		}
		items = append(items, item)
	}
	return items, nil
}

func sourceOrDefault(source string) string {
	if s := strings.TrimSpace(source); s != "" {
		return s
	}
	return "llm"
}

// parseLLMItems accepts a bare JSON array, an {"items": [...]} object,
// or either wrapped in a fenced code block.
func parseLLMItems(content string) ([]llmInsightItem, error) {
	body := strings.TrimSpace(content)
	if m := fencedBlockRe.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[2])
	}

	var items []llmInsightItem
	if err := json.Unmarshal([]byte(body), &items); err == nil {
		return items, nil
	}
	var wrapper struct {
		Items []llmInsightItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Items, nil
}

// segmentedTranscript renders "SEG <id> [ts] <speaker>: text" lines so
// the model can cite segment ids.
func segmentedTranscript(t *models.Transcript) string {
	if len(t.Segments) == 0 {
		return t.RawText
	}
	lines := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		var b strings.Builder
		b.WriteString("SEG ")
		b.WriteString(strconv.Itoa(seg.SegmentID))
		if seg.Timestamp != "" {
			b.WriteString(" [" + seg.Timestamp + "]")
		}
		if seg.Speaker != "" {
			b.WriteString(" " + seg.Speaker)
		}
		b.WriteString(": " + seg.Text)
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n\n")
}
