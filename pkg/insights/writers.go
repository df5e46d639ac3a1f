package insights

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// mdQuoteChars caps evidence quotes in the markdown table so rows stay
// readable.
const mdQuoteChars = 80

// Dashboard is the JSON artifact shape.
type Dashboard struct {
	Items       []models.InsightItem `json:"items"`
	GeneratedAt string               `json:"generated_at"`
}

// RenderJSON renders insight_dashboard.json.
func RenderJSON(items []models.InsightItem, generatedAt time.Time) ([]byte, error) {
	dashboard := Dashboard{
		Items:       items,
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
	}
	if dashboard.Items == nil {
		dashboard.Items = []models.InsightItem{}
	}
	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
	}
	return data, nil
}

// RenderMarkdown renders insight_dashboard.md: a counts header plus a
// pipe table of all items.
func RenderMarkdown(items []models.InsightItem, generatedAt time.Time) []byte {
	counts := CountsByType(items)

	var b strings.Builder
	b.WriteString("# Insight Dashboard\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Actions:** %d | **Decisions:** %d | **Risks:** %d\n\n",
		counts[string(models.InsightAction)],
		counts[string(models.InsightDecision)],
		counts[string(models.InsightRisk)])

	b.WriteString("| Type | Title | Owner | Due | Source | Evidence |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, item := range items {
		evidence := item.Evidence.Quote
		if len(evidence) > mdQuoteChars {
			evidence = cutAtRune(evidence, mdQuoteChars) + "…"
		}
		if item.Links.TranscriptAnchor != "" {
			if evidence != "" {
				evidence += " "
			}
			evidence += item.Links.TranscriptAnchor
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			mdCell(string(item.Type)),
			mdCell(item.Title),
			mdCell(item.Owner),
			mdCell(item.DueDate),
			mdCell(item.SourceAnalyzer),
			mdCell(evidence))
	}
	return []byte(b.String())
}

// RenderCSV renders insight_dashboard.csv with dotted evidence columns.
func RenderCSV(items []models.InsightItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"insight_id", "type", "title", "description", "owner", "due_date",
		"priority", "confidence", "source_analyzer",
		"evidence.segment_id", "evidence.speaker", "evidence.timestamp",
		"evidence.quote", "links.transcript_anchor",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, item := range items {
		var segmentID, confidence string
		if item.Evidence.SegmentID != nil {
			segmentID = strconv.Itoa(*item.Evidence.SegmentID)
		}
		if item.Confidence != nil {
			confidence = strconv.FormatFloat(*item.Confidence, 'f', -1, 64)
		}
		row := []string{
			item.InsightID, string(item.Type), item.Title, item.Description,
			item.Owner, item.DueDate, item.Priority, confidence,
			item.SourceAnalyzer, segmentID, item.Evidence.Speaker,
			item.Evidence.Timestamp, item.Evidence.Quote,
			item.Links.TranscriptAnchor,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// mdCell escapes pipes and newlines so a cell cannot break the table.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
