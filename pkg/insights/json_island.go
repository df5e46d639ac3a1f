package insights

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```([A-Za-z_]*)\\s*\n(.*?)\n```")
	segAnchorRe   = regexp.MustCompile(`\s*\[#seg-(\d+)\]`)
)

// insightIsland is the expected shape of a fenced INSIGHTS_JSON block.
type insightIsland struct {
	Actions   []json.RawMessage `json:"actions"`
	Decisions []json.RawMessage `json:"decisions"`
	Risks     []json.RawMessage `json:"risks"`
}

// islandEntry is one action/decision/risk entry when given as an object.
type islandEntry struct {
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	DueDate     string   `json:"due_date"`
	Priority    string   `json:"priority"`
	Confidence  *float64 `json:"confidence"`
	Anchor      string   `json:"anchor"`
}

// extractJSONIslands scans raw output for fenced JSON blocks carrying
// the {actions, decisions, risks} shape. Blocks tagged INSIGHTS_JSON
// are preferred; generic json blocks are accepted when they parse to
// the expected shape.
func extractJSONIslands(src Source) []models.InsightItem {
	var items []models.InsightItem
	for _, m := range fencedBlockRe.FindAllStringSubmatch(src.RawOutput, -1) {
		tag, body := strings.ToUpper(m[1]), m[2]
		if tag != "INSIGHTS_JSON" && tag != "JSON" && tag != "" {
			continue
		}

		var island insightIsland
		if err := json.Unmarshal([]byte(body), &island); err != nil {
			continue
		}
		if len(island.Actions)+len(island.Decisions)+len(island.Risks) == 0 {
			continue
		}

		items = append(items, islandItems(island.Actions, models.InsightAction, src.Analyzer)...)
		items = append(items, islandItems(island.Decisions, models.InsightDecision, src.Analyzer)...)
		items = append(items, islandItems(island.Risks, models.InsightRisk, src.Analyzer)...)
	}
	return items
}

func islandItems(entries []json.RawMessage, typ models.InsightType, analyzer string) []models.InsightItem {
	var items []models.InsightItem
	for _, raw := range entries {
		var item models.InsightItem
		item.Type = typ
		item.SourceAnalyzer = analyzer

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			item.Title = s
		} else {
			var entry islandEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				continue
			}
			item.Title = entry.Title
			if item.Title == "" {
				item.Title = entry.Text
			}
			item.Description = entry.Description
			item.Owner = entry.Owner
			item.DueDate = entry.DueDate
			item.Priority = entry.Priority
			item.Confidence = entry.Confidence
			if id, ok := parseSegAnchor(entry.Anchor); ok {
				item.Evidence.SegmentID = &id
			}
		}

		item.Title = stripSegAnchors(item.Title, &item)
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		item.Title = strings.TrimSpace(item.Title)
		items = append(items, item)
	}
	return items
}

// stripSegAnchors removes [#seg-N] tokens from text, recording the
// first as the item's evidence anchor.
func stripSegAnchors(text string, item *models.InsightItem) string {
	matches := segAnchorRe.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 && item.Evidence.SegmentID == nil {
		if id, err := strconv.Atoi(matches[0][1]); err == nil {
			item.Evidence.SegmentID = &id
		}
	}
	return segAnchorRe.ReplaceAllString(text, "")
}

// parseSegAnchor reads a "#seg-N" or "seg-N" anchor string.
func parseSegAnchor(anchor string) (int, bool) {
	anchor = strings.TrimPrefix(strings.TrimSpace(anchor), "#")
	anchor = strings.TrimPrefix(anchor, "seg-")
	if anchor == "" {
		return 0, false
	}
	id, err := strconv.Atoi(anchor)
	if err != nil {
		return 0, false
	}
	return id, true
}
