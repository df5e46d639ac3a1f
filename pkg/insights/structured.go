package insights

import (
	"sort"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// canonicalKeys maps structured-data list keys to insight types.
var canonicalKeys = []struct {
	key string
	typ models.InsightType
}{
	{"action_items", models.InsightAction},
	{"key_decisions", models.InsightDecision},
	{"risks", models.InsightRisk},
}

// sectionCues maps heading substrings to insight types. Matched
// case-insensitively against section headings.
var sectionCues = []struct {
	cue string
	typ models.InsightType
}{
	{"action item", models.InsightAction},
	{"next steps", models.InsightAction},
	{"follow-up", models.InsightAction},
	{"decision", models.InsightDecision},
	{"risk", models.InsightRisk},
	{"open question", models.InsightRisk},
	{"issue", models.InsightRisk},
}

// extractStructured mines the analyzer's structured data: canonical
// list keys first, then bullet items inside sections whose headings
// match known cues.
func extractStructured(src Source) []models.InsightItem {
	if src.Structured == nil {
		return nil
	}

	var items []models.InsightItem
	for _, ck := range canonicalKeys {
		list, ok := src.Structured[ck.key].([]any)
		if !ok {
			continue
		}
		for _, entry := range list {
			if item, ok := structuredItem(entry, ck.typ, src.Analyzer); ok {
				items = append(items, item)
			}
		}
	}

	sections, ok := src.Structured["sections"].(map[string]string)
	if !ok {
		return items
	}
	for _, sec := range sortedSections(sections) {
		typ, matched := sectionType(sec.heading)
		if !matched {
			continue
		}
		items = append(items, sectionItems(sec.body, typ, src.Analyzer)...)
	}
	return items
}

type section struct {
	heading, body string
}

// sortedSections returns sections in a stable heading order so repeat
// runs over the same inputs produce identical item sequences.
func sortedSections(sections map[string]string) []section {
	out := make([]section, 0, len(sections))
	for heading, body := range sections {
		out = append(out, section{heading, body})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].heading < out[j].heading })
	return out
}

func sectionType(heading string) (models.InsightType, bool) {
	lower := strings.ToLower(heading)
	for _, c := range sectionCues {
		if strings.Contains(lower, c.cue) {
			return c.typ, true
		}
	}
	return "", false
}

// sectionItems turns bullet-like lines into items. Lines carrying only
// Owner:/Due: details are merged into the preceding actionable item
// rather than emitted on their own.
func sectionItems(body string, typ models.InsightType, analyzer string) []models.InsightItem {
	var items []models.InsightItem
	for _, line := range strings.Split(body, "\n") {
		text, isBullet := stripBullet(line)
		if !isBullet {
			text = strings.TrimSpace(line)
		}
		if text == "" {
			continue
		}

		if owner, due, detailOnly := ownerDueDetail(text); detailOnly && len(items) > 0 {
			last := &items[len(items)-1]
			if last.Owner == "" {
				last.Owner = owner
			}
			if last.DueDate == "" {
				last.DueDate = due
			}
			continue
		}
		if !isBullet {
			continue
		}

		item := models.InsightItem{Type: typ, SourceAnalyzer: analyzer}
		item.Title = strings.TrimSpace(stripSegAnchors(parseInlineDetails(text, &item), &item))
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// structuredItem converts one canonical-key entry (string or object).
func structuredItem(entry any, typ models.InsightType, analyzer string) (models.InsightItem, bool) {
	item := models.InsightItem{Type: typ, SourceAnalyzer: analyzer}
	switch v := entry.(type) {
	case string:
		item.Title = strings.TrimSpace(stripSegAnchors(parseInlineDetails(v, &item), &item))
	case map[string]any:
		if s, ok := v["title"].(string); ok {
			item.Title = s
		}
		if item.Title == "" {
			if s, ok := v["text"].(string); ok {
				item.Title = s
			}
		}
		if s, ok := v["description"].(string); ok {
			item.Description = s
		}
		if s, ok := v["owner"].(string); ok {
			item.Owner = s
		}
		if s, ok := v["due_date"].(string); ok {
			item.DueDate = s
		}
		if s, ok := v["priority"].(string); ok {
			item.Priority = s
		}
		if c, ok := v["confidence"].(float64); ok {
			item.Confidence = &c
		}
		item.Title = strings.TrimSpace(stripSegAnchors(item.Title, &item))
	}
	if item.Title == "" {
		return item, false
	}
	return item, true
}

func stripBullet(line string) (string, bool) {
	if m := bulletLineRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
