package analyzer

import (
	"regexp"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// ParseFunc turns normalized raw output into structured data. Parsers
// are best-effort: they never fail, they just extract less.
type ParseFunc func(raw string) map[string]any

// builtinParsers maps analyzer slugs to their parsers. Analyzers not
// listed here (including all custom analyzers) use parseSections.
var builtinParsers = map[string]ParseFunc{
	"say_means":              parseSectionsAndTables,
	"perspective_perception": parseSectionsAndTables,
	"premises_assertions":    parseSectionsAndTables,
	"postulate_theorem":      parseSectionsAndTables,
	"competing_hypotheses":   parseSectionsAndTables,
	"determining_factors":    parseSectionsAndTables,
	"first_principles":       parseSections,
	"patentability":          parseSections,
	"meeting_notes":          parseSections,
	"composite_note":         parseSections,
}

// Parse dispatches to the analyzer's parser, defaulting to the shared
// section parser for unknown slugs.
func Parse(slug, raw string) map[string]any {
	if p, ok := builtinParsers[slug]; ok {
		return p(raw)
	}
	return parseSections(raw)
}

var sectionHeadingRe = regexp.MustCompile(`^#{2,4}\s+(.+?)\s*:?\s*$`)

// parseSections splits the output into a heading → body map under the
// "sections" key. Text before the first heading is ignored.
func parseSections(raw string) map[string]any {
	sections := make(map[string]string)
	var current string
	var body []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := sectionHeadingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			current = m[1]
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()

	if len(sections) == 0 {
		return map[string]any{}
	}
	return map[string]any{"sections": sections}
}

// parseSectionsAndTables additionally extracts pipe tables as rows of
// header → cell maps under the "rows" key.
func parseSectionsAndTables(raw string) map[string]any {
	structured := parseSections(raw)
	if rows := parseTableRows(raw); len(rows) > 0 {
		structured["rows"] = rows
	}
	return structured
}

var tableSeparatorRe = regexp.MustCompile(`^\s*\|?[\s:|-]+\|?\s*$`)

// parseTableRows collects the data rows of every pipe table in the
// output, keyed by the table's header cells.
func parseTableRows(raw string) []map[string]string {
	var rows []map[string]string
	lines := strings.Split(raw, "\n")

	for i := 0; i+1 < len(lines); i++ {
		header := splitTableCells(lines[i])
		if header == nil || !tableSeparatorRe.MatchString(lines[i+1]) || !strings.Contains(lines[i+1], "-") {
			continue
		}
		for j := i + 2; j < len(lines); j++ {
			cells := splitTableCells(lines[j])
			if cells == nil {
				i = j
				break
			}
			row := make(map[string]string, len(header))
			for k, key := range header {
				if k < len(cells) {
					row[key] = cells[k]
				}
			}
			rows = append(rows, row)
			i = j
		}
	}
	return rows
}

// splitTableCells parses a pipe-delimited row into trimmed cells, or
// nil when the line is not a table row.
func splitTableCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") || len(trimmed) < 2 {
		return nil
	}
	parts := strings.Split(trimmed[1:len(trimmed)-1], "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// InsightsFromStructured reads an "insights" list from structured data,
// accepting plain strings or {text, confidence?, category?} objects.
// Returns nil when the key is absent so callers can fall back to text
// extraction.
func InsightsFromStructured(structured map[string]any, sourceAnalyzer string, max int) []models.Insight {
	list, ok := structured["insights"].([]any)
	if !ok {
		return nil
	}
	var insights []models.Insight
	for _, entry := range list {
		var in models.Insight
		switch v := entry.(type) {
		case string:
			in.Text = strings.TrimSpace(v)
		case map[string]any:
			if s, ok := v["text"].(string); ok {
				in.Text = strings.TrimSpace(s)
			}
			if c, ok := v["confidence"].(float64); ok {
				in.Confidence = c
			}
			if s, ok := v["category"].(string); ok {
				in.Category = s
			}
		}
		if in.Text == "" {
			continue
		}
		in.SourceAnalyzer = sourceAnalyzer
		insights = append(insights, in)
		if max > 0 && len(insights) >= max {
			break
		}
	}
	return insights
}

// ConceptsFromStructured reads a "concepts" list from structured data,
// accepting plain strings or {name, description?, related?} objects.
func ConceptsFromStructured(structured map[string]any, max int) []models.Concept {
	list, ok := structured["concepts"].([]any)
	if !ok {
		return nil
	}
	var concepts []models.Concept
	for _, entry := range list {
		var c models.Concept
		switch v := entry.(type) {
		case string:
			c.Name = strings.TrimSpace(v)
		case map[string]any:
			if s, ok := v["name"].(string); ok {
				c.Name = strings.TrimSpace(s)
			}
			if s, ok := v["description"].(string); ok {
				c.Description = s
			}
			if rel, ok := v["related"].([]any); ok {
				for _, r := range rel {
					if s, ok := r.(string); ok {
						c.Related = append(c.Related, s)
					}
				}
			}
		}
		if c.Name == "" {
			continue
		}
		if c.Occurrences == 0 {
			c.Occurrences = 1
		}
		concepts = append(concepts, c)
		if max > 0 && len(concepts) >= max {
			break
		}
	}
	return concepts
}
