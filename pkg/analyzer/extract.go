package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// minInsightChars is the shortest list item kept as an insight; shorter
// lines are headings, fragments, or filler.
const minInsightChars = 20

var (
	bulletLineRe   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
	numberedLineRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	conceptRe      = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
)

// ExtractInsights derives insights from list items anywhere in the
// output: bullet lines first, then numbered lines. Items of
// minInsightChars or fewer are discarded. Results are capped at max.
func ExtractInsights(raw, sourceAnalyzer string, max int) []models.Insight {
	var insights []models.Insight
	lines := strings.Split(raw, "\n")

	for _, re := range []*regexp.Regexp{bulletLineRe, numberedLineRe} {
		for _, line := range lines {
			if max > 0 && len(insights) >= max {
				return insights
			}
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			text := strings.TrimSpace(m[1])
			if len(text) <= minInsightChars {
				continue
			}
			insights = append(insights, models.Insight{
				Text:           text,
				SourceAnalyzer: sourceAnalyzer,
			})
		}
	}
	return insights
}

// ExtractConcepts collects [[wiki-linked]] concepts with occurrence
// counts, deduplicated case-insensitively. Results keep first-seen
// order; when they exceed max, the highest-occurrence set survives.
func ExtractConcepts(raw string, max int) []models.Concept {
	var order []string
	counts := make(map[string]int)
	names := make(map[string]string)

	for _, m := range conceptRe.FindAllStringSubmatch(raw, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			names[key] = name
		}
		counts[key]++
	}

	if max > 0 && len(order) > max {
		ranked := make([]string, len(order))
		copy(ranked, order)
		sort.SliceStable(ranked, func(i, j int) bool {
			return counts[ranked[i]] > counts[ranked[j]]
		})
		keep := make(map[string]bool, max)
		for _, key := range ranked[:max] {
			keep[key] = true
		}
		kept := order[:0]
		for _, key := range order {
			if keep[key] {
				kept = append(kept, key)
			}
		}
		order = kept
	}

	concepts := make([]models.Concept, 0, len(order))
	for _, key := range order {
		concepts = append(concepts, models.Concept{
			Name:        names[key],
			Occurrences: counts[key],
		})
	}
	return concepts
}
