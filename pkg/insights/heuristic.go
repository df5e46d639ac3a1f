package insights

import (
	"regexp"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

var (
	bulletLineRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

	actionLineRe   = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?action(?:\s+items?)?\s*:\s*(.+)$`)
	decisionLineRe = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:key\s+)?decisions?\s*:\s*(.+)$`)
	riskLineRe     = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:risks?|issues?)\s*:\s*(.+)$`)

	ownerDetailRe = regexp.MustCompile(`(?i)^(?:owner|assigned(?:\s+to)?)\s*:\s*(.+)$`)
	dueDetailRe   = regexp.MustCompile(`(?i)^due\s*:\s*(.+)$`)
	handleRe      = regexp.MustCompile(`@([A-Za-z][\w.-]*)`)
	byDateRe      = regexp.MustCompile(`(?i)\bby\s+((?:mon|tues|wednes|thurs|fri|satur|sun)day|tomorrow|eod|end of (?:day|week|month)|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)`)

	// detailSplitRe separates inline details appended to an item line,
	// e.g. "Prepare deck — Owner: Ana — Due: 2025-02-01".
	detailSplitRe = regexp.MustCompile(`\s+[—–|]\s+|\s+-\s+`)
)

// extractHeuristic mines raw output line by line for Action:/Decision:/
// Risk: patterns. Owner and due-date details on their own lines attach
// to the most recent actionable item.
func extractHeuristic(src Source) []models.InsightItem {
	var items []models.InsightItem

	for _, line := range strings.Split(src.RawOutput, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var typ models.InsightType
		var text string
		switch {
		case actionLineRe.MatchString(trimmed):
			typ, text = models.InsightAction, actionLineRe.FindStringSubmatch(trimmed)[1]
		case decisionLineRe.MatchString(trimmed):
			typ, text = models.InsightDecision, decisionLineRe.FindStringSubmatch(trimmed)[1]
		case riskLineRe.MatchString(trimmed):
			typ, text = models.InsightRisk, riskLineRe.FindStringSubmatch(trimmed)[1]
		default:
			if owner, due, detailOnly := ownerDueDetail(trimmed); detailOnly {
				if last := lastActionable(items); last != nil {
					if last.Owner == "" {
						last.Owner = owner
					}
					if last.DueDate == "" {
						last.DueDate = due
					}
				}
			}
			continue
		}

		item := models.InsightItem{Type: typ, SourceAnalyzer: src.Analyzer}
		item.Title = strings.TrimSpace(stripSegAnchors(parseInlineDetails(text, &item), &item))
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// lastActionable returns the most recent action item, falling back to
// the most recent item of any type.
func lastActionable(items []models.InsightItem) *models.InsightItem {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Type == models.InsightAction {
			return &items[i]
		}
	}
	if len(items) > 0 {
		return &items[len(items)-1]
	}
	return nil
}

// parseInlineDetails strips Owner:/Due:/@handle details embedded in an
// item line, recording them on the item, and returns the title part.
func parseInlineDetails(text string, item *models.InsightItem) string {
	parts := detailSplitRe.Split(text, -1)
	var titleParts []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if m := ownerDetailRe.FindStringSubmatch(part); m != nil {
			if item.Owner == "" {
				item.Owner = strings.TrimSpace(stripSegAnchors(m[1], item))
			}
			continue
		}
		if m := dueDetailRe.FindStringSubmatch(part); m != nil {
			if item.DueDate == "" {
				item.DueDate = strings.TrimSpace(stripSegAnchors(m[1], item))
			}
			continue
		}
		titleParts = append(titleParts, part)
	}
	title := strings.Join(titleParts, " ")

	if item.Owner == "" {
		if m := handleRe.FindStringSubmatch(title); m != nil {
			item.Owner = m[1]
		}
	}
	if item.DueDate == "" {
		if m := byDateRe.FindStringSubmatch(title); m != nil {
			item.DueDate = m[1]
		}
	}
	return title
}

// ownerDueDetail reports whether the line carries only Owner:/Due:
// details (possibly both, separated like inline details).
func ownerDueDetail(line string) (owner, due string, detailOnly bool) {
	text, isBullet := stripBullet(line)
	if !isBullet {
		text = strings.TrimSpace(line)
	}
	for _, part := range detailSplitRe.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := ownerDetailRe.FindStringSubmatch(part); m != nil {
			owner = strings.TrimSpace(m[1])
			continue
		}
		if m := dueDetailRe.FindStringSubmatch(part); m != nil {
			due = strings.TrimSpace(m[1])
			continue
		}
		return "", "", false
	}
	return owner, due, owner != "" || due != ""
}
