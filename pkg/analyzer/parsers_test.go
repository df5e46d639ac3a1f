package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSections(t *testing.T) {
	raw := `# Title

preamble text

## Summary
A short summary.

### Action Items:
- do the thing

## Risks
None.
`
	structured := parseSections(raw)
	sections, ok := structured["sections"].(map[string]string)
	require.True(t, ok)

	assert.Equal(t, "A short summary.", sections["Summary"])
	assert.Equal(t, "- do the thing", sections["Action Items"])
	assert.Equal(t, "None.", sections["Risks"])
	assert.NotContains(t, sections, "Title", "top-level heading is not a section")
}

func TestParseSections_NoHeadings(t *testing.T) {
	assert.Empty(t, parseSections("just some prose with no headings"))
}

func TestParseTableRows(t *testing.T) {
	raw := `## Analysis

| Say | Means |
|-----|-------|
| We should ship | Commitment to deadline |
| Maybe later | Deflection |

trailing prose
`
	rows := parseTableRows(raw)
	require.Len(t, rows, 2)
	assert.Equal(t, "We should ship", rows[0]["Say"])
	assert.Equal(t, "Commitment to deadline", rows[0]["Means"])
	assert.Equal(t, "Deflection", rows[1]["Means"])
}

func TestParseTableRows_IgnoresNonTables(t *testing.T) {
	assert.Empty(t, parseTableRows("no | tables | here\njust text"))
}

func TestParseDispatch(t *testing.T) {
	raw := "## Section\n| A | B |\n|---|---|\n| 1 | 2 |\n"

	withTables := Parse("say_means", raw)
	assert.Contains(t, withTables, "rows")

	sectionsOnly := Parse("meeting_notes", raw)
	assert.NotContains(t, sectionsOnly, "rows")
	assert.Contains(t, sectionsOnly, "sections")

	custom := Parse("my_custom_analyzer", raw)
	assert.Contains(t, custom, "sections")
}

func TestInsightsFromStructured(t *testing.T) {
	structured := map[string]any{
		"insights": []any{
			"plain string insight",
			map[string]any{"text": "typed insight", "confidence": 0.9, "category": "risk"},
			map[string]any{"text": ""},
		},
	}
	insights := InsightsFromStructured(structured, "say_means", 10)
	require.Len(t, insights, 2)
	assert.Equal(t, "plain string insight", insights[0].Text)
	assert.Equal(t, "say_means", insights[0].SourceAnalyzer)
	assert.Equal(t, 0.9, insights[1].Confidence)
	assert.Equal(t, "risk", insights[1].Category)

	assert.Nil(t, InsightsFromStructured(map[string]any{}, "x", 10))
}

func TestConceptsFromStructured(t *testing.T) {
	structured := map[string]any{
		"concepts": []any{
			"Atlas",
			map[string]any{"name": "Rollout", "description": "the plan", "related": []any{"Atlas"}},
		},
	}
	concepts := ConceptsFromStructured(structured, 10)
	require.Len(t, concepts, 2)
	assert.Equal(t, "Atlas", concepts[0].Name)
	assert.Equal(t, 1, concepts[0].Occurrences)
	assert.Equal(t, []string{"Atlas"}, concepts[1].Related)

	assert.Nil(t, ConceptsFromStructured(map[string]any{}, 10))
}

func TestExtractInsights_NumberedLists(t *testing.T) {
	raw := "### Key Insights:\n1. First numbered insight\n2) Second numbered insight"
	insights := ExtractInsights(raw, "x", 10)
	require.Len(t, insights, 2)
	assert.Equal(t, "First numbered insight", insights[0].Text)
	assert.Equal(t, "Second numbered insight", insights[1].Text)
}
