package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `# Say / Means Analysis

Some discussion of [[Project Atlas]] and the [[launch date]].

### Key Insights:
- The team agreed to move the [[launch date]] to Friday.
- Budget approval is still pending review.
* Alice owns the rollout plan for the launch.

### Identified Concepts:
[[Project Atlas]], [[launch date]], [[rollout plan]]
`

func TestExtractInsights(t *testing.T) {
	insights := ExtractInsights(sampleOutput, "say_means", 10)
	require.Len(t, insights, 3)
	assert.Equal(t, "The team agreed to move the [[launch date]] to Friday.", insights[0].Text)
	assert.Equal(t, "Budget approval is still pending review.", insights[1].Text)
	assert.Equal(t, "Alice owns the rollout plan for the launch.", insights[2].Text)
	assert.Equal(t, "say_means", insights[0].SourceAnalyzer)
}

func TestExtractInsights_BulletsUnderAnyHeading(t *testing.T) {
	raw := "## Summary\n- The team agreed to migrate the billing service next sprint.\n"
	insights := ExtractInsights(raw, "x", 10)
	require.Len(t, insights, 1)
	assert.Equal(t, "The team agreed to migrate the billing service next sprint.", insights[0].Text)
}

func TestExtractInsights_DiscardsShortItems(t *testing.T) {
	raw := "### Key Insights:\n- short one\n- This item is long enough to keep around.\n"
	insights := ExtractInsights(raw, "x", 10)
	require.Len(t, insights, 1)
	assert.Equal(t, "This item is long enough to keep around.", insights[0].Text)

	// Exactly at the threshold is still discarded.
	assert.Empty(t, ExtractInsights("- exactly 20 chars!!!!", "x", 10))
}

func TestExtractInsights_BulletsBeforeNumbered(t *testing.T) {
	raw := "1. Numbered items come after bullet items.\n- Bullet items are collected in the first pass.\n"
	insights := ExtractInsights(raw, "x", 10)
	require.Len(t, insights, 2)
	assert.Equal(t, "Bullet items are collected in the first pass.", insights[0].Text)
	assert.Equal(t, "Numbered items come after bullet items.", insights[1].Text)
}

func TestExtractInsights_Cap(t *testing.T) {
	insights := ExtractInsights(sampleOutput, "say_means", 2)
	assert.Len(t, insights, 2)
}

func TestExtractConcepts(t *testing.T) {
	concepts := ExtractConcepts(sampleOutput, 10)
	require.Len(t, concepts, 3)

	assert.Equal(t, "Project Atlas", concepts[0].Name)
	assert.Equal(t, 2, concepts[0].Occurrences)
	assert.Equal(t, "launch date", concepts[1].Name)
	assert.Equal(t, 3, concepts[1].Occurrences)
	assert.Equal(t, "rollout plan", concepts[2].Name)
	assert.Equal(t, 1, concepts[2].Occurrences)
}

func TestExtractConcepts_CaseInsensitiveDedup(t *testing.T) {
	concepts := ExtractConcepts("[[Atlas]] then [[atlas]] again", 10)
	require.Len(t, concepts, 1)
	assert.Equal(t, "Atlas", concepts[0].Name)
	assert.Equal(t, 2, concepts[0].Occurrences)
}

func TestExtractConcepts_CapKeepsMostMentioned(t *testing.T) {
	concepts := ExtractConcepts("[[Alpha]] [[Beta]] [[Gamma]] [[Gamma]] [[Gamma]]", 2)
	require.Len(t, concepts, 2)
	assert.Equal(t, "Alpha", concepts[0].Name)
	assert.Equal(t, "Gamma", concepts[1].Name)
	assert.Equal(t, 3, concepts[1].Occurrences)
}
