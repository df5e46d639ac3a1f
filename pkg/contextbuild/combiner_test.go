package contextbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type charCounter struct{}

func (charCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func TestCombineSections_UnderBudgetConcatenates(t *testing.T) {
	sections := []string{"alpha", "beta", "gamma"}
	out := CombineSections(charCounter{}, sections, 1000, 10)
	assert.Equal(t, "alpha\n---\nbeta\n---\ngamma", out)
}

func TestCombineSections_ZeroBudgetDisablesTrimming(t *testing.T) {
	big := strings.Repeat("x", 10000)
	out := CombineSections(charCounter{}, []string{big, big}, 0, 10)
	assert.Equal(t, big+SectionSeparator+big, out)
}

func TestCombineSections_TrimsOverBudget(t *testing.T) {
	// Two 1000-token sections into a 500-token budget.
	a := strings.Repeat("a", 4000)
	b := strings.Repeat("b", 4000)
	out := CombineSections(charCounter{}, []string{a, b}, 500, 100)

	parts := strings.Split(out, SectionSeparator)
	require.Len(t, parts, 2)
	total := charCounter{}.Count(parts[0]) + charCounter{}.Count(parts[1])
	assert.LessOrEqual(t, total, 510, "combined sections should land near the budget")
	assert.Less(t, len(parts[0]), 4000)
	assert.Less(t, len(parts[1]), 4000)
}

func TestCombineSections_SmallSectionKeptWhole(t *testing.T) {
	small := "short section"                 // ~4 tokens
	large := strings.Repeat("y", 40000)      // 10000 tokens
	out := CombineSections(charCounter{}, []string{small, large}, 1000, 100)

	parts := strings.Split(out, SectionSeparator)
	require.Len(t, parts, 2)
	assert.Equal(t, small, parts[0], "a section under its guarantee is not trimmed")
	assert.Less(t, len(parts[1]), 40000)
}

func TestCombineSections_Empty(t *testing.T) {
	assert.Empty(t, CombineSections(charCounter{}, nil, 100, 10))
}

func TestFairShare_SumsToBudget(t *testing.T) {
	counts := []int{3000, 1000, 200}
	allocs := fairShare(counts, 2000, 500)

	sum := 0
	for _, a := range allocs {
		sum += a
	}
	assert.Equal(t, 2000, sum)
	// The biggest section gets the biggest share.
	assert.Greater(t, allocs[0], allocs[1])
	assert.GreaterOrEqual(t, allocs[1], allocs[2])
	for _, a := range allocs {
		assert.GreaterOrEqual(t, a, 0)
	}
}

func TestCombineSections_TinyBudgetStillTrimsLastSection(t *testing.T) {
	// A one-token budget over two 100-token sections: rounding drift
	// would push the last allocation to zero, which must not let the
	// section through untrimmed.
	a := strings.Repeat("a", 400)
	b := strings.Repeat("b", 400)
	out := CombineSections(charCounter{}, []string{a, b}, 1, 10)

	parts := strings.Split(out, SectionSeparator)
	require.Len(t, parts, 2)
	assert.Less(t, len(parts[0]), 400)
	assert.Less(t, len(parts[1]), 400)
}

func TestFairShare_DriftNeverZeroesLastAllocation(t *testing.T) {
	allocs := fairShare([]int{100, 100}, 1, 10)
	require.Len(t, allocs, 2)
	assert.GreaterOrEqual(t, allocs[1], 1)
}

func TestFairShare_MinCappedByEvenSplit(t *testing.T) {
	// Guarantee of 500 cannot hold with a 900-token budget over 3 sections.
	allocs := fairShare([]int{1000, 1000, 1000}, 900, 500)
	sum := 0
	for _, a := range allocs {
		sum += a
		assert.GreaterOrEqual(t, a, 300-1)
	}
	assert.Equal(t, 900, sum)
}
