// Package contextbuild assembles the combined context documents fed to
// synthesis stages: fair-share budgeting across analyzer sections and a
// map-reduce transcript summarizer.
package contextbuild

import (
	"math"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/tokens"
)

// SectionSeparator joins analyzer sections in a combined context.
const SectionSeparator = "\n---\n"

// trimFloorRatio bounds how aggressively a section may be cut.
const trimFloorRatio = 0.05

// CombineSections concatenates sections under a total token budget.
// When the sections fit (or the budget is disabled), they are joined
// untouched. Otherwise each section gets a fair share: a guaranteed
// minimum, with the remainder distributed proportionally to how much
// each section exceeds that minimum.
func CombineSections(counter tokens.Counter, sections []string, budget, minPerSection int) string {
	if len(sections) == 0 {
		return ""
	}

	counts := make([]int, len(sections))
	total := 0
	for i, s := range sections {
		counts[i] = counter.Count(s)
		total += counts[i]
	}

	if budget <= 0 || total <= budget {
		return strings.Join(sections, SectionSeparator)
	}

	allocs := fairShare(counts, budget, minPerSection)
	trimmed := make([]string, len(sections))
	for i, s := range sections {
		trimmed[i] = tokens.TrimToTokens(counter, s, allocs[i], trimFloorRatio)
	}
	return strings.Join(trimmed, SectionSeparator)
}

// fairShare splits budget across sections: every section is guaranteed
// min tokens (capped at budget/n), and the remainder is shared in
// proportion to each section's excess over that guarantee. The final
// allocation absorbs rounding drift so the sum lands on the budget,
// but never drops below one token.
func fairShare(counts []int, budget, min int) []int {
	n := len(counts)
	guaranteed := budget / n
	if min < guaranteed {
		guaranteed = min
	}
	if guaranteed < 0 {
		guaranteed = 0
	}

	remainder := budget - n*guaranteed

	weights := make([]float64, n)
	var weightSum float64
	for i, c := range counts {
		excess := c - guaranteed
		if excess < 0 {
			excess = 0
		}
		weights[i] = float64(excess + 1)
		weightSum += weights[i]
	}

	allocs := make([]int, n)
	assigned := 0
	for i := range counts {
		share := int(math.Round(float64(remainder) * weights[i] / weightSum))
		allocs[i] = guaranteed + share
		assigned += allocs[i]
	}

	// Rounding drift lands on the last section. Keep at least one token
	// so the section is still trimmed rather than passed through whole.
	allocs[n-1] += budget - assigned
	if allocs[n-1] < 1 {
		allocs[n-1] = 1
	}
	return allocs
}
