package tokens

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

// heuristicOnly forces the char-based path regardless of tiktoken availability.
type heuristicOnly struct{}

func (heuristicOnly) Count(text string) int { return HeuristicCount(text) }

func TestHeuristicCount(t *testing.T) {
	assert.Equal(t, 0, HeuristicCount(""))
	assert.Equal(t, 1, HeuristicCount("a"))
	assert.Equal(t, 1, HeuristicCount("abcd"))
	assert.Equal(t, 2, HeuristicCount("abcde"))
	assert.Equal(t, 25, HeuristicCount(strings.Repeat("x", 100)))
}

func TestSliceByTokens(t *testing.T) {
	text := strings.Repeat("abcd", 10) // 40 chars, ~10 tokens

	assert.Equal(t, "abcdabcd", SliceByTokens(text, 0, 2))
	assert.Equal(t, text[8:16], SliceByTokens(text, 2, 4))
	// End beyond text clamps to text length.
	assert.Equal(t, text, SliceByTokens(text, 0, 100))
	// Start beyond text yields empty.
	assert.Equal(t, "", SliceByTokens(text, 100, 200))
	// Inverted range yields empty.
	assert.Equal(t, "", SliceByTokens(text, 5, 3))
}

func TestTrimToTokens(t *testing.T) {
	c := heuristicOnly{}
	text := strings.Repeat("x", 400) // 100 tokens

	t.Run("no-op under budget", func(t *testing.T) {
		assert.Equal(t, text, TrimToTokens(c, text, 100, 0.05))
		assert.Equal(t, text, TrimToTokens(c, text, 1000, 0.05))
	})

	t.Run("zero budget disables trimming", func(t *testing.T) {
		assert.Equal(t, text, TrimToTokens(c, text, 0, 0.05))
	})

	t.Run("proportional trim", func(t *testing.T) {
		out := TrimToTokens(c, text, 50, 0.05)
		assert.Len(t, out, 200)
	})

	t.Run("ratio floor", func(t *testing.T) {
		out := TrimToTokens(c, text, 1, 0.05)
		// 1/100 is below the 0.05 floor, so 5% of 400 chars survive.
		assert.Len(t, out, 20)
	})

	t.Run("never splits a rune", func(t *testing.T) {
		multi := strings.Repeat("世", 100) // 300 bytes, 75 tokens
		out := TrimToTokens(c, multi, 50, 0.05)
		assert.True(t, utf8.ValidString(out))
		assert.True(t, strings.HasPrefix(multi, out))
		assert.Less(t, len(out), len(multi))
	})
}

func TestTiktokenCounterFallback(t *testing.T) {
	// Construct without an encoding to exercise the heuristic path.
	c := &TiktokenCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 3, c.Count(strings.Repeat("a", 12)))
}
