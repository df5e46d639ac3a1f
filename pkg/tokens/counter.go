// Package tokens provides deterministic token counting for budget math.
package tokens

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the heuristic used when no tokenizer is available and for
// token→character slicing.
const CharsPerToken = 4

// Counter maps text to a token count. Implementations must be pure and safe
// for concurrent use.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts with a tiktoken encoding, falling back to the
// chars-per-token heuristic when the encoding could not be loaded.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the encoding for the given model, falling back to
// cl100k_base and finally to the heuristic-only counter.
func NewCounter(model string) *TiktokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("Tokenizer unavailable, using char heuristic", "model", model, "error", err)
			return &TiktokenCounter{}
		}
	}
	return &TiktokenCounter{encoding: enc}
}

// Count returns the token count of text, at least 1 for non-empty input.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return HeuristicCount(text)
}

// HeuristicCount approximates tokens at CharsPerToken characters each.
func HeuristicCount(text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) + CharsPerToken - 1) / CharsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// SliceByTokens returns the substring covering approximately tokens
// [startTok, endTok), using the character heuristic.
func SliceByTokens(text string, startTok, endTok int) string {
	start := startTok * CharsPerToken
	if start < 0 {
		start = 0
	}
	end := endTok * CharsPerToken
	if end < start {
		end = start
	}
	if start > len(text) {
		return ""
	}
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// TrimToTokens trims text so its estimated token count fits within budget,
// using proportional character slicing with a minimum keep ratio.
func TrimToTokens(c Counter, text string, budget int, minRatio float64) string {
	if budget <= 0 || text == "" {
		return text
	}
	current := c.Count(text)
	if current <= budget {
		return text
	}
	ratio := float64(budget) / float64(current)
	if ratio < minRatio {
		ratio = minRatio
	}
	keep := int(float64(len(text)) * ratio)
	if keep < 1 {
		keep = 1
	}
	if keep >= len(text) {
		return text
	}
	// Never cut inside a multi-byte rune.
	for keep > 0 && !utf8.RuneStart(text[keep]) {
		keep--
	}
	if keep == 0 {
		_, keep = utf8.DecodeRuneInString(text)
	}
	return text[:keep]
}
