package insights

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

const (
	// maxQuoteChars caps evidence quotes stored in items.
	maxQuoteChars = 200
	// titlePrefixChars is the title prefix length used for substring
	// matching against transcript segments.
	titlePrefixChars = 40
)

// linkEvidence anchors items to transcript segments. Items with an
// explicit segment id get their evidence fields completed from that
// segment; the rest are matched by a case-insensitive substring search
// over segment texts using the item's quote or a short title prefix.
func linkEvidence(items []models.InsightItem, transcript *models.Transcript) {
	if transcript == nil {
		return
	}
	for i := range items {
		item := &items[i]
		if item.Evidence.SegmentID != nil {
			if seg := transcript.SegmentByID(*item.Evidence.SegmentID); seg != nil {
				completeEvidence(item, seg)
			} else {
				item.Evidence.SegmentID = nil
			}
			continue
		}
		if seg := findSegment(item, transcript); seg != nil {
			id := seg.SegmentID
			item.Evidence.SegmentID = &id
			completeEvidence(item, seg)
		}
	}
}

func completeEvidence(item *models.InsightItem, seg *models.TranscriptSegment) {
	if item.Evidence.Speaker == "" {
		item.Evidence.Speaker = seg.Speaker
	}
	if item.Evidence.Timestamp == "" {
		item.Evidence.Timestamp = seg.Timestamp
	}
	if item.Evidence.Quote == "" {
		item.Evidence.Quote = truncateQuote(seg.Text)
	}
	item.Links.TranscriptAnchor = fmt.Sprintf("#seg-%d", seg.SegmentID)
}

func findSegment(item *models.InsightItem, transcript *models.Transcript) *models.TranscriptSegment {
	needles := make([]string, 0, 2)
	if q := strings.TrimSpace(item.Evidence.Quote); q != "" {
		needles = append(needles, strings.ToLower(q))
	}
	if prefix := titlePrefix(item.Title); prefix != "" {
		needles = append(needles, strings.ToLower(prefix))
	}

	for _, needle := range needles {
		for i := range transcript.Segments {
			if strings.Contains(strings.ToLower(transcript.Segments[i].Text), needle) {
				return &transcript.Segments[i]
			}
		}
	}
	return nil
}

// titlePrefix returns the leading words of the title, capped at
// titlePrefixChars without splitting a word.
func titlePrefix(title string) string {
	title = strings.TrimSpace(title)
	if len(title) <= titlePrefixChars {
		return title
	}
	cut := cutAtRune(title, titlePrefixChars)
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func truncateQuote(quote string) string {
	quote = strings.TrimSpace(quote)
	if len(quote) > maxQuoteChars {
		quote = cutAtRune(quote, maxQuoteChars)
	}
	return quote
}

// cutAtRune truncates s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
