package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithSpeakers(t *testing.T) {
	raw := "Alice: We need to ship the fix by Friday.\n\nBob: Agreed, I'll own it.\n\nAlice: Great."

	tr := Parse(raw, "standup.txt")

	require.Len(t, tr.Segments, 3)
	assert.True(t, tr.HasSpeakerNames)
	assert.Equal(t, "Alice", tr.Segments[0].Speaker)
	assert.Equal(t, "We need to ship the fix by Friday.", tr.Segments[0].Text)
	assert.Equal(t, "Bob", tr.Segments[1].Speaker)

	// Segment ids are dense and ordered.
	for i, seg := range tr.Segments {
		assert.Equal(t, i, seg.SegmentID)
	}

	require.Len(t, tr.Speakers, 2)
	assert.Equal(t, "alice", tr.Speakers[0].ID)
	assert.Equal(t, 2, tr.Speakers[0].SegmentsCount)
	assert.Equal(t, "standup.txt", tr.Metadata.Filename)
	assert.Equal(t, 2, tr.Metadata.SpeakerCount)
}

func TestParseContinuationLines(t *testing.T) {
	raw := "Alice: First line\nsecond line continues\n\nBob: Reply here"

	tr := Parse(raw, "")

	require.Len(t, tr.Segments, 2)
	assert.Equal(t, "First line second line continues", tr.Segments[0].Text)
}

func TestParseSpeakerNumberLabels(t *testing.T) {
	raw := "Speaker 1: Ship the fix by Friday.\n\nSpeaker 2: Agreed."

	tr := Parse(raw, "")

	require.Len(t, tr.Segments, 2)
	assert.True(t, tr.HasSpeakerNames)
	assert.Equal(t, "Speaker 1", tr.Segments[0].Speaker)
	assert.Equal(t, "Speaker 2", tr.Segments[1].Speaker)
}

func TestParseWithoutSpeakers(t *testing.T) {
	raw := "just some freeform notes\n\nanother paragraph of notes here"

	tr := Parse(raw, "")

	require.Len(t, tr.Segments, 2)
	assert.False(t, tr.HasSpeakerNames)
	assert.Empty(t, tr.Segments[0].Speaker)
	assert.Empty(t, tr.Speakers)
}

func TestParseSingleBlockFallback(t *testing.T) {
	raw := "one continuous block of text without breaks"

	tr := Parse(raw, "")

	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 0, tr.Segments[0].SegmentID)
}

func TestParseMetadata(t *testing.T) {
	raw := "# Q3 Planning\nDate: 2025-06-15\nDuration: 45 minutes\n\nAlice: Let's begin.\n\nBob: Ready."

	tr := Parse(raw, "")

	assert.Equal(t, "Q3 Planning", tr.Metadata.Title)
	require.NotNil(t, tr.Metadata.Date)
	assert.Equal(t, "2025-06-15", tr.Metadata.Date.Format("2006-01-02"))
	assert.Equal(t, "45 minutes", tr.Metadata.Duration)
	assert.Greater(t, tr.Metadata.WordCount, 0)
}

func TestTextForAnalysis(t *testing.T) {
	raw := "Alice: Hello there.\n\nBob: Hi."

	tr := Parse(raw, "")

	assert.Equal(t, "Alice: Hello there.\n\nBob: Hi.", tr.TextForAnalysis())
}
