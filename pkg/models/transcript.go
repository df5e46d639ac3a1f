// Package models contains the domain types shared across the pipeline:
// transcripts, analyzer results, job records, and insight items.
package models

import (
	"strings"
	"time"
)

// TranscriptSegment is one contiguous utterance in a transcript.
// SegmentID is dense and unique within a transcript.
type TranscriptSegment struct {
	SegmentID int    `json:"segment_id"`
	Speaker   string `json:"speaker,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Text      string `json:"text"`
}

// Speaker aggregates per-speaker statistics derived from segments.
type Speaker struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SegmentsCount int    `json:"segments_count"`
	TotalWords    int    `json:"total_words"`
}

// TranscriptMetadata carries descriptive fields mined from the raw text.
type TranscriptMetadata struct {
	Filename     string     `json:"filename,omitempty"`
	Title        string     `json:"title,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Duration     string     `json:"duration,omitempty"`
	WordCount    int        `json:"word_count"`
	SegmentCount int        `json:"segment_count"`
	SpeakerCount int        `json:"speaker_count"`
}

// Transcript is the immutable, parsed form of a submitted transcript.
type Transcript struct {
	Segments        []TranscriptSegment `json:"segments"`
	Speakers        []Speaker           `json:"speakers"`
	Metadata        TranscriptMetadata  `json:"metadata"`
	RawText         string              `json:"raw_text"`
	HasSpeakerNames bool                `json:"has_speaker_names"`
}

// TextForAnalysis renders the canonical analysis view: one line per segment,
// speaker-prefixed where known, blank-line separated.
func (t *Transcript) TextForAnalysis() string {
	if len(t.Segments) == 0 {
		return t.RawText
	}
	lines := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if seg.Speaker != "" {
			lines = append(lines, seg.Speaker+": "+seg.Text)
		} else {
			lines = append(lines, seg.Text)
		}
	}
	return strings.Join(lines, "\n\n")
}

// SegmentByID returns the segment with the given id, or nil.
func (t *Transcript) SegmentByID(id int) *TranscriptSegment {
	for i := range t.Segments {
		if t.Segments[i].SegmentID == id {
			return &t.Segments[i]
		}
	}
	return nil
}
