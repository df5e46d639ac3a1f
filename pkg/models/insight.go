package models

import "time"

// InsightType classifies dashboard items.
type InsightType string

const (
	InsightAction   InsightType = "action"
	InsightDecision InsightType = "decision"
	InsightRisk     InsightType = "risk"
)

// IsValid reports whether the type is one of the known insight types.
func (t InsightType) IsValid() bool {
	switch t {
	case InsightAction, InsightDecision, InsightRisk:
		return true
	}
	return false
}

// InsightEvidence anchors an item to a transcript segment.
type InsightEvidence struct {
	SegmentID *int   `json:"segment_id,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Quote     string `json:"quote,omitempty"`
}

// InsightLinks holds navigable references for an item.
type InsightLinks struct {
	TranscriptAnchor string `json:"transcript_anchor,omitempty"`
}

// InsightItem is one row of the insight dashboard: an action, decision, or
// risk with optional ownership, due date, and transcript evidence.
type InsightItem struct {
	InsightID      string          `json:"insight_id"`
	Type           InsightType     `json:"type"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Owner          string          `json:"owner,omitempty"`
	DueDate        string          `json:"due_date,omitempty"`
	Priority       string          `json:"priority,omitempty"`
	Confidence     *float64        `json:"confidence,omitempty"`
	SourceAnalyzer string          `json:"source_analyzer,omitempty"`
	Evidence       InsightEvidence `json:"evidence"`
	Links          InsightLinks    `json:"links"`
	CreatedAt      time.Time       `json:"created_at"`
}
