package events

import (
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// Meta carries the fields every event shares. Ts is UTC ISO-8601.
type Meta struct {
	Type string `json:"type"`
	Ts   string `json:"ts"`
}

func newMeta(eventType string) Meta {
	return Meta{
		Type: eventType,
		Ts:   time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// JobQueuedPayload announces a freshly submitted job.
type JobQueuedPayload struct {
	Meta
	JobID string `json:"jobId"`
}

// AnalyzerStartedPayload marks an analyzer task entering processing.
type AnalyzerStartedPayload struct {
	Meta
	JobID    string `json:"jobId"`
	Stage    string `json:"stage"`
	Analyzer string `json:"analyzer"`
}

// AnalyzerCompletedPayload marks a successful analyzer task.
type AnalyzerCompletedPayload struct {
	Meta
	JobID            string            `json:"jobId"`
	Stage            string            `json:"stage"`
	Analyzer         string            `json:"analyzer"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
	TokenUsage       models.TokenUsage `json:"tokenUsage"`
	CostUSD          float64           `json:"costUSD,omitempty"`
}

// AnalyzerErrorPayload marks a failed analyzer task.
type AnalyzerErrorPayload struct {
	Meta
	JobID            string `json:"jobId"`
	Stage            string `json:"stage"`
	Analyzer         string `json:"analyzer"`
	ErrorMessage     string `json:"errorMessage"`
	ProcessingTimeMs int64  `json:"processingTimeMs,omitempty"`
}

// StageCompletedPayload marks a stage barrier being crossed.
type StageCompletedPayload struct {
	Meta
	JobID string `json:"jobId"`
	Stage string `json:"stage"`
}

// InsightsUpdatedPayload carries the aggregated dashboard counts.
type InsightsUpdatedPayload struct {
	Meta
	JobID  string         `json:"jobId"`
	Counts map[string]int `json:"counts"`
	Items  int            `json:"items"`
}

// JobCompletedPayload is the terminal success event.
type JobCompletedPayload struct {
	Meta
	JobID                 string            `json:"jobId"`
	TotalProcessingTimeMs int64             `json:"totalProcessingTimeMs"`
	TotalTokenUsage       models.TokenUsage `json:"totalTokenUsage"`
	TotalCostUSD          float64           `json:"totalCostUSD,omitempty"`
}

// JobErrorPayload is the terminal failure event.
type JobErrorPayload struct {
	Meta
	JobID     string `json:"jobId"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
