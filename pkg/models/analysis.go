package models

import (
	"strings"
	"time"
)

// AnalyzerStatus tracks an analyzer record through its lifecycle.
// Transitions only move forward: pending → processing → completed|error.
type AnalyzerStatus string

const (
	AnalyzerStatusPending    AnalyzerStatus = "pending"
	AnalyzerStatusProcessing AnalyzerStatus = "processing"
	AnalyzerStatusCompleted  AnalyzerStatus = "completed"
	AnalyzerStatusError      AnalyzerStatus = "error"
)

// IsTerminal reports whether the status is completed or error.
func (s AnalyzerStatus) IsTerminal() bool {
	return s == AnalyzerStatusCompleted || s == AnalyzerStatusError
}

// rank orders statuses along the legal transition path.
func (s AnalyzerStatus) rank() int {
	switch s {
	case AnalyzerStatusPending:
		return 0
	case AnalyzerStatusProcessing:
		return 1
	case AnalyzerStatusCompleted, AnalyzerStatusError:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
func (s AnalyzerStatus) CanTransitionTo(next AnalyzerStatus) bool {
	return next.rank() > s.rank()
}

// TokenUsage accumulates prompt/completion token counts for LLM calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	// MaxTokens echoes the completion limit used, for telemetry.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Add returns the element-wise sum of two usages. MaxTokens is not summed.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Insight is a single takeaway extracted from an analyzer's output.
type Insight struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence,omitempty"`
	SourceAnalyzer string  `json:"source_analyzer,omitempty"`
	Category       string  `json:"category,omitempty"`
}

// Concept is a named entity or idea mined from an analyzer's output.
type Concept struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Related     []string `json:"related,omitempty"`
	Occurrences int      `json:"occurrences"`
}

// AnalysisResult is the full output of one analyzer execution.
type AnalysisResult struct {
	AnalyzerName   string         `json:"analyzer_name"`
	RawOutput      string         `json:"raw_output"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Insights       []Insight      `json:"insights,omitempty"`
	Concepts       []Concept      `json:"concepts,omitempty"`
	ProcessingTime float64        `json:"processing_time"`
	TokenUsage     TokenUsage     `json:"token_usage"`
	ModelUsed      string         `json:"model_used,omitempty"`
	Status         AnalyzerStatus `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

const (
	contextSectionInsights = 5
	contextSectionConcepts = 10
)

// ToContextSection serializes the result into the canonical section fed to
// downstream stages: heading, raw output, top insights, top concepts.
func (r *AnalysisResult) ToContextSection() string {
	lines := []string{"## " + r.AnalyzerName + " Analysis\n"}

	if r.RawOutput != "" {
		lines = append(lines, r.RawOutput)
	}

	if len(r.Insights) > 0 {
		lines = append(lines, "\n### Key Insights:")
		top := r.Insights
		if len(top) > contextSectionInsights {
			top = top[:contextSectionInsights]
		}
		for _, in := range top {
			lines = append(lines, "- "+in.Text)
		}
	}

	if len(r.Concepts) > 0 {
		lines = append(lines, "\n### Identified Concepts:")
		top := r.Concepts
		if len(top) > contextSectionConcepts {
			top = top[:contextSectionConcepts]
		}
		names := make([]string, len(top))
		for i, c := range top {
			names[i] = c.Name
		}
		lines = append(lines, strings.Join(names, ", "))
	}

	return strings.Join(lines, "\n")
}
