package api

import "time"

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID    string    `json:"job_id"`
	QueuedAt time.Time `json:"queued_at"`
}

// AnalyzerInfo describes one registered analyzer.
type AnalyzerInfo struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Stage       string `json:"stage"`
	Builtin     bool   `json:"builtin"`
	PromptPath  string `json:"prompt_path"`
}

// AnalyzersResponse groups registered analyzers by stage.
type AnalyzersResponse struct {
	StageA []AnalyzerInfo `json:"stage_a"`
	StageB []AnalyzerInfo `json:"stage_b"`
	Final  []AnalyzerInfo `json:"final"`
}

// HealthCheck is one component's slice of the health response.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}
