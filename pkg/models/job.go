package models

import "time"

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// StageKey identifies a pipeline stage.
type StageKey string

const (
	StageA     StageKey = "stage_a"
	StageB     StageKey = "stage_b"
	StageFinal StageKey = "final"
)

// IsValid reports whether the stage key is one of the known stages.
func (s StageKey) IsValid() bool {
	switch s {
	case StageA, StageB, StageFinal:
		return true
	}
	return false
}

// AnalyzerRecord is the persisted per-analyzer slice of a Job.
type AnalyzerRecord struct {
	Status         AnalyzerStatus `json:"status"`
	ProcessingTime float64        `json:"processing_time,omitempty"`
	TokenUsage     TokenUsage     `json:"token_usage"`
	RawOutput      string         `json:"raw_output,omitempty"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
	Insights       []Insight      `json:"insights,omitempty"`
	Concepts       []Concept      `json:"concepts,omitempty"`
	ModelUsed      string         `json:"model_used,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	PromptPath     string         `json:"prompt_path,omitempty"`
}

// Job is the durable record of one pipeline run, keyed by JobID in the store.
// The scheduler is the only writer; readers get snapshots.
type Job struct {
	JobID                 string                    `json:"jobId"`
	Status                JobStatus                 `json:"status"`
	StageA                map[string]AnalyzerRecord `json:"stageA"`
	StageB                map[string]AnalyzerRecord `json:"stageB"`
	Final                 map[string]AnalyzerRecord `json:"final"`
	TokenUsageTotal       TokenUsage                `json:"tokenUsageTotal"`
	Errors                []string                  `json:"errors,omitempty"`
	StartedAt             *time.Time                `json:"startedAt,omitempty"`
	CompletedAt           *time.Time                `json:"completedAt,omitempty"`
	TotalProcessingTimeMs int64                     `json:"totalProcessingTimeMs,omitempty"`
}

// NewJob creates a queued job with pending records for every selected analyzer.
func NewJob(jobID string, stageA, stageB, final []string) *Job {
	job := &Job{
		JobID:  jobID,
		Status: JobStatusQueued,
		StageA: make(map[string]AnalyzerRecord, len(stageA)),
		StageB: make(map[string]AnalyzerRecord, len(stageB)),
		Final:  make(map[string]AnalyzerRecord, len(final)),
	}
	for _, slug := range stageA {
		job.StageA[slug] = AnalyzerRecord{Status: AnalyzerStatusPending}
	}
	for _, slug := range stageB {
		job.StageB[slug] = AnalyzerRecord{Status: AnalyzerStatusPending}
	}
	for _, slug := range final {
		job.Final[slug] = AnalyzerRecord{Status: AnalyzerStatusPending}
	}
	return job
}

// StageRecords returns the record map for the given stage.
func (j *Job) StageRecords(stage StageKey) map[string]AnalyzerRecord {
	switch stage {
	case StageA:
		return j.StageA
	case StageB:
		return j.StageB
	case StageFinal:
		return j.Final
	}
	return nil
}

// RecomputeTokenTotal sums per-analyzer usage across all stages. Used by
// store updates to keep the total additively consistent with the records.
func (j *Job) RecomputeTokenTotal() {
	var total TokenUsage
	for _, records := range []map[string]AnalyzerRecord{j.StageA, j.StageB, j.Final} {
		for _, rec := range records {
			total = total.Add(rec.TokenUsage)
		}
	}
	j.TokenUsageTotal = total
}
