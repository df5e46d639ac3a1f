package artifacts

import (
	"sort"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// StageStatus summarizes one stage for final_status.json.
type StageStatus struct {
	Analyzers []string `json:"analyzers"`
	Tokens    int      `json:"tokens"`
}

// Timestamps brackets the run's wall clock.
type Timestamps struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// FinalStatus is the machine-readable run summary written next to the
// COMPLETED sentinel.
type FinalStatus struct {
	RunID            string      `json:"run_id"`
	Status           string      `json:"status"`
	OutputDir        string      `json:"output_dir"`
	StageA           StageStatus `json:"stage_a"`
	StageB           StageStatus `json:"stage_b"`
	TotalTokens      int         `json:"total_tokens"`
	WallClockSeconds float64     `json:"wall_clock_seconds"`
	Timestamps       Timestamps  `json:"timestamps"`
	Error            string      `json:"error,omitempty"`
}

// BuildFinalStatus derives the run summary from a terminal job record.
func BuildFinalStatus(job *models.Job, outputDir string) *FinalStatus {
	status := &FinalStatus{
		RunID:       job.JobID,
		Status:      string(job.Status),
		OutputDir:   outputDir,
		StageA:      stageStatus(job.StageA),
		StageB:      stageStatus(job.StageB),
		TotalTokens: job.TokenUsageTotal.TotalTokens,
	}
	if len(job.Errors) > 0 {
		status.Error = job.Errors[len(job.Errors)-1]
	}
	if job.StartedAt != nil {
		status.Timestamps.StartTime = job.StartedAt.UTC().Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		status.Timestamps.EndTime = job.CompletedAt.UTC().Format(time.RFC3339)
		if job.StartedAt != nil {
			status.WallClockSeconds = job.CompletedAt.Sub(*job.StartedAt).Seconds()
		}
	}
	return status
}

func stageStatus(records map[string]models.AnalyzerRecord) StageStatus {
	s := StageStatus{Analyzers: make([]string, 0, len(records))}
	for slug, rec := range records {
		s.Analyzers = append(s.Analyzers, slug)
		s.Tokens += rec.TokenUsage.TotalTokens
	}
	sort.Strings(s.Analyzers)
	return s
}
