package e2e

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

func TestAnalyzerFailure_SiblingsAndJobComplete(t *testing.T) {
	app := newTestApp(t)
	app.LLM.fail("PROMPT perspective_perception", errors.New("model exploded"))

	jobID := app.submit(t, map[string]any{
		"transcript": sampleTranscript,
		"selected": map[string]any{
			"stage_a": []string{"say_means", "perspective_perception"},
			"stage_b": []string{"first_principles"},
			"final":   []string{"meeting_notes"},
		},
	})
	job := app.waitForJob(t, jobID)

	// One failed analyzer never fails the job.
	require.Equal(t, models.JobStatusCompleted, job.Status)

	failed := job.StageA["perspective_perception"]
	assert.Equal(t, models.AnalyzerStatusError, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "model exploded")
	assert.Zero(t, failed.TokenUsage.TotalTokens)

	assert.Equal(t, models.AnalyzerStatusCompleted, job.StageA["say_means"].Status)
	assert.Equal(t, models.AnalyzerStatusCompleted, job.StageB["first_principles"].Status)
	assert.Equal(t, models.AnalyzerStatusCompleted, job.Final["meeting_notes"].Status)

	_, err := os.Stat(app.jobFile(jobID, "COMPLETED"))
	assert.NoError(t, err)
}

func TestAllAnalyzersFail_JobStillCompletes(t *testing.T) {
	app := newTestApp(t)
	app.LLM.fail("PROMPT", errors.New("provider outage"))

	jobID := app.submit(t, map[string]any{
		"transcript": sampleTranscript,
		"selected": map[string]any{
			"stage_a": []string{"say_means"},
			"stage_b": []string{},
			"final":   []string{},
		},
	})
	job := app.waitForJob(t, jobID)

	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.AnalyzerStatusError, job.StageA["say_means"].Status)

	// An empty dashboard is still written alongside the sentinel.
	_, err := os.Stat(app.jobFile(jobID, "final", "insight_dashboard.json"))
	assert.NoError(t, err)
	_, err = os.Stat(app.jobFile(jobID, "COMPLETED"))
	assert.NoError(t, err)
}

func TestSubmitRejection_NeverCreatesJob(t *testing.T) {
	app := newTestApp(t)

	code, body := app.postJSON(t, "/api/v1/jobs", map[string]any{
		"transcript": sampleTranscript,
		"selected":   map[string]any{"stage_a": []string{"not_an_analyzer"}},
	}, nil)
	assert.Equal(t, 400, code)
	assert.Contains(t, body, "unknown analyzer")

	// Nothing was queued, so no worker output appears.
	entries, err := os.ReadDir(app.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
