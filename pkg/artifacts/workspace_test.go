package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	cfg := config.DefaultOutputConfig()
	cfg.Directory = t.TempDir()
	w, err := NewWorkspace(cfg, "job-42")
	require.NoError(t, err)
	return w
}

func TestWorkspace_Layout(t *testing.T) {
	w := newTestWorkspace(t)
	for _, sub := range []string{
		"intermediate/stage_a", "intermediate/stage_b", "intermediate/summaries", "final",
	} {
		info, err := os.Stat(filepath.Join(w.Dir(), sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
}

func TestWriteIntermediate(t *testing.T) {
	w := newTestWorkspace(t)
	result := &models.AnalysisResult{
		AnalyzerName:   "say_means",
		RawOutput:      "full analysis output",
		Status:         models.AnalyzerStatusCompleted,
		TokenUsage:     models.TokenUsage{TotalTokens: 42},
		ModelUsed:      "gpt-4o-mini",
		ProcessingTime: 1.5,
	}
	require.NoError(t, w.WriteIntermediate(models.StageA, result))

	data, err := os.ReadFile(filepath.Join(w.Dir(), "intermediate/stage_a/say_means.json"))
	require.NoError(t, err)
	var decoded models.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "full analysis output", decoded.RawOutput)

	md, err := os.ReadFile(filepath.Join(w.Dir(), "intermediate/stage_a/say_means.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# say_means")
	assert.Contains(t, string(md), "full analysis output")
}

func TestWriteIntermediate_TruncatesMarkdownOnly(t *testing.T) {
	cfg := config.DefaultOutputConfig()
	cfg.Directory = t.TempDir()
	cfg.RawOutputMaxChars = 20
	w, err := NewWorkspace(cfg, "job-42")
	require.NoError(t, err)

	long := strings.Repeat("x", 100)
	result := &models.AnalysisResult{AnalyzerName: "a", RawOutput: long, Status: models.AnalyzerStatusCompleted}
	require.NoError(t, w.WriteIntermediate(models.StageB, result))

	md, err := os.ReadFile(filepath.Join(w.Dir(), "intermediate/stage_b/a.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "(output truncated)")
	assert.NotContains(t, string(md), strings.Repeat("x", 21))

	data, err := os.ReadFile(filepath.Join(w.Dir(), "intermediate/stage_b/a.json"))
	require.NoError(t, err)
	var decoded models.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, long, decoded.RawOutput, "JSON artifacts keep the full output")
}

func TestContextAndFinalArtifacts(t *testing.T) {
	w := newTestWorkspace(t)

	require.NoError(t, w.WriteStageBContext("stage b context"))
	require.NoError(t, w.WriteFinalContext("final context"))
	require.NoError(t, w.WriteFinalOutput("meeting_notes", "# Notes"))
	require.NoError(t, w.WriteDashboard("json", []byte(`{"items":[]}`)))

	for path, want := range map[string]string{
		"intermediate/stage_b_context.txt": "stage b context",
		"final/context_combined.txt":       "final context",
		"final/meeting_notes.md":           "# Notes",
		"final/insight_dashboard.json":     `{"items":[]}`,
	} {
		data, err := os.ReadFile(filepath.Join(w.Dir(), path))
		require.NoError(t, err, path)
		assert.Equal(t, want, string(data))
	}
}

func TestFinalStatusAndSentinel(t *testing.T) {
	w := newTestWorkspace(t)

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	job := models.NewJob("job-42", []string{"say_means"}, []string{"first_principles"}, nil)
	job.Status = models.JobStatusCompleted
	job.StartedAt = &start
	job.CompletedAt = &end
	rec := job.StageA["say_means"]
	rec.TokenUsage = models.TokenUsage{TotalTokens: 100}
	job.StageA["say_means"] = rec
	job.RecomputeTokenTotal()

	status := BuildFinalStatus(job, w.Dir())
	require.NoError(t, w.WriteFinalStatus(status))
	require.NoError(t, w.MarkCompleted())

	data, err := os.ReadFile(filepath.Join(w.Dir(), "final_status.json"))
	require.NoError(t, err)
	var decoded FinalStatus
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "job-42", decoded.RunID)
	assert.Equal(t, "completed", decoded.Status)
	assert.Equal(t, []string{"say_means"}, decoded.StageA.Analyzers)
	assert.Equal(t, 100, decoded.StageA.Tokens)
	assert.Equal(t, 100, decoded.TotalTokens)
	assert.InDelta(t, 90, decoded.WallClockSeconds, 0.001)
	assert.Equal(t, "2026-05-01T10:00:00Z", decoded.Timestamps.StartTime)

	info, err := os.Stat(filepath.Join(w.Dir(), "COMPLETED"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSummarySink(t *testing.T) {
	w := newTestWorkspace(t)
	sink := w.SummarySink()

	require.NoError(t, sink.Save("chunk_000.md", []byte("part")))
	data, err := os.ReadFile(filepath.Join(w.Dir(), "intermediate/summaries/chunk_000.md"))
	require.NoError(t, err)
	assert.Equal(t, "part", string(data))

	assert.Error(t, sink.Save("../escape.md", []byte("nope")))
}
