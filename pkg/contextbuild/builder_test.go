package contextbuild

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

func completedResult(name, raw string) *models.AnalysisResult {
	return &models.AnalysisResult{
		AnalyzerName: name,
		RawOutput:    raw,
		Status:       models.AnalyzerStatusCompleted,
	}
}

func newTestBuilder(client *scriptedLLM) *Builder {
	var summarizer *Summarizer
	if client != nil {
		summarizer = newTestSummarizer(client)
	}
	return NewBuilder(charCounter{}, config.DefaultProcessingConfig(), config.DefaultSummaryConfig(), summarizer, slog.Default())
}

func testTranscript() *models.Transcript {
	return &models.Transcript{
		Segments: []models.TranscriptSegment{
			{SegmentID: 0, Speaker: "Alice", Text: "We decided to ship."},
		},
	}
}

func TestBuildContext_StageBSkipsTranscriptByDefault(t *testing.T) {
	b := newTestBuilder(nil)
	results := []*models.AnalysisResult{
		completedResult("say_means", "analysis one"),
		completedResult("premises_assertions", "analysis two"),
	}

	out, usage := b.BuildContext(context.Background(), models.StageB, results, testTranscript(), StageOptions{}, nil)

	assert.Contains(t, out, "## say_means Analysis")
	assert.Contains(t, out, "## premises_assertions Analysis")
	assert.NotContains(t, out, transcriptHeading)
	assert.Zero(t, usage.TotalTokens)
}

func TestBuildContext_SkipsFailedResults(t *testing.T) {
	b := newTestBuilder(nil)
	failed := &models.AnalysisResult{AnalyzerName: "broken", Status: models.AnalyzerStatusError}
	results := []*models.AnalysisResult{completedResult("ok", "good output"), failed, nil}

	out, _ := b.BuildContext(context.Background(), models.StageB, results, nil, StageOptions{}, nil)
	assert.Contains(t, out, "## ok Analysis")
	assert.NotContains(t, out, "broken")
}

func TestBuildContext_FinalIncludesFullTranscript(t *testing.T) {
	b := newTestBuilder(nil)
	results := []*models.AnalysisResult{completedResult("meeting_notes", "notes")}

	out, _ := b.BuildContext(context.Background(), models.StageFinal, results, testTranscript(), StageOptions{}, nil)

	assert.Contains(t, out, transcriptHeading)
	assert.Contains(t, out, "Alice: We decided to ship.")
}

func TestBuildContext_TranscriptCharLimit(t *testing.T) {
	b := newTestBuilder(nil)
	long := strings.Repeat("x", 3000)
	tr := &models.Transcript{RawText: long}

	out, _ := b.BuildContext(context.Background(), models.StageFinal, nil, tr, StageOptions{MaxChars: 100}, nil)

	idx := strings.Index(out, transcriptHeading)
	require.GreaterOrEqual(t, idx, 0)
	section := out[idx+len(transcriptHeading):]
	assert.Len(t, section, 100)
}

func TestBuildContext_OptOutOverridesDefault(t *testing.T) {
	b := newTestBuilder(nil)
	no := false

	out, _ := b.BuildContext(context.Background(), models.StageFinal, nil, testTranscript(), StageOptions{IncludeTranscript: &no}, nil)
	assert.NotContains(t, out, transcriptHeading)
}

func TestBuildContext_SummaryMode(t *testing.T) {
	client := &scriptedLLM{responses: []string{"condensed transcript"}}
	b := newTestBuilder(client)

	out, usage := b.BuildContext(context.Background(), models.StageFinal, nil, testTranscript(), StageOptions{Mode: "summary"}, nil)

	assert.Contains(t, out, transcriptHeading+"condensed transcript")
	assert.Equal(t, 10, usage.TotalTokens)
}

func TestBuildContext_StageBBudgetTrims(t *testing.T) {
	b := newTestBuilder(nil)
	huge := strings.Repeat("q", 100000) // 25000 tokens
	results := []*models.AnalysisResult{
		completedResult("a", huge),
		completedResult("b", huge),
	}

	out, _ := b.BuildContext(context.Background(), models.StageB, results, nil, StageOptions{}, nil)
	got := charCounter{}.Count(out)
	assert.Less(t, got, 9000, "stage context should respect the 8000-token budget")
}
