package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/analyzer"
	"github.com/minuteman-ai/minuteman/pkg/artifacts"
	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/contextbuild"
	"github.com/minuteman-ai/minuteman/pkg/insights"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/llm"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/prompt"
)

const sampleTranscript = `[00:00:05] Ben: We need to ship the fix by Friday.
[00:00:12] Ana: I will prepare the pricing deck before the review.`

// scriptedClient routes completions by marker substrings embedded in
// the prompt templates.
type scriptedClient struct {
	mu        sync.Mutex
	responses map[string]string
	failWith  map[string]error
	hang      map[string]bool
	requests  []llm.Request
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		responses: map[string]string{},
		failWith:  map[string]error{},
		hang:      map[string]bool{},
	}
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	for marker := range c.hang {
		if strings.Contains(req.UserPrompt, marker) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	for marker, err := range c.failWith {
		if strings.Contains(req.UserPrompt, marker) {
			return nil, err
		}
	}
	content := "ok"
	for marker, resp := range c.responses {
		if strings.Contains(req.UserPrompt, marker) {
			content = resp
			break
		}
	}
	return &llm.Response{
		Content: content,
		Model:   "test-model",
		Usage:   models.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func (c *scriptedClient) CountTokens(text string) int { return len(text) / 4 }

func (c *scriptedClient) requestFor(marker string) (llm.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, req := range c.requests {
		if strings.Contains(req.UserPrompt, marker) {
			return req, true
		}
	}
	return llm.Request{}, false
}

// capturingPublisher records event names in publish order.
type capturingPublisher struct {
	mu         sync.Mutex
	names      []string
	totalUsage models.TokenUsage
	totalCost  float64
}

func (p *capturingPublisher) record(name string) {
	p.mu.Lock()
	p.names = append(p.names, name)
	p.mu.Unlock()
}

func (p *capturingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.names...)
}

func (p *capturingPublisher) PublishAnalyzerStarted(_ context.Context, _ string, _ models.StageKey, analyzer string) error {
	p.record("analyzer.started:" + analyzer)
	return nil
}

func (p *capturingPublisher) PublishAnalyzerCompleted(_ context.Context, _ string, _ models.StageKey, analyzer string, _ int64, _ models.TokenUsage, _ float64) error {
	p.record("analyzer.completed:" + analyzer)
	return nil
}

func (p *capturingPublisher) PublishAnalyzerError(_ context.Context, _ string, _ models.StageKey, analyzer, _ string, _ int64) error {
	p.record("analyzer.error:" + analyzer)
	return nil
}

func (p *capturingPublisher) PublishStageCompleted(_ context.Context, _ string, stage models.StageKey) error {
	p.record("stage.completed:" + string(stage))
	return nil
}

func (p *capturingPublisher) PublishInsightsUpdated(_ context.Context, _ string, _ map[string]int, _ int) error {
	p.record("insights.updated")
	return nil
}

func (p *capturingPublisher) PublishJobCompleted(_ context.Context, _ string, _ int64, usage models.TokenUsage, costUSD float64) error {
	p.mu.Lock()
	p.totalUsage = usage
	p.totalCost = costUSD
	p.mu.Unlock()
	p.record("job.completed")
	return nil
}

func (p *capturingPublisher) PublishJobError(_ context.Context, _, errorCode, _ string) error {
	p.record("job.error:" + errorCode)
	return nil
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

type testEnv struct {
	store  *jobstore.MemoryStore
	exec   *Executor
	pub    *capturingPublisher
	client *scriptedClient
	outDir string
	queue  *config.QueueConfig
}

func writePromptFile(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestEnv(t *testing.T, client *scriptedClient) *testEnv {
	t.Helper()

	promptsRoot := t.TempDir()
	writePromptFile(t, promptsRoot, "stage_a/say_means.md", "PROMPT say_means\n\n{{transcript}}\n")
	writePromptFile(t, promptsRoot, "stage_a/perspective_perception.md", "PROMPT perspective_perception\n\n{{transcript}}\n")
	writePromptFile(t, promptsRoot, "stage_b/competing_hypotheses.md", "PROMPT competing_hypotheses\n\n{{context}}\n")
	writePromptFile(t, promptsRoot, "final/meeting_notes.md", "PROMPT meeting_notes\n\n{{context}}\n")

	registry, err := config.NewAnalyzerRegistry(promptsRoot)
	require.NoError(t, err)

	logger := slog.Default()
	output := config.DefaultOutputConfig()
	output.Directory = t.TempDir()

	insightsCfg := config.DefaultInsightsConfig()
	insightsCfg.LLMEnabled = false

	queueCfg := config.DefaultQueueConfig()
	store := jobstore.NewMemoryStore()
	pub := &capturingPublisher{}

	exec := NewExecutor(Deps{
		Store:      store,
		Registry:   registry,
		Runner:     analyzer.NewRunner(client, prompt.NewBuilder(registry), config.DefaultLLMConfig(), output, logger),
		Contexts:   contextbuild.NewBuilder(charCounter{}, config.DefaultProcessingConfig(), config.DefaultSummaryConfig(), nil, logger),
		Aggregator: insights.NewAggregator(nil, insightsCfg, logger),
		Publisher:  pub,
		Counter:    charCounter{},
		Processing: config.DefaultProcessingConfig(),
		Queue:      queueCfg,
		Output:     output,
		Logger:     logger,
	})

	return &testEnv{store: store, exec: exec, pub: pub, client: client, outDir: output.Directory, queue: queueCfg}
}

// createJob persists and claims a job so it enters Execute the same way
// it would from a worker.
func (env *testEnv) createJob(t *testing.T, id string, stageA, stageB, final []string) {
	t.Helper()
	job := models.NewJob(id, stageA, stageB, final)
	sub := &jobstore.Submission{
		JobID:       id,
		Filename:    "meeting.txt",
		Transcript:  sampleTranscript,
		StageA:      stageA,
		StageB:      stageB,
		Final:       final,
		SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, env.store.CreateJob(context.Background(), job, sub))

	claimed, err := env.store.ClaimNext(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, id, claimed)
}

func (env *testEnv) jobDir(id string) string { return filepath.Join(env.outDir, id) }

func requireFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err, path)
}

func TestExecute_HappyPath(t *testing.T) {
	client := newScriptedClient()
	client.responses["PROMPT say_means"] = "## Analysis\n\nAction: Prepare pricing deck — Owner: Ana\n"
	client.responses["PROMPT competing_hypotheses"] = "## Hypotheses\n\nDecision: Go with option B\n"
	client.responses["PROMPT meeting_notes"] = "## Notes\n\nRisk: Vendor delay possible\n"
	env := newTestEnv(t, client)

	env.createJob(t, "job-1", []string{"say_means"}, []string{"competing_hypotheses"}, []string{"meeting_notes"})
	require.NoError(t, env.exec.Execute(context.Background(), "job-1"))

	job, err := env.store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, models.AnalyzerStatusCompleted, job.StageA["say_means"].Status)
	assert.Equal(t, models.AnalyzerStatusCompleted, job.StageB["competing_hypotheses"].Status)
	assert.Equal(t, models.AnalyzerStatusCompleted, job.Final["meeting_notes"].Status)
	assert.Equal(t, 360, job.TokenUsageTotal.TotalTokens, "total must equal the sum of per-analyzer usage")
	assert.Equal(t, "stage_a/say_means.md", job.StageA["say_means"].PromptPath)

	dir := env.jobDir("job-1")
	requireFile(t, filepath.Join(dir, "intermediate", "stage_a", "say_means.json"))
	requireFile(t, filepath.Join(dir, "intermediate", "stage_a", "say_means.md"))
	requireFile(t, filepath.Join(dir, "intermediate", "stage_b_context.txt"))
	requireFile(t, filepath.Join(dir, "final", "context_combined.txt"))
	requireFile(t, filepath.Join(dir, "final", "meeting_notes.md"))
	requireFile(t, filepath.Join(dir, "final", "insight_dashboard.json"))
	requireFile(t, filepath.Join(dir, "final", "insight_dashboard.md"))
	requireFile(t, filepath.Join(dir, "final", "insight_dashboard.csv"))
	requireFile(t, filepath.Join(dir, "COMPLETED"))

	statusData, err := os.ReadFile(filepath.Join(dir, "final_status.json"))
	require.NoError(t, err)
	var status artifacts.FinalStatus
	require.NoError(t, json.Unmarshal(statusData, &status))
	assert.Equal(t, "job-1", status.RunID)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, []string{"say_means"}, status.StageA.Analyzers)
	assert.Equal(t, 120, status.StageA.Tokens)
	assert.Equal(t, 360, status.TotalTokens)
	assert.NotEmpty(t, status.Timestamps.StartTime)
	assert.NotEmpty(t, status.Timestamps.EndTime)

	var dashboard insights.Dashboard
	dashData, err := os.ReadFile(filepath.Join(dir, "final", "insight_dashboard.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(dashData, &dashboard))
	assert.Len(t, dashboard.Items, 3)

	assert.Equal(t, []string{
		"analyzer.started:say_means",
		"analyzer.completed:say_means",
		"stage.completed:stage_a",
		"analyzer.started:competing_hypotheses",
		"analyzer.completed:competing_hypotheses",
		"stage.completed:stage_b",
		"analyzer.started:meeting_notes",
		"analyzer.completed:meeting_notes",
		"stage.completed:final",
		"insights.updated",
		"job.completed",
	}, env.pub.events())
	assert.Equal(t, 360, env.pub.totalUsage.TotalTokens)
}

func TestExecute_ContextFlowBetweenStages(t *testing.T) {
	client := newScriptedClient()
	client.responses["PROMPT say_means"] = "Stage A interpretation of the discussion."
	env := newTestEnv(t, client)

	env.createJob(t, "job-ctx", []string{"say_means"}, []string{"competing_hypotheses"}, []string{"meeting_notes"})
	require.NoError(t, env.exec.Execute(context.Background(), "job-ctx"))

	stageB, ok := client.requestFor("PROMPT competing_hypotheses")
	require.True(t, ok)
	assert.Contains(t, stageB.UserPrompt, "say_means Analysis")
	assert.Contains(t, stageB.UserPrompt, "Stage A interpretation")
	assert.NotContains(t, stageB.UserPrompt, "Original Transcript",
		"stage B excludes the transcript by default")

	final, ok := client.requestFor("PROMPT meeting_notes")
	require.True(t, ok)
	assert.Contains(t, final.UserPrompt, "say_means Analysis")
	assert.Contains(t, final.UserPrompt, "competing_hypotheses Analysis")
	assert.Contains(t, final.UserPrompt, "Original Transcript",
		"final includes the full transcript by default")
	assert.Contains(t, final.UserPrompt, "ship the fix by Friday")
}

func TestExecute_AnalyzerFailureDoesNotFailJob(t *testing.T) {
	client := newScriptedClient()
	client.responses["PROMPT say_means"] = "Action: Ship the fix"
	client.failWith["PROMPT perspective_perception"] = errors.New("model exploded")
	env := newTestEnv(t, client)

	env.createJob(t, "job-2", []string{"say_means", "perspective_perception"}, nil, nil)
	require.NoError(t, env.exec.Execute(context.Background(), "job-2"))

	job, err := env.store.GetJob(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status, "analyzer failures are non-fatal")
	assert.Equal(t, models.AnalyzerStatusCompleted, job.StageA["say_means"].Status)

	failed := job.StageA["perspective_perception"]
	assert.Equal(t, models.AnalyzerStatusError, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "model exploded")
	assert.Equal(t, 120, job.TokenUsageTotal.TotalTokens)

	events := env.pub.events()
	assert.Contains(t, events, "analyzer.error:perspective_perception")
	assert.Contains(t, events, "job.completed")
	assert.NotContains(t, events, "job.error:"+ErrorCodePipeline)
	requireFile(t, filepath.Join(env.jobDir("job-2"), "COMPLETED"))
}

func TestExecute_AllAnalyzersFailedStillCompletes(t *testing.T) {
	client := newScriptedClient()
	client.failWith["PROMPT say_means"] = errors.New("provider down")
	client.failWith["PROMPT perspective_perception"] = errors.New("provider down")
	env := newTestEnv(t, client)

	env.createJob(t, "job-3", []string{"say_means", "perspective_perception"}, nil, nil)
	require.NoError(t, env.exec.Execute(context.Background(), "job-3"))

	job, err := env.store.GetJob(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	var dashboard insights.Dashboard
	data, err := os.ReadFile(filepath.Join(env.jobDir("job-3"), "final", "insight_dashboard.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &dashboard))
	assert.Empty(t, dashboard.Items, "empty dashboard is still written")
	requireFile(t, filepath.Join(env.jobDir("job-3"), "COMPLETED"))
}

func TestExecute_AnalyzerTimeout(t *testing.T) {
	client := newScriptedClient()
	client.hang["PROMPT say_means"] = true
	env := newTestEnv(t, client)
	env.queue.AnalyzerTimeout = 100 * time.Millisecond

	env.createJob(t, "job-4", []string{"say_means"}, nil, nil)
	require.NoError(t, env.exec.Execute(context.Background(), "job-4"))

	job, err := env.store.GetJob(context.Background(), "job-4")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	rec := job.StageA["say_means"]
	assert.Equal(t, models.AnalyzerStatusError, rec.Status)
	assert.Equal(t, fmt.Sprintf("timeout after %s", env.queue.AnalyzerTimeout), rec.ErrorMessage)
}

func TestExecute_UnknownAnalyzerRecordsError(t *testing.T) {
	client := newScriptedClient()
	env := newTestEnv(t, client)

	env.createJob(t, "job-5", []string{"say_means", "nonexistent_analyzer"}, nil, nil)
	require.NoError(t, env.exec.Execute(context.Background(), "job-5"))

	job, err := env.store.GetJob(context.Background(), "job-5")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.AnalyzerStatusError, job.StageA["nonexistent_analyzer"].Status)
	assert.Contains(t, job.StageA["nonexistent_analyzer"].ErrorMessage, "unknown analyzer")
}

func TestExecute_MissingSubmissionIsPipelineError(t *testing.T) {
	client := newScriptedClient()
	env := newTestEnv(t, client)

	err := env.exec.Execute(context.Background(), "job-missing")
	require.Error(t, err)
	assert.Contains(t, env.pub.events(), "job.error:"+ErrorCodePipeline)
}

func TestExecute_EmptyStagesStillPublishBarriers(t *testing.T) {
	client := newScriptedClient()
	client.responses["PROMPT say_means"] = "Decision: Adopt weekly syncs"
	env := newTestEnv(t, client)

	env.createJob(t, "job-6", []string{"say_means"}, nil, nil)
	require.NoError(t, env.exec.Execute(context.Background(), "job-6"))

	events := env.pub.events()
	assert.Contains(t, events, "stage.completed:stage_a")
	assert.Contains(t, events, "stage.completed:stage_b")
	assert.Contains(t, events, "stage.completed:final")
	assert.Contains(t, events, "insights.updated")
	assert.Contains(t, events, "job.completed")

	var dashboard insights.Dashboard
	data, err := os.ReadFile(filepath.Join(env.jobDir("job-6"), "final", "insight_dashboard.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &dashboard))
	require.Len(t, dashboard.Items, 1)
	assert.Equal(t, models.InsightDecision, dashboard.Items[0].Type)
}
