// Package e2e runs the full service against a real HTTP listener: the
// API server, worker pool, and pipeline executor wired over the
// in-memory job store and a scripted LLM client.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/analyzer"
	"github.com/minuteman-ai/minuteman/pkg/api"
	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/contextbuild"
	"github.com/minuteman-ai/minuteman/pkg/insights"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/pipeline"
	"github.com/minuteman-ai/minuteman/pkg/prompt"
	"github.com/minuteman-ai/minuteman/pkg/queue"
)

// builtinSlugs lists every built-in analyzer by stage, used to generate
// the prompt tree for the test app.
var builtinSlugs = map[models.StageKey][]string{
	models.StageA:     {"say_means", "perspective_perception", "premises_assertions", "postulate_theorem"},
	models.StageB:     {"competing_hypotheses", "first_principles", "determining_factors", "patentability"},
	models.StageFinal: {"meeting_notes", "composite_note"},
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

// TestApp is one fully wired service instance listening on a random
// port, backed by the in-memory store and a scripted LLM.
type TestApp struct {
	Server      *httptest.Server
	Store       *jobstore.MemoryStore
	LLM         *mockLLM
	PromptsRoot string
	OutputDir   string

	pool *queue.WorkerPool
}

func newTestApp(t *testing.T) *TestApp {
	t.Helper()

	promptsRoot := t.TempDir()
	for stage, slugs := range builtinSlugs {
		variable := "{{context}}"
		if stage == models.StageA {
			variable = "{{transcript}}"
		}
		for _, slug := range slugs {
			rel := filepath.Join(config.StageDir(stage), slug+".md")
			require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(promptsRoot, rel)), 0o755))
			content := fmt.Sprintf("PROMPT %s\n\n%s\n", slug, variable)
			require.NoError(t, os.WriteFile(filepath.Join(promptsRoot, rel), []byte(content), 0o644))
		}
	}

	registry, err := config.NewAnalyzerRegistry(promptsRoot)
	require.NoError(t, err)
	holder := config.NewRegistryHolder(registry)

	logger := slog.Default()
	store := jobstore.NewMemoryStore()
	client := newMockLLM()
	counter := charCounter{}

	llmCfg := config.DefaultLLMConfig()
	outputCfg := config.DefaultOutputConfig()
	outputCfg.Directory = t.TempDir()
	queueCfg := &config.QueueConfig{
		WorkerCount:             2,
		MaxConcurrentJobs:       2,
		PollInterval:            20 * time.Millisecond,
		PollIntervalJitter:      10 * time.Millisecond,
		JobTimeout:              30 * time.Second,
		AnalyzerTimeout:         10 * time.Second,
		GracefulShutdownTimeout: 5 * time.Second,
	}
	insightsCfg := config.DefaultInsightsConfig()
	insightsCfg.LLMEnabled = false

	prompts := prompt.NewBuilder(registry)
	runner := analyzer.NewRunner(client, prompts, llmCfg, outputCfg, logger)
	contexts := contextbuild.NewBuilder(counter, config.DefaultProcessingConfig(), config.DefaultSummaryConfig(), nil, logger)
	aggregator := insights.NewAggregator(client, insightsCfg, logger)

	executor := pipeline.NewExecutor(pipeline.Deps{
		Store:      store,
		Registry:   holder,
		Runner:     runner,
		Contexts:   contexts,
		Aggregator: aggregator,
		Counter:    counter,
		Processing: config.DefaultProcessingConfig(),
		Queue:      queueCfg,
		Output:     outputCfg,
		Logger:     logger,
	})

	pool := queue.NewWorkerPool(store, queueCfg, executor, logger)
	require.NoError(t, pool.Start(t.Context()))

	serverCfg := &config.ServerConfig{MaxTranscriptBytes: 10 << 20}
	apiServer := api.NewServer(serverCfg, store, holder, pool, nil, nil, logger)
	httpServer := httptest.NewServer(apiServer.Handler())

	t.Cleanup(func() {
		pool.Stop()
		httpServer.Close()
	})

	return &TestApp{
		Server:      httpServer,
		Store:       store,
		LLM:         client,
		PromptsRoot: promptsRoot,
		OutputDir:   outputCfg.Directory,
		pool:        pool,
	}
}

// postJSON issues a POST and decodes the response body into out when
// out is non-nil. Returns the status code and raw body.
func (a *TestApp) postJSON(t *testing.T, path string, body, out any) (int, string) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(a.Server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp.StatusCode, string(raw)
}

func (a *TestApp) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(a.Server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// submit posts a job and requires acceptance.
func (a *TestApp) submit(t *testing.T, body map[string]any) string {
	t.Helper()
	var resp api.SubmitResponse
	code, raw := a.postJSON(t, "/api/v1/jobs", body, &resp)
	require.Equal(t, http.StatusAccepted, code, raw)
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

// waitForJob polls the status endpoint until the job reaches a terminal
// state.
func (a *TestApp) waitForJob(t *testing.T, jobID string) *models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		code := a.getJSON(t, "/api/v1/jobs/"+jobID, &job)
		return code == http.StatusOK && job.Status.IsTerminal()
	}, 15*time.Second, 25*time.Millisecond, "job %s did not reach a terminal state", jobID)
	return &job
}

// jobFile returns the path of an artifact inside the job's workspace.
func (a *TestApp) jobFile(jobID string, parts ...string) string {
	return filepath.Join(append([]string{a.OutputDir, jobID}, parts...)...)
}
