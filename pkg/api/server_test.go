package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/jobstore"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

func writePromptFile(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

type testServer struct {
	*Server
	store       *jobstore.MemoryStore
	promptsRoot string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	promptsRoot := t.TempDir()
	writePromptFile(t, promptsRoot, "stage_a/say_means.md", "# Say / Means\n\n{{transcript}}\n")
	writePromptFile(t, promptsRoot, "stage_b/competing_hypotheses.md", "# Hypotheses\n\n{{context}}\n")

	registry, err := config.NewAnalyzerRegistry(promptsRoot)
	require.NoError(t, err)

	store := jobstore.NewMemoryStore()
	cfg := &config.ServerConfig{MaxTranscriptBytes: 10 << 20}
	s := NewServer(cfg, store, config.NewRegistryHolder(registry), nil, nil, nil, slog.Default())
	return &testServer{Server: s, store: store, promptsRoot: promptsRoot}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitHandler_DefaultSelection(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"transcript": "Ben: We need to ship the fix by Friday.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	assert.False(t, resp.QueuedAt.IsZero())

	job, err := ts.store.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	sub, err := ts.store.GetSubmission(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Len(t, sub.StageA, 4, "defaults to all built-ins")
	assert.Len(t, sub.StageB, 4)
	assert.Len(t, sub.Final, 2)
}

func TestSubmitHandler_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   map[string]any
		errMsg string
	}{
		{
			name:   "missing transcript",
			body:   map[string]any{},
			errMsg: "transcript is required",
		},
		{
			name: "unknown analyzer",
			body: map[string]any{
				"transcript": "x",
				"selected":   map[string]any{"stage_a": []string{"nope"}},
			},
			errMsg: `unknown analyzer "nope"`,
		},
		{
			name: "analyzer in wrong stage",
			body: map[string]any{
				"transcript": "x",
				"selected":   map[string]any{"stage_a": []string{"meeting_notes"}},
			},
			errMsg: "belongs to stage final",
		},
		{
			name: "duplicate analyzer",
			body: map[string]any{
				"transcript": "x",
				"selected":   map[string]any{"stage_a": []string{"say_means", "say_means"}},
			},
			errMsg: "duplicate analyzer",
		},
		{
			name: "all stages empty",
			body: map[string]any{
				"transcript": "x",
				"selected": map[string]any{
					"stage_a": []string{}, "stage_b": []string{}, "final": []string{},
				},
			},
			errMsg: "no analyzers selected",
		},
		{
			name: "invalid transcript mode",
			body: map[string]any{
				"transcript": "x",
				"options":    map[string]any{"stage_b": map[string]any{"mode": "verbose"}},
			},
			errMsg: "invalid transcript mode",
		},
		{
			name: "negative max_chars",
			body: map[string]any{
				"transcript": "x",
				"options":    map[string]any{"final": map[string]any{"max_chars": -1}},
			},
			errMsg: "max_chars must not be negative",
		},
		{
			name: "unknown stage in model overrides",
			body: map[string]any{
				"transcript": "x",
				"options":    map[string]any{"models": map[string]string{"stage_z": "gpt-4o"}},
			},
			errMsg: "unknown stage",
		},
		{
			name: "prompt override outside root",
			body: map[string]any{
				"transcript":       "x",
				"prompt_overrides": map[string]any{"stage_a": map[string]string{"say_means": "../secrets.md"}},
			},
			errMsg: "prompt override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.errMsg)
		})
	}
}

func TestSubmitHandler_TranscriptTooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.MaxTranscriptBytes = 64

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"transcript": strings.Repeat("a", 128),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSubmitHandler_PromptOverride(t *testing.T) {
	ts := newTestServer(t)
	writePromptFile(t, ts.promptsRoot, "stage_a/alt.md", "Alternative framing.\n\n{{transcript}}\n")

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"transcript":       "x",
		"selected":         map[string]any{"stage_a": []string{"say_means"}, "stage_b": []string{}, "final": []string{}},
		"prompt_overrides": map[string]any{"stage_a": map[string]string{"say_means": "stage_a/alt.md"}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	sub, err := ts.store.GetSubmission(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "stage_a/alt.md", sub.PromptOverrides[models.StageA]["say_means"])
}

func TestGetJobHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	submit := ts.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{"transcript": "x"})
	require.Equal(t, http.StatusAccepted, submit.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(submit.Body.Bytes(), &resp))

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, resp.JobID, job.JobID)
	assert.Equal(t, models.JobStatusQueued, job.Status)
}

func TestListAnalyzersHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/analyzers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.StageA, 4)
	assert.Len(t, resp.StageB, 4)
	assert.Len(t, resp.Final, 2)
	assert.Equal(t, "say_means", resp.StageA[0].Slug)
	assert.True(t, resp.StageA[0].Builtin)
}

func TestCreateAnalyzerHandler(t *testing.T) {
	ts := newTestServer(t)

	t.Run("creates and registers a custom analyzer", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analyzers", map[string]any{
			"stage":   "stage_a",
			"name":    "Sentiment Scan",
			"content": "Analyze sentiment.\n\n{{transcript}}\n",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var info AnalyzerInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "sentiment_scan", info.Slug)
		assert.False(t, info.Builtin)

		// The new analyzer is immediately selectable.
		submit := ts.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
			"transcript": "x",
			"selected":   map[string]any{"stage_a": []string{"sentiment_scan"}, "stage_b": []string{}, "final": []string{}},
		})
		assert.Equal(t, http.StatusAccepted, submit.Code, submit.Body.String())
	})

	t.Run("rejects content missing the required variable", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analyzers", map[string]any{
			"stage":   "stage_b",
			"name":    "broken",
			"content": "No variables here.\n",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, err := os.Stat(filepath.Join(ts.promptsRoot, "stage_b", "broken.md"))
		assert.True(t, os.IsNotExist(err), "invalid prompt file must be rolled back")
	})

	t.Run("rejects built-in slug collision", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analyzers", map[string]any{
			"stage":   "stage_a",
			"name":    "say_means",
			"content": "{{transcript}}",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects path separators in name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analyzers", map[string]any{
			"stage":   "stage_a",
			"name":    "../escape",
			"content": "{{transcript}}",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthHandler_MinimalDeployment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusHealthy, resp.Status)
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", rec.Header().Get("Permissions-Policy"))
}
