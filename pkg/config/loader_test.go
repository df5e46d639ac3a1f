package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	writeBuiltinPrompts(t, filepath.Join(dir, "prompts"))
	if yamlBody != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(yamlBody), 0o644))
	}
	return dir
}

func TestInitializeDefaults(t *testing.T) {
	dir := writeConfigDir(t, "")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, LLMProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Processing.MaxConcurrent)
	assert.Equal(t, 8000, cfg.Processing.StageBContextTokenBudget)
	assert.Equal(t, 500, cfg.Processing.StageBMinTokensPerAnalyzer)
	assert.Equal(t, 2000, cfg.Summary.MapChunkTokens)
	assert.Equal(t, 5, cfg.Queue.WorkerCount)
	assert.Equal(t, 1*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Stats().StageAAnalyzers+cfg.Stats().StageBAnalyzers+cfg.Stats().FinalAnalyzers)
}

func TestInitializeUserOverrides(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  provider: anthropic
  model: claude-sonnet-4-5
processing:
  max_concurrent: 8
  stage_b_context_token_budget: 4000
queue:
  worker_count: 2
redis:
  addr: redis.internal:6380
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, LLMProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Processing.MaxConcurrent)
	assert.Equal(t, 4000, cfg.Processing.StageBContextTokenBudget)
	// Unset fields keep their defaults.
	assert.Equal(t, 500, cfg.Processing.StageBMinTokensPerAnalyzer)
	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestInitializeEnvExpansion(t *testing.T) {
	t.Setenv("MINUTEMAN_TEST_MODEL", "gpt-4o")
	dir := writeConfigDir(t, "llm:\n  model: \"{{.MINUTEMAN_TEST_MODEL}}\"\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestInitializeValidationFailure(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  provider: cohere\n")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfigDir(t, "llm: [unclosed")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)

	var lErr *LoadError
	assert.ErrorAs(t, err, &lErr)
}
