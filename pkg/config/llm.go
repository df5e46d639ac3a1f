package config

import "time"

// LLMConfig configures the completion capability.
type LLMConfig struct {
	Provider LLMProvider `yaml:"provider"`
	Model    string      `yaml:"model"`

	// APIKey is typically injected via {{.OPENAI_API_KEY}} or
	// {{.ANTHROPIC_API_KEY}} template expansion in the YAML.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// CacheEnabled caches temperature-0 responses in-process so repeat
	// runs and retries are deterministic and cheap.
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`

	// StageModels optionally overrides the model per stage
	// (keys: stage_a, stage_b, final).
	StageModels map[string]string `yaml:"stage_models"`
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:     LLMProviderOpenAI,
		Model:        "gpt-4o-mini",
		MaxTokens:    8000,
		Temperature:  0,
		Timeout:      120 * time.Second,
		MaxRetries:   3,
		RetryDelay:   1 * time.Second,
		CacheEnabled: true,
		CacheTTL:     1 * time.Hour,
	}
}

// ModelForStage returns the model override for a stage, or the default model.
func (c *LLMConfig) ModelForStage(stage string) string {
	if m, ok := c.StageModels[stage]; ok && m != "" {
		return m
	}
	return c.Model
}
