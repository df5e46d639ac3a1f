package config

// ProcessingConfig controls stage execution and context budgeting.
type ProcessingConfig struct {
	// MaxConcurrent bounds analyzer fan-out within a single stage.
	MaxConcurrent int `yaml:"max_concurrent"`

	// ChunkSize is the Stage A transcript token budget.
	ChunkSize int `yaml:"chunk_size"`

	// StageBContextTokenBudget is the total token budget for the combined
	// Stage A context fed to Stage B analyzers.
	StageBContextTokenBudget int `yaml:"stage_b_context_token_budget"`

	// StageBMinTokensPerAnalyzer guarantees each Stage A section a minimum
	// allocation in the fair-share split.
	StageBMinTokensPerAnalyzer int `yaml:"stage_b_min_tokens_per_analyzer"`

	// FinalContextTokenBudget trims the combined A+B context for Final
	// analyzers. 0 disables trimming.
	FinalContextTokenBudget int `yaml:"final_context_token_budget"`

	// FinalIncludeTranscript and FinalTranscriptMode control default
	// transcript inclusion for Final analyzers.
	FinalIncludeTranscript   bool   `yaml:"final_include_transcript"`
	FinalTranscriptMode      string `yaml:"final_transcript_mode"` // "full" or "summary"
	FinalTranscriptCharLimit int    `yaml:"final_transcript_char_limit"`
}

// DefaultProcessingConfig returns the built-in processing defaults.
func DefaultProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{
		MaxConcurrent:              3,
		ChunkSize:                  4000,
		StageBContextTokenBudget:   8000,
		StageBMinTokensPerAnalyzer: 500,
		FinalContextTokenBudget:    0,
		FinalIncludeTranscript:     true,
		FinalTranscriptMode:        string(TranscriptModeFull),
		FinalTranscriptCharLimit:   20000,
	}
}

// SummaryConfig controls the map-reduce transcript summarizer.
type SummaryConfig struct {
	Enabled             bool   `yaml:"enabled"`
	MapChunkTokens      int    `yaml:"map_chunk_tokens"`
	MapOverlapTokens    int    `yaml:"map_overlap_tokens"`
	SinglePassMaxTokens int    `yaml:"single_pass_max_tokens"`
	StageBTargetTokens  int    `yaml:"stage_b_target_tokens"`
	FinalTargetTokens   int    `yaml:"final_target_tokens"`
	MapModel            string `yaml:"map_model"`
	ReduceModel         string `yaml:"reduce_model"`
}

// DefaultSummaryConfig returns the built-in summarizer defaults.
func DefaultSummaryConfig() *SummaryConfig {
	return &SummaryConfig{
		Enabled:             true,
		MapChunkTokens:      2000,
		MapOverlapTokens:    200,
		SinglePassMaxTokens: 6000,
		StageBTargetTokens:  1000,
		FinalTargetTokens:   2000,
	}
}

// InsightsConfig controls the LLM extraction pass of the insight aggregator.
type InsightsConfig struct {
	LLMEnabled   bool   `yaml:"llm_enabled"`
	LLMModel     string `yaml:"llm_model"`
	LLMMaxItems  int    `yaml:"llm_max_items"`
	LLMMaxTokens int    `yaml:"llm_max_tokens"`
}

// DefaultInsightsConfig returns the built-in insight aggregation defaults.
func DefaultInsightsConfig() *InsightsConfig {
	return &InsightsConfig{
		LLMEnabled:   true,
		LLMMaxItems:  50,
		LLMMaxTokens: 2000,
	}
}

// OutputConfig controls artifact generation.
type OutputConfig struct {
	// Directory is the root under which per-job artifact directories live.
	Directory string `yaml:"directory"`

	MaxInsightsPerAnalyzer int `yaml:"max_insights_per_analyzer"`
	MaxConceptsPerAnalyzer int `yaml:"max_concepts_per_analyzer"`

	// TruncateRawOutput caps the raw-output section of intermediate
	// markdown files. Display-only; JSON artifacts are never truncated.
	TruncateRawOutput bool `yaml:"truncate_raw_output"`
	RawOutputMaxChars int  `yaml:"raw_output_max_chars"`
}

// DefaultOutputConfig returns the built-in output defaults.
func DefaultOutputConfig() *OutputConfig {
	return &OutputConfig{
		Directory:              "output",
		MaxInsightsPerAnalyzer: 10,
		MaxConceptsPerAnalyzer: 20,
		TruncateRawOutput:      true,
		RawOutputMaxChars:      5000,
	}
}
