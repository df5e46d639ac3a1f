package config

import "fmt"

// validate performs cross-field validation on loaded configuration.
func validate(cfg *Config) error {
	if err := validateLLM(cfg.LLM); err != nil {
		return err
	}
	if err := validateProcessing(cfg.Processing); err != nil {
		return err
	}
	if err := validateSummary(cfg.Summary); err != nil {
		return err
	}
	if err := validateQueue(cfg.Queue); err != nil {
		return err
	}
	if cfg.Server.ListenAddr == "" {
		return NewValidationError("server", "server", "listen_addr", ErrMissingRequiredField)
	}
	return nil
}

func validateLLM(llm *LLMConfig) error {
	if !llm.Provider.IsValid() {
		return NewValidationError("llm", string(llm.Provider), "provider",
			fmt.Errorf("%w: must be openai or anthropic", ErrInvalidValue))
	}
	if llm.Model == "" {
		return NewValidationError("llm", string(llm.Provider), "model", ErrMissingRequiredField)
	}
	if llm.MaxTokens <= 0 {
		return NewValidationError("llm", string(llm.Provider), "max_tokens",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if llm.Temperature < 0 || llm.Temperature > 2 {
		return NewValidationError("llm", string(llm.Provider), "temperature",
			fmt.Errorf("%w: must be in [0, 2]", ErrInvalidValue))
	}
	return nil
}

func validateProcessing(p *ProcessingConfig) error {
	if p.MaxConcurrent < 1 {
		return NewValidationError("processing", "processing", "max_concurrent",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if p.ChunkSize < 0 || p.StageBContextTokenBudget < 0 || p.FinalContextTokenBudget < 0 {
		return NewValidationError("processing", "processing", "token budgets",
			fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	if p.StageBMinTokensPerAnalyzer < 0 {
		return NewValidationError("processing", "processing", "stage_b_min_tokens_per_analyzer",
			fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	if mode := TranscriptMode(p.FinalTranscriptMode); p.FinalTranscriptMode != "" && !mode.IsValid() {
		return NewValidationError("processing", "processing", "final_transcript_mode",
			fmt.Errorf("%w: must be full or summary", ErrInvalidValue))
	}
	return nil
}

func validateSummary(s *SummaryConfig) error {
	if !s.Enabled {
		return nil
	}
	if s.MapChunkTokens <= 0 {
		return NewValidationError("summary", "summary", "map_chunk_tokens",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.MapOverlapTokens < 0 || s.MapOverlapTokens >= s.MapChunkTokens {
		return NewValidationError("summary", "summary", "map_overlap_tokens",
			fmt.Errorf("%w: must be in [0, map_chunk_tokens)", ErrInvalidValue))
	}
	if s.SinglePassMaxTokens <= 0 {
		return NewValidationError("summary", "summary", "single_pass_max_tokens",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func validateQueue(q *QueueConfig) error {
	if q.WorkerCount < 1 {
		return NewValidationError("queue", "queue", "worker_count",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if q.MaxConcurrentJobs < 1 {
		return NewValidationError("queue", "queue", "max_concurrent_jobs",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if q.PollInterval <= 0 {
		return NewValidationError("queue", "queue", "poll_interval",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
