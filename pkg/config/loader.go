package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFileName is the single YAML file read from the config directory.
const configFileName = "minuteman.yaml"

// yamlConfig represents the complete minuteman.yaml file structure.
type yamlConfig struct {
	LLM        *LLMConfig        `yaml:"llm"`
	Processing *ProcessingConfig `yaml:"processing"`
	Summary    *SummaryConfig    `yaml:"summary"`
	Insights   *InsightsConfig   `yaml:"insights"`
	Output     *OutputConfig     `yaml:"output"`
	Queue      *QueueConfig      `yaml:"queue"`
	Redis      *RedisConfig      `yaml:"redis"`
	Server     *ServerConfig     `yaml:"server"`
	PromptsDir string            `yaml:"prompts_dir"`
}

// Initialize loads, merges, and validates ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load minuteman.yaml from configDir (optional; defaults apply)
//  2. Expand environment variables
//  3. Merge user values over built-in defaults
//  4. Discover analyzers (built-ins + custom prompts)
//  5. Validate everything
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"stage_a_analyzers", stats.StageAAnalyzers,
		"stage_b_analyzers", stats.StageBAnalyzers,
		"final_analyzers", stats.FinalAnalyzers)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var userCfg yamlConfig

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Missing config file is fine: built-in defaults cover everything
		// except API keys, which validation reports.
		slog.Info("No configuration file found, using defaults", "path", path)
	case err != nil:
		return nil, NewLoadError(configFileName, err)
	default:
		data = ExpandEnv(data)
		if err := yaml.Unmarshal(data, &userCfg); err != nil {
			return nil, NewLoadError(configFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	}

	llm := DefaultLLMConfig()
	processing := DefaultProcessingConfig()
	summary := DefaultSummaryConfig()
	insights := DefaultInsightsConfig()
	output := DefaultOutputConfig()
	queue := DefaultQueueConfig()
	redis := &RedisConfig{Addr: "localhost:6379"}
	server := &ServerConfig{
		ListenAddr:         ":8080",
		MaxTranscriptBytes: 10 << 20,
	}

	// Merge user-provided sections over defaults (non-zero values override).
	for _, m := range []struct {
		dst, src any
	}{
		{llm, userCfg.LLM},
		{processing, userCfg.Processing},
		{summary, userCfg.Summary},
		{insights, userCfg.Insights},
		{output, userCfg.Output},
		{queue, userCfg.Queue},
		{redis, userCfg.Redis},
		{server, userCfg.Server},
	} {
		if m.src == nil || isNilPtr(m.src) {
			continue
		}
		if err := mergo.Merge(m.dst, m.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	promptsDir := userCfg.PromptsDir
	if promptsDir == "" {
		promptsDir = "prompts"
	}
	if !filepath.IsAbs(promptsDir) {
		promptsDir = filepath.Join(configDir, promptsDir)
	}

	analyzers, err := NewAnalyzerRegistry(promptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer registry: %w", err)
	}

	return &Config{
		configDir:  configDir,
		LLM:        llm,
		Processing: processing,
		Summary:    summary,
		Insights:   insights,
		Output:     output,
		Queue:      queue,
		Redis:      redis,
		Server:     server,
		Analyzers:  analyzers,
	}, nil
}

func isNilPtr(v any) bool {
	switch t := v.(type) {
	case *LLMConfig:
		return t == nil
	case *ProcessingConfig:
		return t == nil
	case *SummaryConfig:
		return t == nil
	case *InsightsConfig:
		return t == nil
	case *OutputConfig:
		return t == nil
	case *QueueConfig:
		return t == nil
	case *RedisConfig:
		return t == nil
	case *ServerConfig:
		return t == nil
	}
	return v == nil
}
