// Package config loads, merges, and validates the application configuration.
package config

import "fmt"

// Config is the fully resolved application configuration.
type Config struct {
	configDir string

	LLM        *LLMConfig
	Processing *ProcessingConfig
	Summary    *SummaryConfig
	Insights   *InsightsConfig
	Output     *OutputConfig
	Queue      *QueueConfig
	Redis      *RedisConfig
	Server     *ServerConfig

	// Analyzers is the resolved analyzer registry: built-ins plus any
	// custom prompts discovered under the prompts root.
	Analyzers *AnalyzerRegistry
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// RedisConfig holds connection settings for the job store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// AllowedWSOrigins lists origin patterns accepted for websocket upgrades.
	// Empty means same-origin only plus localhost.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	// MaxTranscriptBytes bounds the submitted transcript size.
	MaxTranscriptBytes int64 `yaml:"max_transcript_bytes"`
}

// Stats summarizes the resolved configuration for startup logging.
type Stats struct {
	StageAAnalyzers int
	StageBAnalyzers int
	FinalAnalyzers  int
}

// Stats returns counts of registered analyzers per stage.
func (c *Config) Stats() Stats {
	if c.Analyzers == nil {
		return Stats{}
	}
	return Stats{
		StageAAnalyzers: len(c.Analyzers.StageA),
		StageBAnalyzers: len(c.Analyzers.StageB),
		FinalAnalyzers:  len(c.Analyzers.Final),
	}
}

func (c *ServerConfig) String() string {
	return fmt.Sprintf("listen=%s ws_origins=%d", c.ListenAddr, len(c.AllowedWSOrigins))
}
