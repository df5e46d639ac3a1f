package config

// LLMProvider identifies which completion backend serves a model.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// IsValid reports whether the provider is supported.
func (p LLMProvider) IsValid() bool {
	switch p {
	case LLMProviderOpenAI, LLMProviderAnthropic:
		return true
	}
	return false
}

// TranscriptMode selects how a transcript is attached to Stage B or Final
// prompts when inclusion is requested.
type TranscriptMode string

const (
	TranscriptModeFull    TranscriptMode = "full"
	TranscriptModeSummary TranscriptMode = "summary"
)

// IsValid reports whether the mode is known.
func (m TranscriptMode) IsValid() bool {
	switch m {
	case TranscriptModeFull, TranscriptModeSummary:
		return true
	}
	return false
}
