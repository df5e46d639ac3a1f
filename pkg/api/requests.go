package api

// SubmitRequest is the body of POST /api/v1/jobs. Absent stage lists
// default to all built-ins for that stage; an explicit empty list skips
// the stage.
type SubmitRequest struct {
	Transcript string `json:"transcript"`
	Filename   string `json:"filename,omitempty"`

	Selected struct {
		StageA []string `json:"stage_a"`
		StageB []string `json:"stage_b"`
		Final  []string `json:"final"`
	} `json:"selected"`

	// PromptOverrides maps stage → slug → prompt path under the
	// prompts root.
	PromptOverrides map[string]map[string]string `json:"prompt_overrides,omitempty"`

	Options SubmitOptions `json:"options"`
}

// SubmitOptions carries per-stage run overrides.
type SubmitOptions struct {
	// Models maps stage → model override.
	Models map[string]string `json:"models,omitempty"`

	StageB *StageOptionsRequest `json:"stage_b,omitempty"`
	Final  *StageOptionsRequest `json:"final,omitempty"`
}

// StageOptionsRequest controls transcript inclusion for a synthesis stage.
type StageOptionsRequest struct {
	IncludeTranscript *bool  `json:"include_transcript,omitempty"`
	Mode              string `json:"mode,omitempty"` // "full" or "summary"
	MaxChars          int    `json:"max_chars,omitempty"`
}

// CreateAnalyzerRequest is the body of POST /api/v1/analyzers. The
// prompt content is written under the stage's prompt directory and the
// registry is rescanned.
type CreateAnalyzerRequest struct {
	Stage   string `json:"stage"`
	Name    string `json:"name"`
	Content string `json:"content"`
}
