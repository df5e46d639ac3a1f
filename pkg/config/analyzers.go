package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// AnalyzerSpec describes one analyzer: a stable slug, its stage, and the
// prompt template it renders. Model and temperature overrides are optional.
type AnalyzerSpec struct {
	Slug        string          `json:"slug"`
	DisplayName string          `json:"display_name"`
	Stage       models.StageKey `json:"stage"`
	// PromptPath is relative to the prompts root.
	PromptPath  string   `json:"prompt_path"`
	Builtin     bool     `json:"builtin"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// AnalyzerRegistry holds the resolved analyzer set, ordered per stage.
// Built-ins come first in registration order; discovered customs follow.
type AnalyzerRegistry struct {
	PromptsRoot string
	StageA      []AnalyzerSpec
	StageB      []AnalyzerSpec
	Final       []AnalyzerSpec
}

// stageDirs maps each stage to its prompt subdirectory.
var stageDirs = map[models.StageKey]string{
	models.StageA:     "stage_a",
	models.StageB:     "stage_b",
	models.StageFinal: "final",
}

// StageDir returns the prompts subdirectory for a stage.
func StageDir(stage models.StageKey) string {
	return stageDirs[stage]
}

// requiredVars maps each stage to the template variable its prompts must
// reference: Stage A consumes the transcript, B and Final consume context.
var requiredVars = map[models.StageKey]*regexp.Regexp{
	models.StageA:     regexp.MustCompile(`(?i){{\s*transcript\b`),
	models.StageB:     regexp.MustCompile(`(?i){{\s*context\b`),
	models.StageFinal: regexp.MustCompile(`(?i){{\s*context\b`),
}

// builtinAnalyzers is the default analyzer set, in pipeline order.
var builtinAnalyzers = []AnalyzerSpec{
	{Slug: "say_means", DisplayName: "Say / Means", Stage: models.StageA, PromptPath: "stage_a/say_means.md", Builtin: true},
	{Slug: "perspective_perception", DisplayName: "Perspective / Perception", Stage: models.StageA, PromptPath: "stage_a/perspective_perception.md", Builtin: true},
	{Slug: "premises_assertions", DisplayName: "Premises / Assertions", Stage: models.StageA, PromptPath: "stage_a/premises_assertions.md", Builtin: true},
	{Slug: "postulate_theorem", DisplayName: "Postulate / Theorem", Stage: models.StageA, PromptPath: "stage_a/postulate_theorem.md", Builtin: true},
	{Slug: "competing_hypotheses", DisplayName: "Competing Hypotheses", Stage: models.StageB, PromptPath: "stage_b/competing_hypotheses.md", Builtin: true},
	{Slug: "first_principles", DisplayName: "First Principles", Stage: models.StageB, PromptPath: "stage_b/first_principles.md", Builtin: true},
	{Slug: "determining_factors", DisplayName: "Determining Factors", Stage: models.StageB, PromptPath: "stage_b/determining_factors.md", Builtin: true},
	{Slug: "patentability", DisplayName: "Patentability", Stage: models.StageB, PromptPath: "stage_b/patentability.md", Builtin: true},
	{Slug: "meeting_notes", DisplayName: "Meeting Notes", Stage: models.StageFinal, PromptPath: "final/meeting_notes.md", Builtin: true},
	{Slug: "composite_note", DisplayName: "Composite Note", Stage: models.StageFinal, PromptPath: "final/composite_note.md", Builtin: true},
}

// IsBuiltinSlug reports whether slug names a built-in analyzer.
func IsBuiltinSlug(slug string) bool {
	for _, spec := range builtinAnalyzers {
		if spec.Slug == slug {
			return true
		}
	}
	return false
}

var slugRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// IsValidSlug reports whether slug is snake_case alphanumeric.
func IsValidSlug(slug string) bool {
	return slugRe.MatchString(slug)
}

// SlugFromFilename derives a canonical slug from a prompt filename,
// dropping the extension and any leading numeric ordering prefix.
func SlugFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = regexp.MustCompile(`^\s*\d+\s+`).ReplaceAllString(base, "")
	base = strings.ToLower(base)
	base = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		return "analyzer"
	}
	return base
}

// NewAnalyzerRegistry builds the registry from built-ins plus custom prompt
// files discovered under promptsRoot. Customs with invalid templates are
// skipped with a warning by the caller (discovery returns them separately).
func NewAnalyzerRegistry(promptsRoot string) (*AnalyzerRegistry, error) {
	reg := &AnalyzerRegistry{PromptsRoot: promptsRoot}
	for _, spec := range builtinAnalyzers {
		reg.append(spec)
	}
	if err := reg.discoverCustom(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *AnalyzerRegistry) append(spec AnalyzerSpec) {
	switch spec.Stage {
	case models.StageA:
		r.StageA = append(r.StageA, spec)
	case models.StageB:
		r.StageB = append(r.StageB, spec)
	case models.StageFinal:
		r.Final = append(r.Final, spec)
	}
}

// discoverCustom scans the per-stage prompt directories for .md files that
// are not built-ins, validates their required variables, and registers them.
func (r *AnalyzerRegistry) discoverCustom() error {
	builtinPaths := make(map[string]bool, len(builtinAnalyzers))
	for _, spec := range builtinAnalyzers {
		builtinPaths[spec.PromptPath] = true
	}

	for _, stage := range []models.StageKey{models.StageA, models.StageB, models.StageFinal} {
		dir := filepath.Join(r.PromptsRoot, stageDirs[stage])
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to scan prompts dir %s: %w", dir, err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			rel := filepath.ToSlash(filepath.Join(stageDirs[stage], name))
			if builtinPaths[rel] {
				continue
			}
			slug := SlugFromFilename(name)
			if IsBuiltinSlug(slug) || r.has(slug) {
				continue
			}
			if _, err := r.ValidatePromptFile(rel, stage); err != nil {
				// Invalid customs are skipped, not fatal.
				continue
			}
			r.append(AnalyzerSpec{
				Slug:        slug,
				DisplayName: titleFromSlug(slug),
				Stage:       stage,
				PromptPath:  rel,
			})
		}
	}
	return nil
}

func titleFromSlug(slug string) string {
	parts := strings.Split(slug, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func (r *AnalyzerRegistry) has(slug string) bool {
	_, ok := r.Get(slug)
	return ok
}

// Get looks up a spec by slug across all stages.
func (r *AnalyzerRegistry) Get(slug string) (AnalyzerSpec, bool) {
	for _, list := range [][]AnalyzerSpec{r.StageA, r.StageB, r.Final} {
		for _, spec := range list {
			if spec.Slug == slug {
				return spec, true
			}
		}
	}
	return AnalyzerSpec{}, false
}

// StageSpecs returns the ordered specs for a stage.
func (r *AnalyzerRegistry) StageSpecs(stage models.StageKey) []AnalyzerSpec {
	switch stage {
	case models.StageA:
		return r.StageA
	case models.StageB:
		return r.StageB
	case models.StageFinal:
		return r.Final
	}
	return nil
}

// DefaultSlugs returns the built-in slugs for a stage, in order.
func (r *AnalyzerRegistry) DefaultSlugs(stage models.StageKey) []string {
	var out []string
	for _, spec := range r.StageSpecs(stage) {
		if spec.Builtin {
			out = append(out, spec.Slug)
		}
	}
	return out
}

// ResolvePromptPath joins rel with the prompts root and rejects traversal
// outside it or non-markdown files.
func (r *AnalyzerRegistry) ResolvePromptPath(rel string) (string, error) {
	if !strings.EqualFold(filepath.Ext(rel), ".md") {
		return "", fmt.Errorf("%w: %s: must be a .md file", ErrPromptOutsideRoot, rel)
	}
	root, err := filepath.Abs(r.PromptsRoot)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(root, rel))
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPromptOutsideRoot, rel)
	}
	return abs, nil
}

// ValidatePromptFile checks that a prompt file exists under the root and
// references the required variable for its stage, returning its contents.
func (r *AnalyzerRegistry) ValidatePromptFile(rel string, stage models.StageKey) (string, error) {
	abs, err := r.ResolvePromptPath(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", rel, err)
	}
	if pat := requiredVars[stage]; pat != nil && !pat.Match(data) {
		return "", fmt.Errorf("%w: stage %s prompt %s", ErrPromptMissingVariable, stage, rel)
	}
	return string(data), nil
}
