// Package prompt loads analyzer prompt templates and renders them with
// per-stage variables. Stateless — all state comes from parameters.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// Variable names templates may reference.
const (
	VarTranscript = "transcript"
	VarContext    = "context"
	VarMetadata   = "metadata"
)

var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render substitutes {{name}} placeholders with values from vars.
// Placeholders with no matching variable are left untouched so a
// malformed template fails loudly in the rendered output instead of
// silently losing content.
func Render(template string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// Builder resolves prompt templates for analyzer specs, honoring
// per-run prompt overrides.
type Builder struct {
	registry *config.AnalyzerRegistry
}

func NewBuilder(registry *config.AnalyzerRegistry) *Builder {
	if registry == nil {
		panic("prompt.NewBuilder: registry must not be nil")
	}
	return &Builder{registry: registry}
}

// Build loads the template for spec, applying overridePath when set,
// and renders it with vars. Override paths go through the same root
// containment checks as configured paths.
func (b *Builder) Build(spec config.AnalyzerSpec, overridePath string, vars map[string]string) (string, error) {
	path := spec.PromptPath
	if overridePath != "" {
		path = overridePath
	}

	template, err := b.registry.ValidatePromptFile(path, spec.Stage)
	if err != nil {
		return "", fmt.Errorf("prompt for analyzer %q: %w", spec.Slug, err)
	}
	return Render(template, vars), nil
}

// StageAVars builds the variable set for first-pass analyzers, which
// see the raw transcript plus formatted metadata.
func StageAVars(t *models.Transcript) map[string]string {
	return map[string]string{
		VarTranscript: t.TextForAnalysis(),
		VarMetadata:   FormatMetadata(t),
	}
}

// StageBVars builds the variable set for synthesis analyzers. The
// context is the combined output of the preceding stage; transcript is
// the optional transcript section and may be empty.
func StageBVars(context, transcript string) map[string]string {
	vars := map[string]string{
		VarContext: context,
	}
	if transcript != "" {
		vars[VarTranscript] = transcript
	}
	return vars
}

// FormatMetadata renders transcript metadata as a compact header block.
func FormatMetadata(t *models.Transcript) string {
	m := t.Metadata
	var sb strings.Builder
	if m.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", m.Title)
	}
	if m.Date != nil {
		fmt.Fprintf(&sb, "Date: %s\n", m.Date.Format("2006-01-02"))
	}
	if m.Duration != "" {
		fmt.Fprintf(&sb, "Duration: %s\n", m.Duration)
	}
	if len(t.Speakers) > 0 {
		names := make([]string, len(t.Speakers))
		for i, sp := range t.Speakers {
			names[i] = sp.Name
		}
		fmt.Fprintf(&sb, "Participants: %s\n", strings.Join(names, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
