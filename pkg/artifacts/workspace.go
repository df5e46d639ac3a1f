// Package artifacts manages the per-job output directory: intermediate
// analyzer results, combined contexts, the insight dashboard, and the
// terminal status marker.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
)

// Layout under the workspace root:
//
//	intermediate/stage_a/<slug>.json|.md
//	intermediate/stage_b/<slug>.json|.md
//	intermediate/stage_b_context.txt
//	intermediate/summaries/<artifact>
//	final/<slug>.md
//	final/context_combined.txt
//	final/insight_dashboard.json|.md|.csv
//	final_status.json
//	COMPLETED
const (
	intermediateDir = "intermediate"
	summaryDir      = "summaries"
	finalDir        = "final"

	stageBContextFile = "stage_b_context.txt"
	finalContextFile  = "context_combined.txt"
	finalStatusFile   = "final_status.json"
	completedSentinel = "COMPLETED"
)

// Workspace is the artifact directory of one job.
type Workspace struct {
	dir    string
	output *config.OutputConfig
}

// NewWorkspace creates (or reopens) the artifact directory for a job.
func NewWorkspace(output *config.OutputConfig, jobID string) (*Workspace, error) {
	dir := filepath.Join(output.Directory, jobID)
	for _, sub := range []string{
		filepath.Join(intermediateDir, string(models.StageA)),
		filepath.Join(intermediateDir, string(models.StageB)),
		filepath.Join(intermediateDir, summaryDir),
		finalDir,
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	return &Workspace{dir: dir, output: output}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// WriteIntermediate persists one analyzer result: the full record as
// JSON, plus a human-readable markdown rendering with the raw output
// optionally truncated for display.
func (w *Workspace) WriteIntermediate(stage models.StageKey, result *models.AnalysisResult) error {
	base := filepath.Join(w.dir, intermediateDir, string(stage), result.AnalyzerName)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", result.AnalyzerName, err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s.json: %w", result.AnalyzerName, err)
	}

	md := w.renderMarkdown(result)
	if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write %s.md: %w", result.AnalyzerName, err)
	}
	return nil
}

func (w *Workspace) renderMarkdown(result *models.AnalysisResult) string {
	raw := result.RawOutput
	if w.output.TruncateRawOutput && w.output.RawOutputMaxChars > 0 && len(raw) > w.output.RawOutputMaxChars {
		raw = raw[:w.output.RawOutputMaxChars] + "\n\n*(output truncated)*"
	}
	header := fmt.Sprintf("# %s\n\nStatus: %s | Model: %s | Tokens: %d | Time: %.2fs\n\n",
		result.AnalyzerName, result.Status, result.ModelUsed,
		result.TokenUsage.TotalTokens, result.ProcessingTime)
	if result.ErrorMessage != "" {
		header += "Error: " + result.ErrorMessage + "\n\n"
	}
	return header + raw + "\n"
}

// WriteStageBContext records the exact combined context fed to Stage B.
func (w *Workspace) WriteStageBContext(content string) error {
	return w.write(filepath.Join(intermediateDir, stageBContextFile), content)
}

// WriteFinalContext records the exact combined context fed to Final.
func (w *Workspace) WriteFinalContext(content string) error {
	return w.write(filepath.Join(finalDir, finalContextFile), content)
}

// WriteFinalOutput persists one final-stage analyzer's markdown output.
func (w *Workspace) WriteFinalOutput(slug, content string) error {
	return w.write(filepath.Join(finalDir, slug+".md"), content)
}

// WriteDashboard persists one rendering of the insight dashboard.
// ext is "json", "md", or "csv".
func (w *Workspace) WriteDashboard(ext string, data []byte) error {
	name := filepath.Join(finalDir, "insight_dashboard."+ext)
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// WriteFinalStatus persists the machine-readable run summary.
func (w *Workspace) WriteFinalStatus(status *FinalStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal final status: %w", err)
	}
	return w.write(finalStatusFile, string(data))
}

// MarkCompleted drops the zero-byte sentinel that signals terminal
// success. Only written when the job completed without a fatal error.
func (w *Workspace) MarkCompleted() error {
	return w.write(completedSentinel, "")
}

// SummarySink returns a sink that stores summarizer work products
// under intermediate/summaries/.
func (w *Workspace) SummarySink() *summarySink {
	return &summarySink{dir: filepath.Join(w.dir, intermediateDir, summaryDir)}
}

func (w *Workspace) write(rel, content string) error {
	if err := os.WriteFile(filepath.Join(w.dir, rel), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

type summarySink struct {
	dir string
}

func (s *summarySink) Save(name string, data []byte) error {
	// Artifact names come from the summarizer; reject anything pathy.
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid summary artifact name: %q", name)
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}
