package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMarkdown_UnicodeDashes(t *testing.T) {
	in := "range 1–5, pause — then −3"
	assert.Equal(t, "range 1-5, pause - then -3", NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_UnwrapsTableFences(t *testing.T) {
	in := "intro\n```\n| A | B |\n|---|---|\n| 1 | 2 |\n```\noutro"
	want := "intro\n| A | B |\n|---|---|\n| 1 | 2 |\noutro"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_KeepsCodeFences(t *testing.T) {
	in := "```\nfunc main() {}\n```"
	assert.Equal(t, in, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_InsertsMissingSeparator(t *testing.T) {
	in := "| A | B |\n| 1 | 2 |"
	want := "| A | B |\n|---|---|\n| 1 | 2 |"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_RepairsShortSeparator(t *testing.T) {
	in := "| A | B | C |\n|---|---|\n| 1 | 2 | 3 |"
	want := "| A | B | C |\n|---|---|---|\n| 1 | 2 | 3 |"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_LeavesGoodTablesAlone(t *testing.T) {
	in := "| A | B |\n| :--- | ---: |\n| 1 | 2 |"
	assert.Equal(t, in, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_DedentsIndentedRows(t *testing.T) {
	in := "text\n    | A | B |\n    |---|---|\n    | 1 | 2 |"
	want := "text\n| A | B |\n|---|---|\n| 1 | 2 |"
	assert.Equal(t, want, NormalizeMarkdown(in))
}

func TestNormalizeMarkdown_UnclosedFenceKept(t *testing.T) {
	in := "```\n| A | B |"
	assert.Equal(t, in, NormalizeMarkdown(in))
}
