package analyzer

import (
	"regexp"
	"strings"
)

// Model output frequently wraps tables in code fences, swaps in unicode
// dashes, or emits broken separator rows. NormalizeMarkdown repairs
// those so downstream stages and renderers see clean pipe tables.
func NormalizeMarkdown(text string) string {
	text = replaceUnicodeDashes(text)
	text = unwrapTableFences(text)
	text = dedentTableLines(text)
	text = repairTableSeparators(text)
	return text
}

var unicodeDashes = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
)

func replaceUnicodeDashes(text string) string {
	return unicodeDashes.Replace(text)
}

var (
	fenceRe     = regexp.MustCompile("^\\s*```")
	pipeRowRe   = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	indentedRow = regexp.MustCompile(`^[ \t]{4,}\|`)
	sepCellRe   = regexp.MustCompile(`^\s*:?-+:?\s*$`)
)

// unwrapTableFences removes code fences whose first non-empty line is a
// pipe-table row, so the table renders instead of displaying as code.
func unwrapTableFences(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		if !fenceRe.MatchString(lines[i]) {
			out = append(out, lines[i])
			continue
		}

		// Collect the fenced block.
		var inner []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if fenceRe.MatchString(lines[j]) {
				closed = true
				break
			}
			inner = append(inner, lines[j])
		}

		if closed && startsWithTableRow(inner) {
			out = append(out, inner...)
			i = j
			continue
		}

		// Not a table fence, keep verbatim.
		out = append(out, lines[i])
		out = append(out, inner...)
		if closed {
			out = append(out, lines[j])
		}
		i = j
	}
	return strings.Join(out, "\n")
}

func startsWithTableRow(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return pipeRowRe.MatchString(line)
	}
	return false
}

// dedentTableLines strips deep indentation from pipe rows, which would
// otherwise render as code blocks.
func dedentTableLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if indentedRow.MatchString(line) {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}

// repairTableSeparators fixes the row after a table header: a separator
// attempt with too few columns is rewritten, and a missing separator is
// inserted, both sized to the header's column count.
func repairTableSeparators(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])

		if !pipeRowRe.MatchString(lines[i]) {
			continue
		}
		// Start of a table block; only the first row gets a separator.
		header := lines[i]
		cols := columnCount(header)
		canonical := "|" + strings.Repeat("---|", cols)

		j := i + 1
		if j < len(lines) && pipeRowRe.MatchString(lines[j]) {
			if isSeparatorRow(lines[j]) {
				if columnCount(lines[j]) < cols {
					out = append(out, canonical)
					j++
				}
			} else {
				out = append(out, canonical)
			}
		}

		// Copy the rest of the block.
		for ; j < len(lines) && pipeRowRe.MatchString(lines[j]); j++ {
			out = append(out, lines[j])
		}
		i = j - 1
	}
	return strings.Join(out, "\n")
}

func columnCount(row string) int {
	trimmed := strings.Trim(strings.TrimSpace(row), "|")
	return len(strings.Split(trimmed, "|"))
}

func isSeparatorRow(row string) bool {
	trimmed := strings.Trim(strings.TrimSpace(row), "|")
	cells := strings.Split(trimmed, "|")
	for _, cell := range cells {
		if !sepCellRe.MatchString(cell) {
			return false
		}
	}
	return len(cells) > 0
}
