package controls

import (
	"strconv"
	"strings"
)

// AddedLine is a line introduced by a diff.
type AddedLine struct {
	// Index is the 1-based position of the line in the diff text.
	Index int

	// Number is the line number in the new file, or 0 when the diff has
	// no hunk header.
	Number int

	// Text is the line without the leading '+'.
	Text string
}

// AddedLines returns every added line of a unified diff. File headers
// ("+++") are not added lines.
func AddedLines(diff string) []AddedLine {
	var out []AddedLine
	next := 0
	for i, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			next = hunkStart(line)
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			al := AddedLine{Index: i + 1, Text: line[1:]}
			if next > 0 {
				al.Number = next
				next++
			}
			out = append(out, al)
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, `\`):
		default:
			if next > 0 {
				next++
			}
		}
	}
	return out
}

// hunkStart parses the new-file start line from "@@ -a,b +c,d @@".
// It returns 0 when the header is malformed.
func hunkStart(header string) int {
	plus := strings.Index(header, "+")
	if plus < 0 {
		return 0
	}
	rest := header[plus+1:]
	end := strings.IndexAny(rest, ", ")
	if end >= 0 {
		rest = rest[:end]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	if n == 0 {
		// "+0,0" is a deleted file; nothing is added.
		return 0
	}
	return n
}

// NewContent reconstructs the post-change file from a unified diff by
// keeping context and added lines. Text without any hunk header is
// returned unchanged, so callers may pass full file content instead of a
// diff.
func NewContent(diff string) string {
	if !strings.Contains(diff, "\n@@") && !strings.HasPrefix(diff, "@@") {
		return diff
	}

	var b strings.Builder
	inHunk := false
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk:
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, " "):
			b.WriteString(line[1:])
			b.WriteByte('\n')
		case line == "":
			b.WriteByte('\n')
		}
	}
	return b.String()
}
