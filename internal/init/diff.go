package initcmd

import (
	"fmt"
	"strings"
)

const diffContext = 3

type lineOp byte

const (
	opKeep lineOp = ' '
	opDel  lineOp = '-'
	opAdd  lineOp = '+'
)

type diffLine struct {
	op   lineOp
	text string
	a, b int // 0-based line numbers in old and new; -1 when absent
}

// UnifiedDiff renders a unified diff between two texts. It returns "" when
// they are identical.
func UnifiedDiff(oldName, newName, oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	lines := lineDiff(splitLines(oldText), splitLines(newText))

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks(lines) {
		writeHunk(&out, lines[h[0]:h[1]])
	}
	return out.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// lineDiff aligns a and b on their longest common subsequence.
func lineDiff(a, b []string) []diffLine {
	// suffix[i][j] is the LCS length of a[i:] and b[j:]
	suffix := make([][]int, len(a)+1)
	for i := range suffix {
		suffix[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				suffix[i][j] = suffix[i+1][j+1] + 1
			} else {
				suffix[i][j] = max(suffix[i+1][j], suffix[i][j+1])
			}
		}
	}

	var out []diffLine
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			out = append(out, diffLine{op: opKeep, text: a[i], a: i, b: j})
			i++
			j++
		case i < len(a) && (j == len(b) || suffix[i+1][j] >= suffix[i][j+1]):
			out = append(out, diffLine{op: opDel, text: a[i], a: i, b: -1})
			i++
		default:
			out = append(out, diffLine{op: opAdd, text: b[j], a: -1, b: j})
			j++
		}
	}
	return out
}

// hunks returns [start, end) ranges of lines around each change, merging
// ranges whose context overlaps.
func hunks(lines []diffLine) [][2]int {
	var out [][2]int
	for i, l := range lines {
		if l.op == opKeep {
			continue
		}
		start := max(i-diffContext, 0)
		end := min(i+diffContext+1, len(lines))
		if n := len(out); n > 0 && start <= out[n-1][1] {
			out[n-1][1] = end
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func writeHunk(out *strings.Builder, lines []diffLine) {
	aStart, bStart := -1, -1
	aCount, bCount := 0, 0
	for _, l := range lines {
		if l.a >= 0 {
			if aStart < 0 {
				aStart = l.a
			}
			aCount++
		}
		if l.b >= 0 {
			if bStart < 0 {
				bStart = l.b
			}
			bCount++
		}
	}
	fmt.Fprintf(out, "@@ -%d,%d +%d,%d @@\n", aStart+1, aCount, bStart+1, bCount)
	for _, l := range lines {
		out.WriteByte(byte(l.op))
		out.WriteString(l.text)
		out.WriteByte('\n')
	}
}
