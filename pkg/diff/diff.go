// Package diff produces and pretty-prints unified diffs between two configuration snapshots.
package diff

import (
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

const contextLines = 3

// Unified returns a unified diff from previous to current, or "" when they are equal.
func Unified(previous, current, fromFile, toFile string) string {
	if previous == current {
		return ""
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  contextLines,
	})
	if err != nil {
		// difflib only fails when writing to its buffer
		return ""
	}

	return out
}

// showIndent prints leading spaces as "∙" and tabs as "→   " so indentation changes are
// visible, then the rest of s in c.
func showIndent(s string, c *color.Color) string {
	mark := color.New(color.Faint, color.FgHiGreen)

	var b strings.Builder
	b.WriteString(color.New(color.Bold).Sprint(" | "))
	rest := strings.TrimLeft(s, " \t")
	for _, r := range s[:len(s)-len(rest)] {
		if r == '\t' {
			b.WriteString(mark.Sprint("→   "))
		} else {
			b.WriteString(mark.Sprint("∙"))
		}
	}
	if rest != "" {
		b.WriteString(c.Sprint(rest))
	}
	return b.String()
}
