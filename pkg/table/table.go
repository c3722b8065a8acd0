// Package table parses the column tables virsh prints.
//
// The layout is a compatibility contract with virsh: line 0 is the header row,
// line 1 is a separator made of dashes, data rows start at line 2. When a virsh
// release changes its banner the parsers here return sentinels instead of guessing.
package table

import (
	"strings"
)

// Unknown is returned when a column or value cannot be located.
const Unknown = "unknown"

// headerLines is the header row plus the separator below it.
const headerLines = 2

func lines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Column returns the value of header in the first data row that has a token at
// the header's index. Matching is exact and case-sensitive.
func Column(text, header string) string {
	ls := lines(text)
	if len(ls) == 0 {
		return Unknown
	}

	index := -1
	for i, h := range strings.Fields(ls[0]) {
		if h == header {
			index = i
			break
		}
	}
	if index < 0 {
		return Unknown
	}

	for _, row := range dataLines(ls, headerLines) {
		fields := strings.Fields(row)
		if index < len(fields) {
			return fields[index]
		}
	}

	return Unknown
}

// Rows returns the token at index of every data row where pred accepts it, in order.
func Rows(text string, index int, pred func(string) bool) []string {
	var out []string
	for _, row := range dataLines(lines(text), headerLines) {
		fields := strings.Fields(row)
		if index < 0 || index >= len(fields) {
			continue
		}
		if pred == nil || pred(fields[index]) {
			out = append(out, fields[index])
		}
	}
	return out
}

// DataRows tokenizes every line after the first skip lines. Blank lines are dropped.
func DataRows(text string, skip int) [][]string {
	var out [][]string
	for _, row := range dataLines(lines(text), skip) {
		if fields := strings.Fields(row); len(fields) > 0 {
			out = append(out, fields)
		}
	}
	return out
}

// Lines returns the trimmed, non-empty lines of text.
func Lines(text string) []string {
	var out []string
	for _, l := range lines(text) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func dataLines(ls []string, skip int) []string {
	if skip >= len(ls) {
		return nil
	}
	return ls[skip:]
}
