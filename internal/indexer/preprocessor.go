package indexer

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	numberedHeading = regexp.MustCompile(`^\d+\.`)
	letteredHeading = regexp.MustCompile(`^[A-Z]\.`)
)

// Preprocess cleans extracted document text. Whitespace runs inside a line
// collapse to one space and blank lines are dropped. Lines wrapped mid-sentence
// are joined. Numbered or lettered headings and short upper-case headings keep
// their own line.
func Preprocess(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}

	var merged []string
	current := ""
	for _, line := range lines {
		if isHeading(line) {
			if current != "" {
				merged = append(merged, current)
				current = ""
			}
			merged = append(merged, line)
			continue
		}
		if current != "" && !endsSentence(current) {
			current += " " + line
			continue
		}
		if current != "" {
			merged = append(merged, current)
		}
		current = line
	}
	if current != "" {
		merged = append(merged, current)
	}
	return strings.Join(merged, "\n")
}

func isHeading(line string) bool {
	if numberedHeading.MatchString(line) || letteredHeading.MatchString(line) {
		return true
	}
	return isUpper(line) && len(strings.Fields(line)) <= 4
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func endsSentence(line string) bool {
	return strings.ContainsAny(line[len(line)-1:], ".!?:;")
}
