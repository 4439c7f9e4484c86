// Package outline coerces free-form model output into outline markup:
// every line is either a heading or a dash bullet, nested with one tab per
// level, with no blank lines in between.
package outline

import (
	"regexp"
	"strings"
)

// SpacesPerLevel is the number of leading spaces counted as one level of
// nesting. A leading tab always counts as one level.
const SpacesPerLevel = 2

var (
	ordinalMarker = regexp.MustCompile(`^\d+\.\s+`)
	glyphMarker   = regexp.MustCompile(`^[•◦▪*+]\s+`)
)

// Section is the normalized form of one stage output.
type Section struct {
	Lines []string
}

// String joins the lines with newlines.
func (s Section) String() string {
	return strings.Join(s.Lines, "\n")
}

// Empty reports whether the section has no lines.
func (s Section) Empty() bool {
	return len(s.Lines) == 0
}

// Normalize converts text into outline markup. It never fails; empty input
// yields an empty section.
func Normalize(text string) Section {
	var out []string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		stripped := strings.TrimLeft(line, " \t")

		if stripped == "" {
			continue
		}
		if IsHeading(stripped) {
			out = append(out, line)
			continue
		}
		if IsBullet(stripped) {
			out = append(out, line)
			continue
		}

		prefix := strings.Repeat("\t", Level(line))

		switch {
		case ordinalMarker.MatchString(stripped):
			out = append(out, prefix+"- "+ordinalMarker.ReplaceAllLiteralString(stripped, ""))
		case glyphMarker.MatchString(stripped):
			out = append(out, prefix+"- "+glyphMarker.ReplaceAllLiteralString(stripped, ""))
		default:
			out = append(out, prefix+"- "+stripped)
		}
	}

	return Section{Lines: out}
}

// IsHeading reports whether a stripped line is a markdown heading.
func IsHeading(stripped string) bool {
	return strings.HasPrefix(stripped, "#")
}

// IsBullet reports whether a stripped line already starts with a dash bullet.
func IsBullet(stripped string) bool {
	return stripped == "-" || strings.HasPrefix(stripped, "- ") || strings.HasPrefix(stripped, "-\t")
}

// Level computes the nesting level from a line's leading whitespace.
func Level(line string) int {
	tabs, spaces := 0, 0
	for _, r := range line {
		switch r {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			return tabs + spaces/SpacesPerLevel
		}
	}
	return tabs + spaces/SpacesPerLevel
}
