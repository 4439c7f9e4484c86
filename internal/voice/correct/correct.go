// Package correct rewrites misrecognised domain terms in a raw transcript.
package correct

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
)

// Correct replaces every case-insensitive whole-word occurrence of each
// dictionary term with its canonical spelling.
//
// Categories and terms are applied in dictionary order, each against the text
// produced by the previous replacement. When terms overlap the earlier term
// wins at a given position.
func Correct(text string, dict notetype.Dictionary) string {
	corrected := text
	for _, category := range dict {
		for _, term := range category.Terms {
			if strings.TrimSpace(term) == "" {
				continue
			}
			corrected = replaceWords(corrected, term)
		}
	}
	return corrected
}

// Count returns how many whole-word, case-insensitive matches of any term
// exist in text whose spelling differs from the canonical term.
func Count(text string, dict notetype.Dictionary) int {
	n := 0
	for _, category := range dict {
		for _, term := range category.Terms {
			if strings.TrimSpace(term) == "" {
				continue
			}
			for _, m := range findWords(text, term) {
				if text[m[0]:m[1]] != term {
					n++
				}
			}
		}
	}
	return n
}

func replaceWords(text, term string) string {
	matches := findWords(text, term)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.WriteString(term)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// findWords returns the non-overlapping spans of text matching term
// case-insensitively on word boundaries. Letters and digits of any script
// count as word characters.
func findWords(text, term string) [][2]int {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))

	var spans [][2]int
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && atBoundary(text, start, end) {
			spans = append(spans, [2]int{start, end})
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}
	return spans
}

// atBoundary reports whether text[start:end] has a word boundary at both
// ends, in the sense of a Unicode-aware \b.
func atBoundary(text string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(text[start:end])
	lastRune, _ := utf8.DecodeLastRuneInString(text[start:end])

	before := start > 0 && isWord(lastRuneOf(text[:start]))
	after := end < len(text) && isWord(firstRuneOf(text[end:]))

	return before != isWord(first) && after != isWord(lastRune)
}

func firstRuneOf(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRuneOf(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
