// Package chunk splits normalized text into bounded-length units safe for a
// single synthesis call.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLen bounds a unit when no explicit limit is configured.
const DefaultMaxLen = 400

// Unit is one synthesis-ready piece of text. Sequence orders units for
// reassembly; Final marks the last fragment of its source text.
type Unit struct {
	Text     string
	Sequence int
	Final    bool
}

// Split breaks text into units no longer than maxLen runes. Split points
// prefer sentence boundaries, then clause punctuation, then word
// boundaries, with a hard cut on a rune boundary as last resort.
// Concatenating the units reconstructs the input up to whitespace collapsed
// at split points.
func Split(text string, maxLen int) []Unit {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return []Unit{{Text: text, Sequence: 0, Final: true}}
	}

	var units []Unit
	remaining := text
	for utf8.RuneCountInString(remaining) > maxLen {
		cut := splitPoint(remaining, maxLen)
		head := strings.TrimRightFunc(remaining[:cut], isSpace)
		remaining = strings.TrimLeftFunc(remaining[cut:], isSpace)
		if head != "" {
			units = append(units, Unit{Text: head, Sequence: len(units)})
		}
	}
	if remaining != "" || len(units) == 0 {
		units = append(units, Unit{Text: remaining, Sequence: len(units)})
	}
	units[len(units)-1].Final = true
	return units
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClauseEnd(r rune) bool {
	return r == ',' || r == ';' || r == ':'
}

// splitPoint returns the byte offset to cut text so the head spans at most
// maxLen runes.
func splitPoint(text string, maxLen int) int {
	limit := byteOffset(text, maxLen)

	sentence, clause, word := -1, -1, -1
	var prev rune
	for i, r := range text[:limit] {
		if isSpace(r) {
			switch {
			case isSentenceEnd(prev):
				sentence = i
			case isClauseEnd(prev):
				clause = i
			default:
				word = i
			}
		}
		prev = r
	}
	switch {
	case sentence > 0:
		return sentence
	case clause > 0:
		return clause
	case word > 0:
		return word
	default:
		return limit
	}
}

// byteOffset converts a rune count into a byte offset, clamped to len(text).
func byteOffset(text string, runes int) int {
	count := 0
	for i := range text {
		if count == runes {
			return i
		}
		count++
	}
	return len(text)
}
