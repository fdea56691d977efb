// Package segment detects sentence boundaries in text that arrives in
// arbitrary fragments, such as a language model token stream.
package segment

import (
	"strings"
	"unicode"
)

// Segmenter accumulates fragments and emits completed sentences as soon as
// a boundary is known. It is single-writer: callers must not invoke methods
// concurrently.
type Segmenter struct {
	pending string
}

func New() *Segmenter {
	return &Segmenter{}
}

// Append adds a fragment to the pending buffer and returns every sentence
// completed by it, in arrival order. An empty fragment is a no-op.
func (s *Segmenter) Append(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.pending += fragment

	var sentences []string
	for {
		sentence, rest, ok := scanBoundary(s.pending)
		if !ok {
			break
		}
		s.pending = rest
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// Flush emits whatever remains in the pending buffer, possibly a
// grammatically incomplete sentence, and clears it. Returns "" when the
// buffer holds nothing but whitespace.
func (s *Segmenter) Flush() string {
	out := strings.TrimSpace(s.pending)
	s.pending = ""
	return out
}

// Reset discards the pending buffer without emitting.
func (s *Segmenter) Reset() {
	s.pending = ""
}

// Pending returns the current unterminated buffer without mutating it.
func (s *Segmenter) Pending() string {
	return s.pending
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// scanBoundary finds the first sentence boundary in text. A boundary is a
// run of terminal punctuation followed by whitespace or end of buffer,
// unless the terminator closes a recognized abbreviation. A '.' directly
// followed by a digit (decimal point) never reaches the whitespace check.
func scanBoundary(text string) (sentence, rest string, ok bool) {
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// Consecutive terminators count as a single boundary.
		end := i
		for end+1 < len(runes) && isTerminator(runes[end+1]) {
			end++
		}
		if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}
		if runes[i] == '.' && i == end && guardedAbbreviation(runes[:i]) {
			continue
		}
		sentence = strings.TrimSpace(string(runes[:end+1]))
		rest = strings.TrimLeftFunc(string(runes[end+1:]), unicode.IsSpace)
		return sentence, rest, true
	}
	return "", "", false
}

// abbreviations is the guard list for '.' boundaries, checked with inner
// dots stripped: "e.g." and "eg." both map to "eg".
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "rev": {},
	"sr": {}, "jr": {}, "st": {}, "vs": {}, "etc": {}, "eg": {}, "ie": {},
	"inc": {}, "ltd": {}, "co": {}, "corp": {}, "ave": {}, "blvd": {},
	"dept": {}, "fig": {}, "vol": {}, "approx": {}, "est": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {},
	"aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// guardedAbbreviation reports whether the word ending at the terminator is
// a recognized abbreviation or a single-letter initial.
func guardedAbbreviation(before []rune) bool {
	end := len(before)
	start := end
	for start > 0 {
		r := before[start-1]
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start--
	}
	if start == end {
		return false
	}
	token := string(before[start:end])
	if strings.Contains(token, ".") {
		// Dotted abbreviation such as "U.S" or "e.g".
		return true
	}
	word := token
	if len(word) == 1 && unicode.IsUpper([]rune(word)[0]) {
		return true
	}
	_, guarded := abbreviations[strings.ToLower(word)]
	return guarded
}
