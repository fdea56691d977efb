// Package phoneme abstracts the external phonemization backend that turns
// normalized text into phonetic symbols.
package phoneme

import (
	"context"
	"fmt"
)

// Error reports a failed phonemization attempt for a given language.
type Error struct {
	Language string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("phonemize (%s): %v", e.Language, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Phonemizer converts normalized text into a phonetic symbol sequence.
type Phonemizer interface {
	Phonemize(ctx context.Context, text, language string) (string, error)
}

type mockPhonemizer struct{}

func NewMock() Phonemizer { return &mockPhonemizer{} }

func (m *mockPhonemizer) Phonemize(_ context.Context, text, _ string) (string, error) {
	return fmt.Sprintf("[phonemes len=%d]", len(text)), nil
}
