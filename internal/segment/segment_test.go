package segment

import (
	"strings"
	"testing"
)

func TestAppendStreamingFragments(t *testing.T) {
	s := New()
	fragments := []string{"Hello", " there", "! How", " are", " you", "?"}
	var sentences []string
	for _, f := range fragments {
		sentences = append(sentences, s.Append(f)...)
	}
	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "Hello there!" {
		t.Fatalf("unexpected first sentence: %q", sentences[0])
	}
	if sentences[1] != "How are you?" {
		t.Fatalf("unexpected second sentence: %q", sentences[1])
	}
	if s.Pending() != "" {
		t.Fatalf("expected empty pending buffer, got %q", s.Pending())
	}
	if got := s.Flush(); got != "" {
		t.Fatalf("expected empty flush, got %q", got)
	}
}

func TestNoSplitOnDecimalPoint(t *testing.T) {
	s := New()
	sentences := s.Append("The value is 3.14 today.")
	if len(sentences) != 1 {
		t.Fatalf("expected 1 sentence, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "The value is 3.14 today." {
		t.Fatalf("unexpected sentence: %q", sentences[0])
	}
}

func TestNoSplitAfterAbbreviation(t *testing.T) {
	s := New()
	sentences := s.Append("Dr. Smith met Mr. Jones at the office. They talked.")
	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "Dr. Smith met Mr. Jones at the office." {
		t.Fatalf("unexpected first sentence: %q", sentences[0])
	}
}

func TestDottedAbbreviation(t *testing.T) {
	s := New()
	sentences := s.Append("The U.S. economy grew. Markets cheered!")
	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "The U.S. economy grew." {
		t.Fatalf("unexpected first sentence: %q", sentences[0])
	}
}

func TestConsecutiveTerminators(t *testing.T) {
	s := New()
	sentences := s.Append("Wait... What?! Really?")
	want := []string{"Wait...", "What?!", "Really?"}
	if len(sentences) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(sentences), sentences)
	}
	for i, sentence := range sentences {
		if sentence != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, sentence, want[i])
		}
	}
}

func TestEmptyFragmentNoOp(t *testing.T) {
	s := New()
	s.Append("partial text without terminator")
	if got := s.Append(""); got != nil {
		t.Fatalf("empty fragment emitted %v", got)
	}
	if s.Pending() != "partial text without terminator" {
		t.Fatalf("pending buffer changed: %q", s.Pending())
	}
}

func TestFlushEmitsRemainder(t *testing.T) {
	s := New()
	s.Append("an unterminated thought")
	if got := s.Flush(); got != "an unterminated thought" {
		t.Fatalf("unexpected flush: %q", got)
	}
	if s.Pending() != "" {
		t.Fatalf("pending not cleared after flush: %q", s.Pending())
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Append("discard me")
	s.Reset()
	if s.Pending() != "" {
		t.Fatalf("pending not cleared after reset: %q", s.Pending())
	}
	if got := s.Flush(); got != "" {
		t.Fatalf("flush after reset emitted %q", got)
	}
}

func TestCompletenessAcrossFragmentations(t *testing.T) {
	text := "One sentence here. Another follows! A third asks? And a trailing bit"
	for _, size := range []int{1, 3, 7, 50, len(text)} {
		s := New()
		var sentences []string
		for start := 0; start < len(text); start += size {
			end := start + size
			if end > len(text) {
				end = len(text)
			}
			sentences = append(sentences, s.Append(text[start:end])...)
		}
		if tail := s.Flush(); tail != "" {
			sentences = append(sentences, tail)
		}
		if len(sentences) != 4 {
			t.Fatalf("size %d: expected 4 units, got %d: %v", size, len(sentences), sentences)
		}
		joined := strings.Join(sentences, " ")
		if joined != text {
			t.Fatalf("size %d: reassembly mismatch:\n got %q\nwant %q", size, joined, text)
		}
	}
}
