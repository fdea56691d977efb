package phoneme

import (
	"context"
	"errors"
	"testing"
)

type countingPhonemizer struct {
	calls int
	fail  bool
}

func (c *countingPhonemizer) Phonemize(_ context.Context, text, language string) (string, error) {
	c.calls++
	if c.fail {
		return "", &Error{Language: language, Err: errors.New("backend down")}
	}
	return "ph:" + text, nil
}

func TestCachedHitsSkipBackend(t *testing.T) {
	inner := &countingPhonemizer{}
	p := NewCached(inner, 4)

	for i := 0; i < 3; i++ {
		got, err := p.Phonemize(context.Background(), "hello", "en-us")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "ph:hello" {
			t.Fatalf("unexpected phonemes: %q", got)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", inner.calls)
	}
}

func TestCachedKeyIncludesLanguage(t *testing.T) {
	inner := &countingPhonemizer{}
	p := NewCached(inner, 4)

	if _, err := p.Phonemize(context.Background(), "hello", "en-us"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Phonemize(context.Background(), "hello", "de"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", inner.calls)
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingPhonemizer{fail: true}
	p := NewCached(inner, 4)

	for i := 0; i < 2; i++ {
		if _, err := p.Phonemize(context.Background(), "hello", "en-us"); err == nil {
			t.Fatal("expected error from failing backend")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 backend calls, got %d", inner.calls)
	}
}

func TestZeroSizeDisablesCache(t *testing.T) {
	inner := &countingPhonemizer{}
	p := NewCached(inner, 0)
	if p != inner {
		t.Fatal("expected inner phonemizer to be returned unwrapped")
	}
}

func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("unsupported input")
	err := &Error{Language: "xx", Err: sentinel}
	if !errors.Is(err, sentinel) {
		t.Fatal("expected Error to unwrap to its cause")
	}
}
