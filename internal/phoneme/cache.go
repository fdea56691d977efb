package phoneme

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cached memoizes phonemization results per text+language pair.
type cached struct {
	inner Phonemizer
	lru   *lru.Cache[string, string]
}

// NewCached wraps a phonemizer with an LRU result cache. A size of zero or
// a cache construction failure returns the inner phonemizer unwrapped.
func NewCached(inner Phonemizer, size int) Phonemizer {
	if size <= 0 {
		return inner
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return inner
	}
	return &cached{inner: inner, lru: cache}
}

func (c *cached) Phonemize(ctx context.Context, text, language string) (string, error) {
	key := language + "\x00" + text
	if phonemes, ok := c.lru.Get(key); ok {
		return phonemes, nil
	}
	phonemes, err := c.inner.Phonemize(ctx, text, language)
	if err != nil {
		return "", err
	}
	c.lru.Add(key, phonemes)
	return phonemes, nil
}
