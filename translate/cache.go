package translate

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of answers Cached keeps.
const DefaultCacheSize = 1024

type cachedTranslator struct {
	tr    Translator
	cache *lru.Cache[string, string]
}

// Cached wraps tr so identical texts are sent only once. Failed calls are
// not cached.
func Cached(tr Translator, size int) Translator {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return tr
	}
	return &cachedTranslator{tr: tr, cache: c}
}

func (c *cachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.tr.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	c.cache.Add(text, v)
	return v, nil
}
