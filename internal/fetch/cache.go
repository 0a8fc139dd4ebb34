package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "socialchoice:ballots:"

// Cache stores downloaded bodies by key. Get returns "" for a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Getter is anything that downloads a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// CachedClient serves repeated downloads of the same URL from a cache. Cache
// failures are logged and never fail a download.
type CachedClient struct {
	next  Getter
	cache Cache
	ttl   time.Duration
}

func NewCachedClient(next Getter, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{next: next, cache: cache, ttl: ttl}
}

func CacheKey(url string) string {
	return cacheKeyPrefix + url
}

func (c *CachedClient) Get(ctx context.Context, url string) ([]byte, error) {
	key := CacheKey(url)
	cached, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("ballot cache read failed, downloading")
	case cached != "":
		log.Debug().Str("url", url).Int("bytes", len(cached)).Msg("ballot file served from cache")
		return []byte(cached), nil
	}

	data, err := c.next.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ballot cache write failed")
	}
	return data, nil
}

// Evict drops the cached body of url, e.g. after it failed to parse.
func (c *CachedClient) Evict(ctx context.Context, url string) error {
	key := CacheKey(url)
	if err := c.cache.Del(ctx, key); err != nil {
		return err
	}
	log.Debug().Str("key", key).Msg("evicted cached ballot file")
	return nil
}
