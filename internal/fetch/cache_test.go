package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.failGet {
		return "", errors.New("connection refused")
	}
	return m.values[key], nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if m.failSet {
		return errors.New("connection refused")
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	delete(m.values, key)
	delete(m.ttls, key)
	return nil
}

func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(ballots))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestCachedClientServesRepeatsFromCache(t *testing.T) {
	ts, calls := countingServer(t)
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	cache := newMemoryCache()
	cached := NewCachedClient(c, cache, time.Hour)

	for range 3 {
		data, err := cached.Get(context.Background(), ts.URL+"/a.soc")
		require.NoError(t, err)
		assert.Equal(t, ballots, string(data))
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, ballots, cache.values[CacheKey(ts.URL+"/a.soc")])
	assert.Equal(t, time.Hour, cache.ttls[CacheKey(ts.URL+"/a.soc")])
}

func TestCachedClientIgnoresCacheFailures(t *testing.T) {
	ts, calls := countingServer(t)
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	cache := newMemoryCache()
	cache.failGet, cache.failSet = true, true
	cached := NewCachedClient(c, cache, time.Hour)

	for range 2 {
		data, err := cached.Get(context.Background(), ts.URL)
		require.NoError(t, err)
		assert.Equal(t, ballots, string(data))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := NewClient(testConfig())
	require.NoError(t, err)
	cache := newMemoryCache()
	_, err = NewCachedClient(c, cache, time.Hour).Get(context.Background(), ts.URL)
	assert.Error(t, err)
	assert.Empty(t, cache.values)
}

func TestCachedClientEvict(t *testing.T) {
	ts, calls := countingServer(t)
	c, err := NewClient(testConfig())
	require.NoError(t, err)
	cache := newMemoryCache()
	cached := NewCachedClient(c, cache, time.Hour)

	_, err = cached.Get(context.Background(), ts.URL)
	require.NoError(t, err)
	require.NoError(t, cached.Evict(context.Background(), ts.URL))
	assert.NotContains(t, cache.values, CacheKey(ts.URL))

	_, err = cached.Get(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
