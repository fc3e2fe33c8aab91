package npm

import (
	"context"
	"errors"
	"sync"
)

// ManifestCache stores raw version manifests keyed by package name and
// version. Published npm versions are immutable, so entries never expire.
type ManifestCache interface {
	Get(ctx context.Context, name, version string) ([]byte, bool, error)
	Put(ctx context.Context, name, version string, content []byte) error
}

var (
	_ ManifestCache = NoopCache{}
	_ ManifestCache = (*MemoryCache)(nil)
	_ ManifestCache = (*FailingCache)(nil)
)

// NoopCache discards all writes and always misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopCache) Put(context.Context, string, string, []byte) error         { return nil }

// MemoryCache is a thread-safe in-memory ManifestCache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, name, version string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.items[name+"@"+version]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), content...), true, nil
}

func (c *MemoryCache) Put(_ context.Context, name, version string, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[name+"@"+version] = append([]byte(nil), content...)
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string][]byte)
}

// Len returns the number of cached manifests.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// FailingCache returns errors from every call. Useful for exercising the
// paths where the cache is unavailable.
type FailingCache struct {
	GetErr error
	PutErr error
}

// NewFailingCache creates a cache failing with the given errors; nil errors
// are replaced by generic ones.
func NewFailingCache(getErr, putErr error) *FailingCache {
	if getErr == nil {
		getErr = errors.New("cache get failed")
	}
	if putErr == nil {
		putErr = errors.New("cache put failed")
	}
	return &FailingCache{GetErr: getErr, PutErr: putErr}
}

func (c *FailingCache) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, c.GetErr
}

func (c *FailingCache) Put(context.Context, string, string, []byte) error {
	return c.PutErr
}
