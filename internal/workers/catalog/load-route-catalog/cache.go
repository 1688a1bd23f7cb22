package loadroutecatalog

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cacheKey = "route-catalog"

// CachedLoader memoises Loader.Load for the configured TTL. Concurrent
// callers that miss together share a single load.
type CachedLoader struct {
	loader *Loader
	cache  *gocache.Cache
	ttl    time.Duration
	mu     sync.Mutex
}

func NewCachedLoader(loader *Loader, ttl time.Duration) *CachedLoader {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedLoader{
		loader: loader,
		cache:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// Catalog returns the memoised catalog, loading it on first use or after
// expiry. A cancelled load is not cached.
func (c *CachedLoader) Catalog(ctx context.Context) (*Catalog, error) {
	if cat, ok := c.cached(); ok {
		return cat, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cat, ok := c.cached(); ok {
		return cat, nil
	}

	cat, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, cat, c.ttl)
	return cat, nil
}

// Routes reports the catalog entry for state. known is false when the state
// is not in the catalog.
func (c *CachedLoader) Routes(ctx context.Context, state string) ([]string, bool, error) {
	cat, err := c.Catalog(ctx)
	if err != nil {
		return nil, false, err
	}
	routes, known := cat.Routes(state)
	return routes, known, nil
}

// Invalidate drops the memoised catalog so the next call reloads the files.
func (c *CachedLoader) Invalidate() {
	c.cache.Delete(cacheKey)
}

func (c *CachedLoader) cached() (*Catalog, bool) {
	v, ok := c.cache.Get(cacheKey)
	if !ok {
		return nil, false
	}
	cat, ok := v.(*Catalog)
	return cat, ok
}
