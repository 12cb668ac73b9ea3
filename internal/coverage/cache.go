package coverage

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/coverage-cli/internal/metrics"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
)

// RegionCache holds built coverage sets keyed by (facility-set version,
// density). An entry is only served for an exact version match, and seeing a
// newer version evicts every older entry. Concurrent misses on the same
// signature share one build.
type RegionCache struct {
	store  *gocache.Cache
	group  singleflight.Group
	latest atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries       int     `json:"entries"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	LatestVersion int64   `json:"latest_version"`
}

// NewRegionCache creates a cache whose entries expire after ttl.
func NewRegionCache(ttl time.Duration) *RegionCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RegionCache{store: gocache.New(ttl, 2*ttl)}
}

// Signature builds the cache key for a version and density. Density is
// clamped first so out-of-range values share the entry of their bound.
func Signature(version int64, density float64) string {
	d := rangemodel.ClampDensity(density)
	return fmt.Sprintf("v%d/d%s", version, strconv.FormatFloat(d, 'g', -1, 64))
}

// Get returns the cached set for version and density.
func (c *RegionCache) Get(version int64, density float64) (*Set, bool) {
	c.observe(version)
	s, ok := c.lookup(Signature(version, density))
	if ok {
		c.hits.Add(1)
		metrics.RegionCacheHitsTotal.Inc()
	} else {
		c.misses.Add(1)
		metrics.RegionCacheMissesTotal.Inc()
	}
	return s, ok
}

// GetOrBuild returns the cached set or runs build and stores its result.
// Results for a version older than the newest one seen are returned to the
// caller but never stored. Concurrent callers share one build, which runs
// detached from any single caller's cancellation.
func (c *RegionCache) GetOrBuild(ctx context.Context, version int64, density float64, build func(context.Context) (*Set, error)) (*Set, error) {
	if s, ok := c.Get(version, density); ok {
		return s, nil
	}

	key := Signature(version, density)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if s, ok := c.lookup(key); ok {
			return s, nil
		}
		s, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.put(key, s)
		return s, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "coverage: build %s", key)
	}
	return v.(*Set), nil
}

// Invalidate records version as current and drops every entry built for an
// older version.
func (c *RegionCache) Invalidate(version int64) {
	c.observe(version)
}

// Flush drops all entries.
func (c *RegionCache) Flush() {
	c.store.Flush()
}

// Stats returns cache performance statistics.
func (c *RegionCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:       c.store.ItemCount(),
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		LatestVersion: c.latest.Load(),
	}
}

func (c *RegionCache) lookup(key string) (*Set, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Set)
	return s, ok
}

func (c *RegionCache) put(key string, s *Set) {
	if s.Version < c.latest.Load() {
		return
	}
	c.store.SetDefault(key, s)
}

// observe raises the latest version and evicts older entries when it moves.
func (c *RegionCache) observe(version int64) {
	for {
		cur := c.latest.Load()
		if version <= cur {
			return
		}
		if c.latest.CompareAndSwap(cur, version) {
			break
		}
	}
	for k, item := range c.store.Items() {
		if s, ok := item.Object.(*Set); ok && s.Version < version {
			c.store.Delete(k)
		}
	}
}
