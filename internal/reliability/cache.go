// Package reliability caches the per-carrier reliability table.
//
// The table changes rarely and is read on every request, so it lives in
// a process-wide TTL cache with single-flight refresh: the first caller
// after expiry fetches, parallel callers await that same fetch, and
// everyone inside the TTL reads memory.
package reliability

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openmiles/awardengine/internal/model"
)

// DefaultTTL is how long a fetched table is served before refreshing.
const DefaultTTL = 5 * time.Minute

const (
	tableKey = "reliability-table"
	staleKey = "reliability-table:stale"
)

// Source fetches the reliability table from its backing store.
type Source interface {
	FetchRules(ctx context.Context) (model.ReliabilityTable, error)
}

// Cache is the singleflight TTL cache over a Source.
type Cache struct {
	src   Source
	store *gocache.Cache
	group singleflight.Group
	log   *zap.SugaredLogger
}

// NewCache creates the cache. A zero ttl falls back to DefaultTTL.
func NewCache(src Source, ttl time.Duration, log *zap.SugaredLogger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		src:   src,
		store: gocache.New(ttl, 2*ttl),
		log:   log.Named("reliability"),
	}
}

// Table returns the current reliability table.
//
// Fallback chain on fetch failure: the previous (possibly stale) table
// if one was ever fetched, else an empty table — which makes every
// carrier default to min_count=1.
func (c *Cache) Table(ctx context.Context) model.ReliabilityTable {
	if v, ok := c.store.Get(tableKey); ok {
		return v.(model.ReliabilityTable)
	}

	v, err, _ := c.group.Do(tableKey, func() (any, error) {
		// Another waiter may have repopulated while we queued.
		if v, ok := c.store.Get(tableKey); ok {
			return v, nil
		}

		table, err := c.src.FetchRules(ctx)
		if err != nil {
			return nil, err
		}
		c.store.SetDefault(tableKey, table)
		c.store.Set(staleKey, table, gocache.NoExpiration)
		return table, nil
	})
	if err == nil {
		return v.(model.ReliabilityTable)
	}

	if stale, ok := c.store.Get(staleKey); ok {
		c.log.Warnw("table refresh failed, serving stale", "err", err)
		return stale.(model.ReliabilityTable)
	}
	c.log.Warnw("table refresh failed with no prior table, treating all carriers as default", "err", err)
	return model.ReliabilityTable{}
}
