package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"botevents-api/internal/model"
)

// catalogCache keeps recently resolved catalog entries keyed by in-game name.
// Catalog rows are read-only for this service, so a short TTL is enough.
type catalogCache struct {
	lru *expirable.LRU[string, model.CatalogEntry]
}

func newCatalogCache(size int, ttl time.Duration) *catalogCache {
	if size <= 0 {
		return nil
	}
	return &catalogCache{
		lru: expirable.NewLRU[string, model.CatalogEntry](size, nil, ttl),
	}
}

// Get returns the entry for inGameName. A nil cache always misses.
func (c *catalogCache) Get(inGameName string) (model.CatalogEntry, bool) {
	if c == nil {
		return model.CatalogEntry{}, false
	}
	return c.lru.Get(inGameName)
}

func (c *catalogCache) Set(e model.CatalogEntry) {
	if c == nil {
		return
	}
	c.lru.Add(e.InGameName, e)
}

func (c *catalogCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *catalogCache) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
