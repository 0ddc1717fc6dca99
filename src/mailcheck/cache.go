// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"slices"
	"sync"
	"time"
)

// Cache stores finished [CheckResultData] by normalized domain.
//
// Provide your own (Redis, memcached, ...) with [WithCache]. The checker
// only stores results that carry no transport failure, so a cached entry
// is always a definite answer.
type Cache interface {
	// Get returns the live entry for domain, if any.
	Get(domain string) (CheckResultData, bool)

	// Set stores data for domain.
	Set(domain string, data CheckResultData)

	// Flush drops every entry.
	Flush()
}

// sweepEvery is the number of writes between sweeps of expired entries.
const sweepEvery = 256

type cacheEntry struct {
	data    CheckResultData
	expires time.Time
}

// memoryCache is the default [Cache]: a TTL map that never hands out
// slices it also holds.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	writes  int
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *memoryCache) Get(domain string) (CheckResultData, bool) {
	c.mu.RLock()
	entry, ok := c.entries[domain]
	c.mu.RUnlock()

	switch {
	case !ok:
		return CheckResultData{}, false
	case c.now().After(entry.expires):
		c.mu.Lock()
		// A concurrent Set may have refreshed the entry.
		if cur, ok := c.entries[domain]; ok && cur.expires.Equal(entry.expires) {
			delete(c.entries, domain)
		}
		c.mu.Unlock()
		return CheckResultData{}, false
	default:
		return cloneResult(entry.data), true
	}
}

func (c *memoryCache) Set(domain string, data CheckResultData) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[domain] = cacheEntry{data: cloneResult(data), expires: now.Add(c.ttl)}

	c.writes++
	if c.writes%sweepEvery == 0 {
		for d, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, d)
			}
		}
	}
}

func (c *memoryCache) Flush() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// cloneResult copies the slices of data so the cache and its callers
// never share backing arrays.
func cloneResult(data CheckResultData) CheckResultData {
	data.SPF.Lookups = slices.Clone(data.SPF.Lookups)
	data.DKIM.Records = slices.Clone(data.DKIM.Records)
	return data
}
