// Package cache holds the process-wide memo of resolved queries: individual
// resources by type and id, and fully assembled searchset bundles by
// canonical query signature. The two key spaces are independent and are only
// ever invalidated together, by Clear.
package cache

import (
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pathpilot/fhirserve/fhir"
)

// SpaceStats are the aggregate counters of one cache key space.
type SpaceStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Stats reports both key spaces.
type Stats struct {
	Resources SpaceStats `json:"resources"`
	Bundles   SpaceStats `json:"bundles"`
}

// Cache is the two-space query result cache. Entries are replaced wholesale,
// never partially updated. With a zero TTL and zero max size entries live
// until an explicit Clear.
type Cache struct {
	resources *expirable.LRU[string, fhir.Resource]
	bundles   *expirable.LRU[string, *fhir.Bundle]

	resourceHits   atomic.Int64
	resourceMisses atomic.Int64
	bundleHits     atomic.Int64
	bundleMisses   atomic.Int64
}

// New creates a cache. maxEntries bounds each key space independently
// (0 = unbounded); ttl expires entries after the given duration (0 = never).
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		resources: expirable.NewLRU[string, fhir.Resource](maxEntries, nil, ttl),
		bundles:   expirable.NewLRU[string, *fhir.Bundle](maxEntries, nil, ttl),
	}
}

// ResourceKey builds the record-space key for a type and id.
func ResourceKey(resourceType, id string) string {
	return resourceType + "/" + id
}

// Signature builds the canonical bundle-space key for a search: the resource
// type plus all parameters sorted by name. Parameter order in the request is
// irrelevant by construction.
func Signature(resourceType string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(resourceType)
	b.WriteByte('?')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(values.Get(key))
	}
	return b.String()
}

// GetResource looks up a cached resource.
func (c *Cache) GetResource(key string) (fhir.Resource, bool) {
	r, ok := c.resources.Get(key)
	if ok {
		c.resourceHits.Add(1)
	} else {
		c.resourceMisses.Add(1)
	}
	return r, ok
}

// SetResource stores a resource.
func (c *Cache) SetResource(key string, r fhir.Resource) {
	c.resources.Add(key, r)
}

// GetBundle looks up a cached searchset bundle.
func (c *Cache) GetBundle(signature string) (*fhir.Bundle, bool) {
	b, ok := c.bundles.Get(signature)
	if ok {
		c.bundleHits.Add(1)
	} else {
		c.bundleMisses.Add(1)
	}
	return b, ok
}

// SetBundle stores an assembled bundle under its query signature.
func (c *Cache) SetBundle(signature string, b *fhir.Bundle) {
	c.bundles.Add(signature, b)
}

// Clear wipes both key spaces. Statistics counters are kept.
func (c *Cache) Clear() {
	c.resources.Purge()
	c.bundles.Purge()
}

// Stats returns the aggregate counters of both key spaces.
func (c *Cache) Stats() Stats {
	return Stats{
		Resources: SpaceStats{
			Hits:    c.resourceHits.Load(),
			Misses:  c.resourceMisses.Load(),
			Entries: c.resources.Len(),
		},
		Bundles: SpaceStats{
			Hits:    c.bundleHits.Load(),
			Misses:  c.bundleMisses.Load(),
			Entries: c.bundles.Len(),
		},
	}
}
