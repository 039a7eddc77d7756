// Package search wires the query pipeline together: parameter parsing,
// predicate compilation, the counting/paging store, and the result cache.
// Both the HTTP and the MCP transport resolve requests through one Engine.
package search

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/fhir"
	"github.com/pathpilot/fhirserve/query"
	"github.com/pathpilot/fhirserve/store"
)

// ErrUnknownResourceType signals a resource type outside the catalog.
var ErrUnknownResourceType = errors.New("unknown resource type")

// ErrNotFound signals a read for an id that does not exist.
var ErrNotFound = errors.New("resource not found")

// Engine resolves search and read operations. It owns no global state; all
// shared structures are injected at construction and live for the process.
type Engine struct {
	Store           *store.Store
	Catalog         *store.Catalog
	Cache           *cache.Cache
	DefaultPageSize int
	MaxPageSize     int
	Logger          *slog.Logger
}

// Search resolves a search request into a searchset bundle.
//
// A bundle-cache hit short-circuits the whole pipeline, including predicate
// compilation. On a miss the total is counted across all files first, then a
// page is collected up to the resolved limit, so the total never depends on
// the page size.
func (e *Engine) Search(ctx context.Context, resourceType string, values url.Values, baseURL, selfURL string) (*fhir.Bundle, error) {
	if !e.Catalog.Contains(resourceType) {
		return nil, ErrUnknownResourceType
	}

	signature := cache.Signature(resourceType, values)
	if bundle, ok := e.Cache.GetBundle(signature); ok {
		e.Logger.Debug("search served from cache", "signature", signature)
		return bundle, nil
	}

	start := time.Now()
	q := query.Parse(values)
	filter := query.Compile(resourceType, q)

	total, err := e.Store.Count(ctx, resourceType, filter)
	if err != nil {
		return nil, err
	}

	var bundle *fhir.Bundle
	if q.SummaryCount {
		bundle = fhir.NewCountBundle(total, selfURL)
	} else {
		page, err := e.Store.Page(ctx, resourceType, filter, e.resolveLimit(q))
		if err != nil {
			return nil, err
		}
		bundle = fhir.NewSearchsetBundle(page, total, resourceType, baseURL, selfURL)
	}

	e.Cache.SetBundle(signature, bundle)
	e.Logger.Info("search resolved",
		"resourceType", resourceType,
		"filtered", filter != nil,
		"total", total,
		"page", len(bundle.Entry),
		"elapsed", time.Since(start),
	)
	return bundle, nil
}

// Read resolves a single resource by type and id, consulting the record
// cache before scanning.
func (e *Engine) Read(ctx context.Context, resourceType, id string) (fhir.Resource, error) {
	if !e.Catalog.Contains(resourceType) {
		return nil, ErrUnknownResourceType
	}

	key := cache.ResourceKey(resourceType, id)
	if resource, ok := e.Cache.GetResource(key); ok {
		return resource, nil
	}

	filter := query.Compile(resourceType, query.SearchQuery{ID: id})
	page, err := e.Store.Page(ctx, resourceType, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, ErrNotFound
	}

	e.Cache.SetResource(key, page[0])
	return page[0], nil
}

// resolveLimit applies the default and the ceiling to a parsed _count.
// An explicit zero stays zero; only an absent or malformed _count gets the
// default.
func (e *Engine) resolveLimit(q query.SearchQuery) int {
	if !q.HasLimit {
		return e.DefaultPageSize
	}
	if q.Limit > e.MaxPageSize {
		return e.MaxPageSize
	}
	return q.Limit
}
