package store

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/pathpilot/fhirserve/fhir"
	"github.com/pathpilot/fhirserve/query"
)

// Store answers count and page queries over the NDJSON backing files of a
// catalog. It never writes to the files; counts and pages are independent
// passes so that a bundle total always reflects every match regardless of
// the page limit.
type Store struct {
	catalog *Catalog
	lines   *LineCountIndex
	logger  *slog.Logger
}

// NewStore creates a store over a catalog and a shared line count index.
func NewStore(catalog *Catalog, lines *LineCountIndex, logger *slog.Logger) *Store {
	return &Store{catalog: catalog, lines: lines, logger: logger}
}

// Count returns the total number of resources of a type matching the filter,
// across all backing files. Strategy selection:
//
//   - no filter: sum of precomputed line counts, no parsing
//   - filter is a single subject-reference clause: raw text pre-filter
//   - anything else: full parse of every line
func (s *Store) Count(ctx context.Context, resourceType string, f *query.Filter) (int, error) {
	paths, err := s.catalog.Files(resourceType)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return s.lines.Total(paths)
	}
	if f.Subject != "" {
		return s.countByReference(ctx, paths, f.Subject)
	}
	return s.countScan(ctx, paths, f)
}

// Page returns up to limit matching resources in backing-file order,
// stopping as soon as the limit is reached. A negative limit means no cap;
// callers are expected to apply a ceiling in that case. Limit zero yields an
// empty page without touching disk.
func (s *Store) Page(ctx context.Context, resourceType string, f *query.Filter, limit int) ([]fhir.Resource, error) {
	paths, err := s.catalog.Files(resourceType)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return []fhir.Resource{}, nil
	}

	results := make([]fhir.Resource, 0)
	for _, path := range paths {
		err := scanResources(ctx, path, func(r fhir.Resource) bool {
			if f != nil && !f.Match(r) {
				return true
			}
			results = append(results, r)
			return limit < 0 || len(results) < limit
		})
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// referenceVariants builds the literal substrings the text pre-filter looks
// for. The heuristic assumes references serialize as `"reference": "Type/id"`
// with at most a space after the colon and no escaping; an encoder that
// escapes slashes would make it undercount, which is why it is only used for
// the single-subject-clause shape and everything else takes the full parse.
func referenceVariants(subject string) []string {
	if strings.Contains(subject, "/") {
		return []string{
			`"reference": "` + subject + `"`,
			`"reference":"` + subject + `"`,
		}
	}
	id := fhir.TailID(subject)
	return []string{
		`"reference": "Patient/` + id + `"`,
		`"reference":"Patient/` + id + `"`,
		`/` + id + `"`,
	}
}

// countByReference counts lines containing a serialized reference without
// parsing them. Per file, the first variant that matches anything wins; the
// remaining variants exist to tolerate serialization differences, not to be
// summed together.
func (s *Store) countByReference(ctx context.Context, paths []string, subject string) (int, error) {
	variants := referenceVariants(subject)
	needles := make([][]byte, len(variants))
	for i, v := range variants {
		needles[i] = []byte(v)
	}

	total := 0
	for _, path := range paths {
		counts := make([]int, len(needles))
		err := scanLines(ctx, path, func(line []byte) bool {
			for i, needle := range needles {
				if bytes.Contains(line, needle) {
					counts[i]++
					break
				}
			}
			return true
		})
		if err != nil {
			return 0, err
		}
		for _, n := range counts {
			if n > 0 {
				total += n
				break
			}
		}
	}
	return total, nil
}

// countScan is the full-parse counting strategy.
func (s *Store) countScan(ctx context.Context, paths []string, f *query.Filter) (int, error) {
	total := 0
	for _, path := range paths {
		err := scanResources(ctx, path, func(r fhir.Resource) bool {
			if f.Match(r) {
				total++
			}
			return true
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
