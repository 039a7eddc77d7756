package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Reserved FHIR search parameter names understood by the parser.
const (
	ParamID      = "_id"
	ParamCount   = "_count"
	ParamSince   = "_since"
	ParamSummary = "_summary"
	ParamFormat  = "_format"
)

// SearchQuery is the typed form of a raw search request.
//
// Limit carries the clamped _count value; HasLimit distinguishes an explicit
// _count=0 from an absent or unparseable parameter. The parser never applies
// the server's default or ceiling; that stays with the caller.
type SearchQuery struct {
	ID           string
	Limit        int
	HasLimit     bool
	Since        time.Time
	HasSince     bool
	SummaryCount bool
	Format       string
	// Params retains every raw parameter (first value each) for the filter
	// compiler to consult by name.
	Params map[string]string
}

// formatAliases maps recognized _format values to their canonical encoding.
var formatAliases = map[string]string{
	"json":                  "json",
	"application/json":      "json",
	"application/fhir+json": "json",
	"html":                  "html",
	"text/html":             "html",
}

// FormatJSON is the canonical default encoding.
const FormatJSON = "json"

// Parse turns raw query parameters into a SearchQuery.
// Malformed values degrade to "absent"; parsing never fails a request.
func Parse(values url.Values) SearchQuery {
	q := SearchQuery{
		Format: FormatJSON,
		Params: make(map[string]string, len(values)),
	}
	for key := range values {
		q.Params[key] = values.Get(key)
	}

	q.ID = values.Get(ParamID)

	if raw := values.Get(ParamCount); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			q.Limit = max(0, n)
			q.HasLimit = true
		}
	}

	if raw := values.Get(ParamSince); raw != "" {
		// Accept a trailing UTC designator by normalizing to an explicit offset.
		normalized := raw
		if strings.HasSuffix(normalized, "Z") {
			normalized = strings.TrimSuffix(normalized, "Z") + "+00:00"
		}
		if t, err := time.Parse(time.RFC3339, normalized); err == nil {
			q.Since = t
			q.HasSince = true
		}
	}

	if values.Get(ParamSummary) == "count" {
		q.SummaryCount = true
	}

	if raw := values.Get(ParamFormat); raw != "" {
		if canonical, ok := formatAliases[strings.ToLower(raw)]; ok {
			q.Format = canonical
		}
	}

	return q
}
