package fhir

import (
	"encoding/json"
	"strings"
	"time"
)

// Resource is a single FHIR resource as decoded from an NDJSON line.
// Resources are treated as immutable once loaded; nothing in the server
// mutates a Resource after it has been parsed.
type Resource map[string]any

// ParseResource decodes one NDJSON line into a Resource.
func ParseResource(line []byte) (Resource, error) {
	var r Resource
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the logical id of the resource, or "" if absent.
func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

// LastUpdated returns the meta.lastUpdated timestamp.
// The second return value is false when the field is missing or unparseable.
func (r Resource) LastUpdated() (time.Time, bool) {
	meta, _ := r["meta"].(map[string]any)
	if meta == nil {
		return time.Time{}, false
	}
	raw, _ := meta["lastUpdated"].(string)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Reference returns the reference string of a reference-typed field
// (e.g. "subject" -> "Patient/abc123"), or "" if absent.
func (r Resource) Reference(field string) string {
	ref, _ := r[field].(map[string]any)
	if ref == nil {
		return ""
	}
	value, _ := ref["reference"].(string)
	return value
}

// HumanNames returns all name entries as (given parts, family) pairs.
func (r Resource) HumanNames() []HumanName {
	entries, _ := r["name"].([]any)
	names := make([]HumanName, 0, len(entries))
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		if m == nil {
			continue
		}
		var name HumanName
		name.Family, _ = m["family"].(string)
		if given, _ := m["given"].([]any); given != nil {
			for _, g := range given {
				if s, ok := g.(string); ok {
					name.Given = append(name.Given, s)
				}
			}
		}
		names = append(names, name)
	}
	return names
}

// HumanName is the subset of the FHIR HumanName type used for searching.
type HumanName struct {
	Given  []string
	Family string
}

// Identifiers returns all identifier entries as (system, value) pairs.
func (r Resource) Identifiers() []Identifier {
	entries, _ := r["identifier"].([]any)
	ids := make([]Identifier, 0, len(entries))
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		if m == nil {
			continue
		}
		var id Identifier
		id.System, _ = m["system"].(string)
		id.Value, _ = m["value"].(string)
		ids = append(ids, id)
	}
	return ids
}

// Identifier is the subset of the FHIR Identifier type used for searching.
type Identifier struct {
	System string
	Value  string
}

// CategoryCodes returns the code of the first coding of each category entry.
func (r Resource) CategoryCodes() []string {
	entries, _ := r["category"].([]any)
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		if m == nil {
			continue
		}
		codings, _ := m["coding"].([]any)
		if len(codings) == 0 {
			continue
		}
		first, _ := codings[0].(map[string]any)
		if first == nil {
			continue
		}
		if code, ok := first["code"].(string); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// TailID returns the trailing id segment of a reference value.
// "Patient/abc123" and "abc123" both yield "abc123".
func TailID(reference string) string {
	if idx := strings.LastIndexByte(reference, '/'); idx >= 0 {
		return reference[idx+1:]
	}
	return reference
}
