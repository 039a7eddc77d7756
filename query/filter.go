package query

import (
	"strings"
	"time"

	"github.com/pathpilot/fhirserve/fhir"
)

// Filter is a compiled predicate over resources.
//
// Subject is set only when the filter consists of exactly one
// subject/patient reference clause; the store uses it to select the text
// pre-filter counting strategy. Any other clause combination leaves it empty.
type Filter struct {
	Match   func(fhir.Resource) bool
	Subject string
}

// typeSearch describes which search parameters a resource type supports and
// which resource fields can hold its patient reference. One generic subject
// matcher serves every clinical type; only the field list varies.
type typeSearch struct {
	Name       bool
	Identifier bool
	Category   bool
	RefFields  []string
}

var subjectFields = []string{"subject", "patient"}

var typeSearches = map[string]typeSearch{
	"Patient":                  {Name: true, Identifier: true},
	"Encounter":                {RefFields: subjectFields},
	"Condition":                {RefFields: subjectFields},
	"Observation":              {RefFields: subjectFields, Category: true},
	"Procedure":                {RefFields: subjectFields},
	"MedicationRequest":        {RefFields: subjectFields},
	"MedicationAdministration": {RefFields: subjectFields},
	"MedicationDispense":       {RefFields: subjectFields},
	"MedicationStatement":      {RefFields: subjectFields},
	"Specimen":                 {RefFields: subjectFields},
}

// SupportedParams returns the documented search parameter names for a type,
// beyond the universal _id/_count/_since. Used by the capability statement.
func SupportedParams(resourceType string) []string {
	spec := typeSearches[resourceType]
	var params []string
	if spec.Name {
		params = append(params, "name")
	}
	if spec.Identifier {
		params = append(params, "identifier")
	}
	if len(spec.RefFields) > 0 {
		params = append(params, "subject")
	}
	if spec.Category {
		params = append(params, "category")
	}
	return params
}

// subjectParam returns the reference search value for a type that supports
// subject filtering, accepting both "subject" and "patient" spellings.
func subjectParam(spec typeSearch, params map[string]string) string {
	if len(spec.RefFields) == 0 {
		return ""
	}
	if v := params["subject"]; v != "" {
		return v
	}
	return params["patient"]
}

// Compile builds the predicate for a resource type and query.
// It returns nil when no filterable parameter was supplied, which is the
// signal for the unfiltered fast paths.
func Compile(resourceType string, q SearchQuery) *Filter {
	// _id search is exclusive: it overrides every other clause.
	if q.ID != "" {
		id := q.ID
		return &Filter{Match: func(r fhir.Resource) bool {
			return r.ID() == id
		}}
	}

	spec := typeSearches[resourceType]
	var clauses []func(fhir.Resource) bool

	if q.HasSince {
		clauses = append(clauses, sinceClause(q.Since))
	}

	subject := subjectParam(spec, q.Params)
	if subject != "" {
		clauses = append(clauses, subjectClause(spec.RefFields, subject))
	}
	if spec.Name {
		if name := q.Params["name"]; name != "" {
			clauses = append(clauses, nameClause(name))
		}
	}
	if spec.Identifier {
		if identifier := q.Params["identifier"]; identifier != "" {
			clauses = append(clauses, identifierClause(identifier))
		}
	}
	if spec.Category {
		if category := q.Params["category"]; category != "" {
			clauses = append(clauses, categoryClause(category))
		}
	}

	if len(clauses) == 0 {
		return nil
	}

	f := &Filter{Match: func(r fhir.Resource) bool {
		for _, clause := range clauses {
			if !clause(r) {
				return false
			}
		}
		return true
	}}
	if subject != "" && len(clauses) == 1 {
		f.Subject = subject
	}
	return f
}

// sinceClause matches resources modified at or after the threshold.
// Resources with a missing or unparseable timestamp are not excluded.
func sinceClause(since time.Time) func(fhir.Resource) bool {
	return func(r fhir.Resource) bool {
		updated, ok := r.LastUpdated()
		if !ok {
			return true
		}
		return !updated.Before(since)
	}
}

// subjectClause matches resources whose reference field ends with "/<id>".
// The query value may be a bare id or a Type/id reference; only the trailing
// id segment is compared.
func subjectClause(refFields []string, value string) func(fhir.Resource) bool {
	suffix := "/" + fhir.TailID(value)
	return func(r fhir.Resource) bool {
		for _, field := range refFields {
			if ref := r.Reference(field); ref != "" && strings.HasSuffix(ref, suffix) {
				return true
			}
		}
		return false
	}
}

// nameClause matches case-insensitive substrings of given or family names.
func nameClause(value string) func(fhir.Resource) bool {
	needle := strings.ToLower(value)
	return func(r fhir.Resource) bool {
		for _, name := range r.HumanNames() {
			if strings.Contains(strings.ToLower(name.Family), needle) {
				return true
			}
			for _, given := range name.Given {
				if strings.Contains(strings.ToLower(given), needle) {
					return true
				}
			}
		}
		return false
	}
}

// identifierClause matches an identifier value, or system and value when the
// query uses the compound system|value form.
func identifierClause(value string) func(fhir.Resource) bool {
	system, wantValue, compound := strings.Cut(value, "|")
	return func(r fhir.Resource) bool {
		for _, id := range r.Identifiers() {
			if compound {
				if id.System == system && id.Value == wantValue {
					return true
				}
			} else if id.Value == value {
				return true
			}
		}
		return false
	}
}

// categoryClause matches the first coding code of any category entry.
func categoryClause(value string) func(fhir.Resource) bool {
	return func(r fhir.Resource) bool {
		for _, code := range r.CategoryCodes() {
			if code == value {
				return true
			}
		}
		return false
	}
}
