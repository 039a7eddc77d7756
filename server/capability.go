package server

import (
	"net/http"
	"time"

	"github.com/pathpilot/fhirserve/fhir"
	"github.com/pathpilot/fhirserve/query"
)

// searchParamDocs documents the type-specific search parameters by name.
var searchParamDocs = map[string]fhir.SearchParamDocs{
	"name": {
		Name:          "name",
		Type:          "string",
		Documentation: "A server defined search that may match any of the string fields in the HumanName",
	},
	"identifier": {
		Name:          "identifier",
		Type:          "token",
		Documentation: "A patient identifier",
	},
	"subject": {
		Name:          "subject",
		Type:          "reference",
		Documentation: "The patient the record is about",
	},
	"category": {
		Name:          "category",
		Type:          "token",
		Documentation: "The classification of the type of record",
	},
}

// handleMetadata serves the CapabilityStatement.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var resources []fhir.CapabilityResource
	for _, resourceType := range s.Catalog.Types() {
		params := []fhir.SearchParamDocs{{
			Name:          query.ParamID,
			Type:          "token",
			Documentation: "Logical id of this artifact",
		}}
		for _, name := range query.SupportedParams(resourceType) {
			if docs, ok := searchParamDocs[name]; ok {
				params = append(params, docs)
			}
		}
		resources = append(resources, fhir.CapabilityResource{
			Type: resourceType,
			Interaction: []fhir.CapabilityCode{
				{Code: "read"},
				{Code: "search-type"},
			},
			SearchParam: params,
		})
	}

	writeJSON(w, http.StatusOK, fhir.CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format(time.RFC3339),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Rest: []fhir.CapabilityRest{{
			Mode:     "server",
			Resource: resources,
		}},
	})
}
