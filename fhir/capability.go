package fhir

// CapabilityStatement describes what the server supports (GET /metadata).
type CapabilityStatement struct {
	ResourceType string           `json:"resourceType"`
	Status       string           `json:"status"`
	Date         string           `json:"date"`
	Kind         string           `json:"kind"`
	FHIRVersion  string           `json:"fhirVersion"`
	Format       []string         `json:"format"`
	Rest         []CapabilityRest `json:"rest"`
}

// CapabilityRest is one rest mode block of a CapabilityStatement.
type CapabilityRest struct {
	Mode     string               `json:"mode"`
	Resource []CapabilityResource `json:"resource"`
}

// CapabilityResource describes the supported interactions and search
// parameters of one resource type.
type CapabilityResource struct {
	Type        string            `json:"type"`
	Interaction []CapabilityCode  `json:"interaction"`
	SearchParam []SearchParamDocs `json:"searchParam,omitempty"`
}

// CapabilityCode names a supported interaction (e.g. "read", "search-type").
type CapabilityCode struct {
	Code string `json:"code"`
}

// SearchParamDocs documents one supported search parameter.
type SearchParamDocs struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Documentation string `json:"documentation,omitempty"`
}
