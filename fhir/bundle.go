package fhir

import "fmt"

// Bundle is a FHIR R4 searchset bundle.
//
// Total is always the number of matches across all pages, independent of how
// many entries the current page carries.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        int           `json:"total"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleLink is a relation/url pair attached to a bundle.
type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntry wraps one resource of a searchset page.
type BundleEntry struct {
	FullURL  string      `json:"fullUrl"`
	Resource Resource    `json:"resource"`
	Search   EntrySearch `json:"search"`
}

// EntrySearch marks how an entry relates to the search ("match" for results).
type EntrySearch struct {
	Mode string `json:"mode"`
}

// NewSearchsetBundle assembles a searchset bundle from one page of resources.
// Each entry gets a fully qualified url (baseURL/resourceType/id) and is
// marked as a match. selfURL becomes the bundle's self link.
func NewSearchsetBundle(page []Resource, total int, resourceType, baseURL, selfURL string) *Bundle {
	entries := make([]BundleEntry, 0, len(page))
	for _, resource := range page {
		entries = append(entries, BundleEntry{
			FullURL:  fmt.Sprintf("%s/%s/%s", baseURL, resourceType, resource.ID()),
			Resource: resource,
			Search:   EntrySearch{Mode: "match"},
		})
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        total,
		Link:         []BundleLink{{Relation: "self", URL: selfURL}},
		Entry:        entries,
	}
}

// NewCountBundle assembles a searchset bundle carrying only the total.
// Used for _summary=count responses, which never include a page.
func NewCountBundle(total int, selfURL string) *Bundle {
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        total,
		Link:         []BundleLink{{Relation: "self", URL: selfURL}},
	}
}
