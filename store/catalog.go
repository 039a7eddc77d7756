package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Catalog owns the mapping from resource type to its ordered backing files.
// Mapping entries may be plain file names or doublestar glob patterns
// resolved against the data directory; glob matches are appended in sorted
// order so file order stays stable across restarts.
type Catalog struct {
	dataDir  string
	mappings map[string][]string
}

// DefaultMappings is the MIMIC-IV on FHIR v2.1.0 file layout.
var DefaultMappings = map[string][]string{
	"Patient":      {"MimicPatient.ndjson"},
	"Organization": {"MimicOrganization.ndjson"},
	"Location":     {"MimicLocation.ndjson"},
	"Encounter":    {"MimicEncounter.ndjson", "MimicEncounterED.ndjson", "MimicEncounterICU.ndjson"},
	"Condition":    {"MimicCondition.ndjson", "MimicConditionED.ndjson"},
	"Observation": {
		"MimicObservationLabevents.ndjson",
		"MimicObservationChartevents.ndjson",
		"MimicObservationDatetimeevents.ndjson",
		"MimicObservationOutputevents.ndjson",
		"MimicObservationED.ndjson",
		"MimicObservationVitalSignsED.ndjson",
		"MimicObservationMicro*.ndjson",
	},
	"Procedure":                {"MimicProcedure.ndjson", "MimicProcedureED.ndjson", "MimicProcedureICU.ndjson"},
	"Medication":               {"MimicMedication.ndjson", "MimicMedicationMix.ndjson"},
	"MedicationRequest":        {"MimicMedicationRequest.ndjson"},
	"MedicationAdministration": {"MimicMedicationAdministration.ndjson", "MimicMedicationAdministrationICU.ndjson"},
	"MedicationDispense":       {"MimicMedicationDispense.ndjson", "MimicMedicationDispenseED.ndjson"},
	"MedicationStatement":      {"MimicMedicationStatementED.ndjson"},
	"Specimen":                 {"MimicSpecimen.ndjson", "MimicSpecimenLab.ndjson"},
}

// NewCatalog creates a catalog over the given data directory.
// A nil mappings argument selects DefaultMappings.
func NewCatalog(dataDir string, mappings map[string][]string) *Catalog {
	if mappings == nil {
		mappings = DefaultMappings
	}
	return &Catalog{dataDir: dataDir, mappings: mappings}
}

// DataDir returns the configured data directory.
func (c *Catalog) DataDir() string {
	return c.dataDir
}

// Contains reports whether the resource type is known to the catalog.
func (c *Catalog) Contains(resourceType string) bool {
	_, ok := c.mappings[resourceType]
	return ok
}

// Types returns all known resource types in sorted order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.mappings))
	for t := range c.mappings {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Files resolves the ordered absolute backing file paths for a resource type.
// Glob entries expand against the data directory; entries that match nothing
// (or name files absent from disk) are kept, since a missing backing file
// simply contributes zero resources.
func (c *Catalog) Files(resourceType string) ([]string, error) {
	entries, ok := c.mappings[resourceType]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	var paths []string
	for _, entry := range entries {
		if !containsGlobMeta(entry) {
			paths = append(paths, filepath.Join(c.dataDir, entry))
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(c.dataDir), entry)
		if err != nil {
			return nil, fmt.Errorf("resolving pattern %q: %w", entry, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			paths = append(paths, filepath.Join(c.dataDir, match))
		}
	}
	return paths, nil
}

// AllFiles resolves the backing files of every type, deduplicated and sorted.
func (c *Catalog) AllFiles() []string {
	seen := make(map[string]struct{})
	for _, resourceType := range c.Types() {
		paths, err := c.Files(resourceType)
		if err != nil {
			continue
		}
		for _, path := range paths {
			seen[path] = struct{}{}
		}
	}
	all := make([]string, 0, len(seen))
	for path := range seen {
		all = append(all, path)
	}
	sort.Strings(all)
	return all
}

func containsGlobMeta(entry string) bool {
	for _, r := range entry {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
