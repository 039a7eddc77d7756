package store

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Catalog_FilesInConfiguredOrder(t *testing.T) {
	c := NewCatalog("/data", map[string][]string{
		"Encounter": {"enc.ndjson", "enc_ed.ndjson", "enc_icu.ndjson"},
	})
	paths, err := c.Files("Encounter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d", len(paths))
	}
	if filepath.Base(paths[0]) != "enc.ndjson" || filepath.Base(paths[2]) != "enc_icu.ndjson" {
		t.Errorf("expected configured order, got %v", paths)
	}
}

func Test_Catalog_GlobEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ObsMicroOrg.ndjson", "ObsMicroTest.ndjson", "ObsLab.ndjson"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	c := NewCatalog(dir, map[string][]string{
		"Observation": {"ObsLab.ndjson", "ObsMicro*.ndjson"},
	})
	paths, err := c.Files("Observation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d: %v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "ObsLab.ndjson" {
		t.Errorf("expected literal entry first, got %v", paths)
	}
	if filepath.Base(paths[1]) != "ObsMicroOrg.ndjson" || filepath.Base(paths[2]) != "ObsMicroTest.ndjson" {
		t.Errorf("expected glob matches in sorted order, got %v", paths)
	}
}

func Test_Catalog_UnknownType(t *testing.T) {
	c := NewCatalog("/data", map[string][]string{"Patient": {"p.ndjson"}})
	if _, err := c.Files("Device"); err == nil {
		t.Error("expected error for unknown type")
	}
	if c.Contains("Device") {
		t.Error("expected Contains=false for unknown type")
	}
	if !c.Contains("Patient") {
		t.Error("expected Contains=true for known type")
	}
}

func Test_Catalog_TypesSorted(t *testing.T) {
	c := NewCatalog("/data", nil)
	types := c.Types()
	if len(types) == 0 {
		t.Fatal("expected default mappings to define types")
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Errorf("expected sorted types, got %v", types)
			break
		}
	}
	found := false
	for _, resourceType := range types {
		if resourceType == "Patient" {
			found = true
		}
	}
	if !found {
		t.Error("expected default mappings to include Patient")
	}
}

func Test_Catalog_AllFilesDeduplicated(t *testing.T) {
	c := NewCatalog("/data", map[string][]string{
		"A": {"shared.ndjson", "a.ndjson"},
		"B": {"shared.ndjson"},
	})
	all := c.AllFiles()
	if len(all) != 2 {
		t.Errorf("expected 2 unique files, got %v", all)
	}
}
