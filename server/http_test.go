package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/fhir"
	"github.com/pathpilot/fhirserve/search"
	"github.com/pathpilot/fhirserve/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	catalog := store.NewCatalog(dir, map[string][]string{
		"Patient":     {"patients.ndjson"},
		"Observation": {"obs.ndjson"},
	})
	lines := store.NewLineCountIndex()
	resultCache := cache.New(0, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := &search.Engine{
		Store:           store.NewStore(catalog, lines, logger),
		Catalog:         catalog,
		Cache:           resultCache,
		DefaultPageSize: 100,
		MaxPageSize:     1000,
		Logger:          logger,
	}
	return &Server{
		Engine:  engine,
		Cache:   resultCache,
		Catalog: catalog,
		Lines:   lines,
		Version: "test",
		Logger:  logger,
	}, dir
}

func writeRecords(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

func doRequest(t *testing.T, s *Server, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func Test_Server_Search(t *testing.T) {
	s, dir := newTestServer(t)
	writeRecords(t, dir, "patients.ndjson",
		`{"resourceType":"Patient","id":"p-1"}
{"resourceType":"Patient","id":"p-2"}
`)

	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Patient", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != fhirJSONContentType {
		t.Errorf("expected %s, got %s", fhirJSONContentType, got)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected an ETag on search responses")
	}

	var bundle fhir.Bundle
	if err := json.Unmarshal(w.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decoding bundle: %v", err)
	}
	if bundle.ResourceType != "Bundle" || bundle.Type != "searchset" {
		t.Errorf("unexpected bundle envelope %+v", bundle)
	}
	if bundle.Total != 2 || len(bundle.Entry) != 2 {
		t.Errorf("expected 2 matches, got total=%d entries=%d", bundle.Total, len(bundle.Entry))
	}
}

func Test_Server_SearchConditional(t *testing.T) {
	s, dir := newTestServer(t)
	writeRecords(t, dir, "patients.ndjson", `{"resourceType":"Patient","id":"p-1"}`+"\n")

	first := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Patient", nil))
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	r := httptest.NewRequest(http.MethodGet, "/Patient", nil)
	r.Header.Set("If-None-Match", etag)
	second := doRequest(t, s, r)
	if second.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Errorf("expected empty body on 304, got %q", second.Body.String())
	}

	// Weak markers and mismatches.
	r = httptest.NewRequest(http.MethodGet, "/Patient", nil)
	r.Header.Set("If-None-Match", "W/"+etag)
	if w := doRequest(t, s, r); w.Code != http.StatusNotModified {
		t.Errorf("expected weak validator to match, got %d", w.Code)
	}
	r = httptest.NewRequest(http.MethodGet, "/Patient", nil)
	r.Header.Set("If-None-Match", `"other"`)
	if w := doRequest(t, s, r); w.Code != http.StatusOK {
		t.Errorf("expected mismatch to serve the body, got %d", w.Code)
	}
}

func Test_Server_Read(t *testing.T) {
	s, dir := newTestServer(t)
	writeRecords(t, dir, "patients.ndjson",
		`{"resourceType":"Patient","id":"p-1","meta":{"lastUpdated":"2024-05-01T10:00:00Z"}}`+"\n")

	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Patient/p-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Last-Modified") == "" {
		t.Error("expected Last-Modified from meta.lastUpdated")
	}

	var resource map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resource); err != nil {
		t.Fatalf("decoding resource: %v", err)
	}
	if resource["id"] != "p-1" {
		t.Errorf("unexpected resource %v", resource)
	}
}

func Test_Server_ReadNotFound(t *testing.T) {
	s, dir := newTestServer(t)
	writeRecords(t, dir, "patients.ndjson", `{"resourceType":"Patient","id":"p-1"}`+"\n")

	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Patient/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decoding outcome: %v", err)
	}
	if outcome.ResourceType != "OperationOutcome" || outcome.Issue[0].Code != "not-found" {
		t.Errorf("unexpected outcome %+v", outcome)
	}
}

func Test_Server_UnknownResourceType(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Device", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unsupported type, got %d", w.Code)
	}
}

func Test_Server_Root(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var descriptor map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &descriptor); err != nil {
		t.Fatalf("decoding descriptor: %v", err)
	}
	if descriptor["fhirVersion"] != "4.0.1" {
		t.Errorf("unexpected descriptor %v", descriptor)
	}
}

func Test_Server_Metadata(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/metadata", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var statement fhir.CapabilityStatement
	if err := json.Unmarshal(w.Body.Bytes(), &statement); err != nil {
		t.Fatalf("decoding capability statement: %v", err)
	}
	if statement.ResourceType != "CapabilityStatement" {
		t.Errorf("unexpected resourceType %q", statement.ResourceType)
	}
	if len(statement.Rest) != 1 || len(statement.Rest[0].Resource) != 2 {
		t.Errorf("expected both catalog types in the statement, got %+v", statement.Rest)
	}
}

func Test_Server_CacheAdmin(t *testing.T) {
	s, dir := newTestServer(t)
	writeRecords(t, dir, "patients.ndjson", `{"resourceType":"Patient","id":"p-1"}`+"\n")

	doRequest(t, s, httptest.NewRequest(http.MethodGet, "/Patient", nil))

	w := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats cache.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Bundles.Entries != 1 {
		t.Errorf("expected one cached bundle, got %+v", stats)
	}

	w = doRequest(t, s, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := s.Cache.Stats(); got.Bundles.Entries != 0 {
		t.Errorf("expected empty cache after clear, got %+v", got)
	}
	if s.Lines.Len() != 0 {
		t.Errorf("expected line counts dropped, got %d entries", s.Lines.Len())
	}
}

func Test_Server_CORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, httptest.NewRequest(http.MethodOptions, "/Patient", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func Test_Server_etagMatches(t *testing.T) {
	etag := `"abc123"`
	cases := []struct {
		presented string
		want      bool
	}{
		{`"abc123"`, true},
		{`W/"abc123"`, true},
		{`abc123`, true},
		{`*`, true},
		{`"other", "abc123"`, true},
		{`"other"`, false},
		{``, false},
	}
	for _, tc := range cases {
		if got := etagMatches(tc.presented, etag); got != tc.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tc.presented, got, tc.want)
		}
	}
}
