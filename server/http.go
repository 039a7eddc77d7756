package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/fhir"
	"github.com/pathpilot/fhirserve/search"
	"github.com/pathpilot/fhirserve/store"
)

const fhirJSONContentType = "application/fhir+json"

// Server is the HTTP transport over the search engine.
type Server struct {
	Engine  *search.Engine
	Cache   *cache.Cache
	Catalog *store.Catalog
	Lines   *store.LineCountIndex
	// BaseURL overrides the base url used in bundle entry fullUrls.
	// Empty means derive it from each request.
	BaseURL string
	Version string
	Logger  *slog.Logger
}

// Handler builds the routing table with CORS and request logging applied.
// Literal routes are registered alongside the wildcard resource routes; the
// mux prefers the most specific pattern, so /metadata never resolves as a
// resource type.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /metadata", s.handleMetadata)
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /cache/clear", s.handleCacheClear)
	mux.HandleFunc("GET /{resourceType}", s.handleSearch)
	mux.HandleFunc("GET /{resourceType}/{id}", s.handleRead)
	return s.withRequestLog(withCORS(mux))
}

// baseURL returns the configured base url, or one derived from the request.
func (s *Server) baseURL(r *http.Request) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// handleSearch serves GET /{resourceType}.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	resourceType := r.PathValue("resourceType")
	baseURL := s.baseURL(r)
	selfURL := baseURL + r.URL.RequestURI()

	bundle, err := s.Engine.Search(r.Context(), resourceType, r.URL.Query(), baseURL, selfURL)
	if err != nil {
		s.writeError(w, r, resourceType, err)
		return
	}

	validator, err := cache.Validator(bundle)
	if err != nil {
		s.writeError(w, r, resourceType, err)
		return
	}
	if notModified(w, r, validator) {
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// handleRead serves GET /{resourceType}/{id}.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	resourceType := r.PathValue("resourceType")
	id := r.PathValue("id")

	resource, err := s.Engine.Read(r.Context(), resourceType, id)
	if err != nil {
		s.writeError(w, r, resourceType+"/"+id, err)
		return
	}

	// The record validator hashes the resource itself, never any
	// request-derived envelope around it.
	validator, err := cache.Validator(resource)
	if err != nil {
		s.writeError(w, r, resourceType+"/"+id, err)
		return
	}
	if updated, ok := resource.LastUpdated(); ok {
		w.Header().Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	}
	if notModified(w, r, validator) {
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

// handleRoot serves the server descriptor.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":               "fhirserve",
		"version":            s.Version,
		"fhirVersion":        "4.0.1",
		"availableResources": s.Catalog.Types(),
		"caching":            "in-memory cache enabled",
	})
}

// handleCacheStats serves the cache statistics admin endpoint.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Cache.Stats())
}

// handleCacheClear wipes both cache spaces and the line count index.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.Cache.Clear()
	s.Lines.Clear()
	s.Logger.Info("caches cleared by admin request")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// writeError maps engine errors onto OperationOutcome envelopes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, subject string, err error) {
	switch {
	case errors.Is(err, search.ErrUnknownResourceType):
		writeOutcome(w, http.StatusNotFound, "not-found", "Resource type not supported: "+subject)
	case errors.Is(err, search.ErrNotFound):
		writeOutcome(w, http.StatusNotFound, "not-found", subject+" not found")
	default:
		s.Logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeOutcome(w, http.StatusInternalServerError, "exception", err.Error())
	}
}

// notModified answers conditional requests: when the presented validator
// matches the freshly computed one, a 304 is written and the body skipped.
func notModified(w http.ResponseWriter, r *http.Request, validator string) bool {
	etag := `"` + validator + `"`
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" {
		if etagMatches(match, etag) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}

// etagMatches compares a client-presented If-None-Match value, tolerating
// weak markers and bare (unquoted) validators.
func etagMatches(presented, etag string) bool {
	for _, candidate := range splitETags(presented) {
		if candidate == "*" || candidate == etag || `"`+candidate+`"` == etag {
			return true
		}
	}
	return false
}

func splitETags(header string) []string {
	var tags []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "W/")
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", fhirJSONContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOutcome(w http.ResponseWriter, status int, code, diagnostics string) {
	writeJSON(w, status, fhir.NewOperationOutcome("error", code, diagnostics))
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// withRequestLog logs one line per request with a generated request id.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.Logger.Info("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"elapsed", time.Since(start),
		)
	})
}
