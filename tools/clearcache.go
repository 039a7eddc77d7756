package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/store"
)

// ClearCacheArgs defines the input parameters for the fhir_clear_cache tool.
type ClearCacheArgs struct{}

// ClearCacheHandler holds the dependencies for the clear-cache tool.
type ClearCacheHandler struct {
	Cache  *cache.Cache
	Lines  *store.LineCountIndex
	Logger *slog.Logger
}

// Handle processes a fhir_clear_cache request.
func (h *ClearCacheHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ClearCacheArgs) (*mcp.CallToolResult, any, error) {
	stats := h.Cache.Stats()
	dropped := stats.Resources.Entries + stats.Bundles.Entries
	counted := h.Lines.Len()

	h.Cache.Clear()
	h.Lines.Clear()

	h.Logger.Info("fhir_clear_cache", "droppedEntries", dropped, "droppedCounts", counted)

	return textResult(fmt.Sprintf("cleared: %d cache entries, %d file counts", dropped, counted)), nil, nil
}
