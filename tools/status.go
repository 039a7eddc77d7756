package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/cache"
	"github.com/pathpilot/fhirserve/store"
)

// StatusArgs defines the input parameters for the fhir_status tool (none required).
type StatusArgs struct{}

// StatusHandler holds the dependencies for the status tool.
type StatusHandler struct {
	Catalog   *store.Catalog
	Cache     *cache.Cache
	Lines     *store.LineCountIndex
	StartTime time.Time
	Logger    *slog.Logger
}

// Handle processes a fhir_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var builder strings.Builder

	types := h.Catalog.Types()
	stats := h.Cache.Stats()
	uptime := time.Since(h.StartTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("fhir_status",
		"types", len(types),
		"countedFiles", h.Lines.Len(),
		"memory", memStats.Alloc,
		"uptime", uptime,
	)

	builder.WriteString("=== fhirserve Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Data directory: %s\n", h.Catalog.DataDir()))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Resource types: %d\n", len(types)))
	builder.WriteString(fmt.Sprintf("Backing files: %d (%d counted)\n", len(h.Catalog.AllFiles()), h.Lines.Len()))
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		formatFileSize(int64(memStats.Alloc)),
		formatFileSize(int64(memStats.HeapAlloc)),
	))

	builder.WriteString("\nCache:\n")
	builder.WriteString(fmt.Sprintf("  resources: %d entries, %d hits, %d misses\n",
		stats.Resources.Entries, stats.Resources.Hits, stats.Resources.Misses))
	builder.WriteString(fmt.Sprintf("  bundles:   %d entries, %d hits, %d misses\n",
		stats.Bundles.Entries, stats.Bundles.Hits, stats.Bundles.Misses))

	builder.WriteString("\nResource types:\n")
	for _, resourceType := range types {
		paths, err := h.Catalog.Files(resourceType)
		if err != nil {
			continue
		}
		builder.WriteString(fmt.Sprintf("  %-26s %d files\n", resourceType, len(paths)))
	}

	return textResult(builder.String()), nil, nil
}
