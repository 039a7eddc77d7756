package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/tools"
)

// Setup creates and configures the MCP server with all tool registrations.
// The MCP transport exposes the same engine as the HTTP transport, for
// clients that consume the dataset through tool calls instead of REST.
func Setup(
	searchHandler *tools.SearchHandler,
	readHandler *tools.ReadHandler,
	statusHandler *tools.StatusHandler,
	clearCacheHandler *tools.ClearCacheHandler,
) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fhirserve",
			Version: "2.0.0",
		},
		&mcp.ServerOptions{
			Instructions: `This server answers FHIR R4 search and read operations over the MIMIC-IV
Clinical Database Demo on FHIR. Results are served from line-delimited files
behind an in-memory result cache.

- Use fhir_search for searchset queries (supports _id, _count, _since,
  _summary=count plus per-type parameters like subject, category, name).
- Use fhir_read to fetch one resource by type and id.
- Use fhir_status for catalog and cache statistics.
- Use fhir_clear_cache to force the next queries to re-scan the files.`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "fhir_search",
		Description: `Execute a FHIR search over a resource type and return the searchset Bundle as JSON.

Parameters are regular FHIR search parameters, e.g.:
  - {"subject": "Patient/abc123"} - all records about one patient
  - {"category": "laboratory", "_count": "20"} - first 20 lab observations
  - {"_summary": "count"} - total only, no entries`,
	}, searchHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "fhir_read",
		Description: `Read a single FHIR resource by type and logical id. Returns the resource as JSON.`,
	}, readHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "fhir_status",
		Description: "Show server status: data directory, resource types, cache statistics, memory usage, and uptime.",
	}, statusHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "fhir_clear_cache",
		Description: "Clear the resource and bundle caches and the line count index. The next queries re-scan the data files.",
	}, clearCacheHandler.Handle)

	return mcpServer
}
