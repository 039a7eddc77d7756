package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/search"
)

// SearchArgs defines the input parameters for the fhir_search tool.
type SearchArgs struct {
	ResourceType string            `json:"resourceType" jsonschema:"FHIR resource type to search (e.g. Patient, Observation)"`
	Parameters   map[string]string `json:"parameters,omitempty" jsonschema:"FHIR search parameters, e.g. subject, category, _count, _summary"`
}

// SearchHandler holds the dependencies for the search tool.
type SearchHandler struct {
	Engine  *search.Engine
	BaseURL string
	Logger  *slog.Logger
}

// Handle processes a fhir_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.ResourceType == "" {
		h.Logger.Warn("fhir_search called with empty resourceType")
		return errorResult("Error: resourceType parameter is required"), nil, nil
	}

	values := url.Values{}
	for key, value := range args.Parameters {
		values.Set(key, value)
	}
	selfURL := h.BaseURL + "/" + args.ResourceType
	if encoded := values.Encode(); encoded != "" {
		selfURL += "?" + encoded
	}

	bundle, err := h.Engine.Search(ctx, args.ResourceType, values, h.BaseURL, selfURL)
	if err != nil {
		h.Logger.Error("fhir_search failed", "resourceType", args.ResourceType, "error", err)
		return errorResult(fmt.Sprintf("Search error: %v", err)), nil, nil
	}

	h.Logger.Info("fhir_search",
		"resourceType", args.ResourceType,
		"total", bundle.Total,
		"page", len(bundle.Entry),
		"elapsed", time.Since(start),
	)

	output, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Encoding error: %v", err)), nil, nil
	}
	return textResult(string(output)), nil, nil
}

// errorResult builds an error tool result with a single text message.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}

// textResult builds a successful tool result with a single text message.
func textResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}
