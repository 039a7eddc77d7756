package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pathpilot/fhirserve/search"
)

// ReadArgs defines the input parameters for the fhir_read tool.
type ReadArgs struct {
	ResourceType string `json:"resourceType" jsonschema:"FHIR resource type (e.g. Patient)"`
	ID           string `json:"id" jsonschema:"Logical id of the resource"`
}

// ReadHandler holds the dependencies for the read tool.
type ReadHandler struct {
	Engine *search.Engine
	Logger *slog.Logger
}

// Handle processes a fhir_read request.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.ResourceType == "" || args.ID == "" {
		h.Logger.Warn("fhir_read called with missing arguments")
		return errorResult("Error: resourceType and id parameters are required"), nil, nil
	}

	resource, err := h.Engine.Read(ctx, args.ResourceType, args.ID)
	if err != nil {
		h.Logger.Info("fhir_read failed", "resourceType", args.ResourceType, "id", args.ID, "error", err)
		return errorResult(fmt.Sprintf("Read error: %v", err)), nil, nil
	}

	h.Logger.Info("fhir_read",
		"resourceType", args.ResourceType,
		"id", args.ID,
		"elapsed", time.Since(start),
	)

	output, err := json.MarshalIndent(resource, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Encoding error: %v", err)), nil, nil
	}
	return textResult(string(output)), nil, nil
}
