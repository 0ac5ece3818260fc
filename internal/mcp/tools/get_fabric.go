package tools

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/henk-fabric/internal/fabric"
)

// GetFabricTool implements the get_fabric MCP tool.
type GetFabricTool struct {
	catalog FabricLookup
	scale   fabric.TierScale
	logger  logSDK.Logger
}

// NewGetFabricTool constructs a GetFabricTool.
func NewGetFabricTool(catalog FabricLookup, scale fabric.TierScale, logger logSDK.Logger) (*GetFabricTool, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if scale == (fabric.TierScale{}) {
		scale = fabric.DefaultTierScale
	}
	return &GetFabricTool{catalog: catalog, scale: scale, logger: logger}, nil
}

// Definition returns the MCP metadata for get_fabric.
func (t *GetFabricTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"get_fabric",
		mcp.WithDescription("Look up one fabric by its supplier fabric code."),
		mcp.WithString("fabric_code", mcp.Required(), mcp.Description("Fabric code such as 34C4054.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle executes the get_fabric tool logic.
func (t *GetFabricTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("fabric_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return mcp.NewToolResultError("fabric_code cannot be empty"), nil
	}

	record, err := t.catalog.GetFabric(ctx, code)
	if err != nil {
		if !fabric.IsCode(err, fabric.ErrCodeFabricNotFound) {
			loggerFromContext(ctx, t.logger).Warn("get_fabric failed",
				zap.String("fabric_code", code), zap.Error(err))
		}
		return toolErrorFromErr(err), nil
	}

	toolResult, err := mcp.NewToolResultJSON(map[string]any{
		"fabric":     record,
		"price_tier": t.scale.Classify(record.PriceCategory),
	})
	if err != nil {
		loggerFromContext(ctx, t.logger).Error("encode get_fabric response", zap.Error(err))
		return mcp.NewToolResultError("failed to encode response"), nil
	}
	return toolResult, nil
}
