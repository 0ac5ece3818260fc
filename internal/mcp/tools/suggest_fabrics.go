package tools

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/henk"
)

const maxSessionIDLen = 128

// suggestFabricsRequest is the argument payload of suggest_fabrics.
type suggestFabricsRequest struct {
	fabric.Hints
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	StartOver bool   `json:"start_over"`
}

// suggestFabricsResponse wraps the next action with the session the memory lives under.
type suggestFabricsResponse struct {
	SessionID string          `json:"session_id"`
	Action    henk.NextAction `json:"action"`
}

// SuggestFabricsTool implements the suggest_fabrics MCP tool.
type SuggestFabricsTool struct {
	advisor TurnHandler
	logger  logSDK.Logger
}

// NewSuggestFabricsTool constructs a SuggestFabricsTool.
func NewSuggestFabricsTool(advisor TurnHandler, logger logSDK.Logger) (*SuggestFabricsTool, error) {
	if advisor == nil {
		return nil, errors.New("advisor is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &SuggestFabricsTool{advisor: advisor, logger: logger}, nil
}

// Definition returns the MCP metadata for suggest_fabrics.
func (t *SuggestFabricsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"suggest_fabrics",
		mcp.WithDescription("Remember the customer's fabric preferences for this session and suggest one mid-tier and one luxury fabric."),
		mcp.WithString("session_id", mcp.Description("Conversation id. A new one is generated and returned when omitted.")),
		mcp.WithString("query", mcp.Description("The customer's latest statement, German or English.")),
		mcp.WithArray("colors", mcp.Description("Colors extracted from the statement."), mcp.Items(stringItemSchema)),
		mcp.WithArray("patterns", mcp.Description("Patterns extracted from the statement."), mcp.Items(stringItemSchema)),
		mcp.WithArray("materials", mcp.Description("Materials extracted from the statement."), mcp.Items(stringItemSchema)),
		mcp.WithString("garment_type", mcp.Description("suit, jacket, trousers, vest, coat or shirt.")),
		mcp.WithString("occasion", mcp.Description("Occasion such as wedding or business.")),
		mcp.WithString("season", mcp.Description("summer, winter, wedding or 4season.")),
		mcp.WithNumber("weight_max", mcp.Description("Maximum fabric weight in g/m².")),
		mcp.WithBoolean("in_stock_only", mcp.Description("Only suggest fabrics that can be ordered now.")),
		mcp.WithArray("replace", mcp.Description("Fields whose remembered values are replaced instead of merged: colors, patterns, materials."), mcp.Items(stringItemSchema)),
		mcp.WithNumber("top_k", mcp.Description("How many ranked fabrics to consider.")),
		mcp.WithBoolean("start_over", mcp.Description("Forget everything remembered for this session before applying the statement.")),
		mcp.WithIdempotentHintAnnotation(false),
	)
}

// Handle executes the suggest_fabrics tool logic.
func (t *SuggestFabricsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var request suggestFabricsRequest
	if err := decodeArguments(req, &request); err != nil {
		return mcp.NewToolResultError(messageInvalidArguments), nil
	}

	request.SessionID = strings.TrimSpace(request.SessionID)
	if request.SessionID == "" {
		request.SessionID = gutils.UUID7()
	}
	if len(request.SessionID) > maxSessionIDLen {
		return mcp.NewToolResultError("session_id is too long"), nil
	}

	logger := loggerFromContext(ctx, t.logger).With(zap.String("session_id", request.SessionID))
	action, err := t.advisor.HandleTurn(ctx, request.SessionID, request.Query, request.Hints,
		henk.WithTopK(request.TopK),
		henk.WithStartOver(request.StartOver),
	)
	if err != nil {
		logger.Warn("suggest_fabrics turn failed", zap.Error(err))
		return toolErrorFromErr(err), nil
	}

	toolResult, err := mcp.NewToolResultJSON(suggestFabricsResponse{
		SessionID: request.SessionID,
		Action:    action,
	})
	if err != nil {
		logger.Error("encode suggest_fabrics response", zap.Error(err))
		return mcp.NewToolResultError("failed to encode response"), nil
	}
	return toolResult, nil
}
