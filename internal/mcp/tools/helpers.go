package tools

import (
	"context"
	"encoding/json"

	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/henk-fabric/internal/fabric"
)

const (
	messageInvalidArguments = "invalid arguments"
	messageInternal         = "internal error"
)

// loggerFromContext returns the request scoped logger when the HTTP layer attached one.
func loggerFromContext(ctx context.Context, fallback logSDK.Logger) logSDK.Logger {
	if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
		return ctxLogger
	}
	return fallback
}

// decodeArguments decodes tool arguments into a request DTO.
func decodeArguments(req mcp.CallToolRequest, out any) error {
	args := req.Params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// toolErrorResult builds a structured MCP error response.
func toolErrorResult(code fabric.ErrorCode, message string, retryable bool) *mcp.CallToolResult {
	payload := map[string]any{
		"code":      string(code),
		"message":   message,
		"retryable": retryable,
	}
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultError(message)
	}
	result.IsError = true
	return result
}

// toolErrorFromErr converts engine errors into tool responses without leaking causes.
func toolErrorFromErr(err error) *mcp.CallToolResult {
	typed, ok := fabric.AsError(err)
	if !ok {
		return mcp.NewToolResultError(messageInternal)
	}

	switch typed.Code {
	case fabric.ErrCodeInvalidCriteria, fabric.ErrCodeFabricNotFound:
		return toolErrorResult(typed.Code, typed.Message, typed.Retryable)
	default:
		return toolErrorResult(typed.Code, "fabric search is temporarily unavailable", typed.Retryable)
	}
}

// stringItemSchema is the items schema of string array arguments.
var stringItemSchema = map[string]any{"type": "string"}
