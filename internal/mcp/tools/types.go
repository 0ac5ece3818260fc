package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/henk"
)

// Tool exposes the capabilities required by the MCP server registration lifecycle.
type Tool interface {
	Definition() mcp.Tool
	Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// TurnHandler runs one advisor turn. *henk.Advisor satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, query string, hints fabric.Hints, opts ...henk.TurnOption) (henk.NextAction, error)
}

// FabricSearcher ranks fabrics for criteria. *fabric.Engine satisfies it.
type FabricSearcher interface {
	Search(ctx context.Context, criteria fabric.FabricSearchCriteria, topK int) ([]fabric.ScoredFabric, error)
}

// FabricLookup fetches a single fabric. *fabric.GormCatalog satisfies it.
type FabricLookup interface {
	GetFabric(ctx context.Context, code string) (*fabric.FabricRecord, error)
}
