package tools

import (
	"context"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/henk-fabric/internal/fabric"
)

type searchFabricsRequest struct {
	fabric.Hints
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchFabricsResponse struct {
	Criteria fabric.FabricSearchCriteria `json:"criteria"`
	Ranked   []fabric.ScoredFabric       `json:"ranked"`
	Pair     fabric.FabricSuggestionPair `json:"pair"`
}

// SearchFabricsTool implements the stateless search_fabrics MCP tool.
type SearchFabricsTool struct {
	builder  *fabric.CriteriaBuilder
	searcher FabricSearcher
	selector fabric.PairSelector
	logger   logSDK.Logger
}

// NewSearchFabricsTool constructs a SearchFabricsTool.
func NewSearchFabricsTool(builder *fabric.CriteriaBuilder, searcher FabricSearcher, selector fabric.PairSelector, logger logSDK.Logger) (*SearchFabricsTool, error) {
	if builder == nil {
		return nil, errors.New("criteria builder is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if selector.Scale == (fabric.TierScale{}) {
		selector.Scale = fabric.DefaultTierScale
	}
	return &SearchFabricsTool{
		builder:  builder,
		searcher: searcher,
		selector: selector,
		logger:   logger,
	}, nil
}

// Definition returns the MCP metadata for search_fabrics.
func (t *SearchFabricsTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"search_fabrics",
		mcp.WithDescription("Rank catalog fabrics for a one-off query without touching any session memory."),
		mcp.WithString("query", mcp.Description("Free text, German or English.")),
		mcp.WithArray("colors", mcp.Description("Colors to search for."), mcp.Items(stringItemSchema)),
		mcp.WithArray("patterns", mcp.Description("Patterns to search for."), mcp.Items(stringItemSchema)),
		mcp.WithArray("materials", mcp.Description("Materials to search for."), mcp.Items(stringItemSchema)),
		mcp.WithString("garment_type", mcp.Description("suit, jacket, trousers, vest, coat or shirt.")),
		mcp.WithString("occasion", mcp.Description("Occasion such as wedding or business.")),
		mcp.WithString("season", mcp.Description("summer, winter, wedding or 4season.")),
		mcp.WithNumber("weight_max", mcp.Description("Maximum fabric weight in g/m².")),
		mcp.WithBoolean("in_stock_only", mcp.Description("Only return fabrics that can be ordered now.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of ranked fabrics.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle executes the search_fabrics tool logic.
func (t *SearchFabricsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var request searchFabricsRequest
	if err := decodeArguments(req, &request); err != nil {
		return mcp.NewToolResultError(messageInvalidArguments), nil
	}

	criteria, _ := t.builder.Build(request.Query, request.Hints, nil)
	ranked, err := t.searcher.Search(ctx, criteria, request.TopK)
	if err != nil {
		loggerFromContext(ctx, t.logger).Warn("search_fabrics failed", zap.Error(err))
		return toolErrorFromErr(err), nil
	}

	toolResult, err := mcp.NewToolResultJSON(searchFabricsResponse{
		Criteria: criteria,
		Ranked:   ranked,
		Pair:     t.selector.Select(ranked),
	})
	if err != nil {
		loggerFromContext(ctx, t.logger).Error("encode search_fabrics response", zap.Error(err))
		return mcp.NewToolResultError("failed to encode response"), nil
	}
	return toolResult, nil
}
