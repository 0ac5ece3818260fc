package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/henk"
	"github.com/Laisky/henk-fabric/library/log"
)

type stubTurnHandler struct {
	sessionID string
	query     string
	hints     fabric.Hints
	action    henk.NextAction
	err       error
}

func (s *stubTurnHandler) HandleTurn(_ context.Context, sessionID, query string, hints fabric.Hints, _ ...henk.TurnOption) (henk.NextAction, error) {
	s.sessionID = sessionID
	s.query = query
	s.hints = hints
	return s.action, s.err
}

type stubFabricSearcher struct {
	ranked   []fabric.ScoredFabric
	err      error
	criteria fabric.FabricSearchCriteria
	topK     int
}

func (s *stubFabricSearcher) Search(_ context.Context, criteria fabric.FabricSearchCriteria, topK int) ([]fabric.ScoredFabric, error) {
	s.criteria = criteria
	s.topK = topK
	return s.ranked, s.err
}

type stubFabricLookup struct {
	records map[string]fabric.FabricRecord
	err     error
}

func (s *stubFabricLookup) GetFabric(_ context.Context, code string) (*fabric.FabricRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[code]
	if !ok {
		return nil, fabric.NewError(fabric.ErrCodeFabricNotFound, "fabric "+code+" not found", false)
	}
	return &record, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return textContent.Text
}

func TestSuggestFabricsPassesHintsAndReturnsAction(t *testing.T) {
	t.Parallel()

	advisor := &stubTurnHandler{action: henk.NoMatches{Filters: []string{}, Message: henk.MessageNoMatches}}
	tool, err := NewSuggestFabricsTool(advisor, log.Logger.Named("test"))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{
		"session_id":    "customer-42",
		"query":         "navy suit",
		"colors":        []any{"navy"},
		"weight_max":    float64(260),
		"in_stock_only": true,
		"replace":       []any{"colors"},
		"top_k":         float64(5),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.Equal(t, "customer-42", advisor.sessionID)
	require.Equal(t, "navy suit", advisor.query)
	require.Equal(t, []string{"navy"}, advisor.hints.Colors)
	require.Equal(t, 260, advisor.hints.WeightMax)
	require.NotNil(t, advisor.hints.InStockOnly)
	require.True(t, *advisor.hints.InStockOnly)
	require.Equal(t, []string{"colors"}, advisor.hints.Replace)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Equal(t, "customer-42", payload["session_id"])
	action, ok := payload["action"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "no_matches", action["kind"])
}

func TestSuggestFabricsGeneratesSessionID(t *testing.T) {
	t.Parallel()

	advisor := &stubTurnHandler{action: henk.SearchUnavailable{Message: henk.MessageSearchUnavailable, Retryable: true}}
	tool, err := NewSuggestFabricsTool(advisor, log.Logger.Named("test"))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{"query": "grey"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	_, err = uuid.Parse(advisor.sessionID)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Equal(t, advisor.sessionID, payload["session_id"])
}

func TestSuggestFabricsRejectsMalformedArguments(t *testing.T) {
	t.Parallel()

	advisor := &stubTurnHandler{}
	tool, err := NewSuggestFabricsTool(advisor, log.Logger.Named("test"))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{"colors": "navy"}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, messageInvalidArguments, resultText(t, result))
	require.Empty(t, advisor.sessionID)
}

func TestSuggestFabricsHidesInternalErrors(t *testing.T) {
	t.Parallel()

	advisor := &stubTurnHandler{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
	tool, err := NewSuggestFabricsTool(advisor, log.Logger.Named("test"))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{"session_id": "s"}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, messageInternal, resultText(t, result))
}

func TestSearchFabricsIsStateless(t *testing.T) {
	t.Parallel()

	searcher := &stubFabricSearcher{ranked: []fabric.ScoredFabric{
		{Fabric: fabric.FabricRecord{FabricCode: "MID", PriceCategory: "4"}, SimilarityScore: 0.9},
		{Fabric: fabric.FabricRecord{FabricCode: "LUX", PriceCategory: "8"}, SimilarityScore: 0.8},
	}}
	tool, err := NewSearchFabricsTool(
		fabric.NewCriteriaBuilder(fabric.DefaultExclusionPolicy(), 0),
		searcher,
		fabric.PairSelector{},
		log.Logger.Named("test"),
	)
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{
		"query":  "dunkelblauer Anzug",
		"top_k":  float64(3),
		"season": "summer",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, 3, searcher.topK)
	require.Equal(t, fabric.GarmentSuit, searcher.criteria.GarmentType)
	require.Equal(t, fabric.SeasonSummer, searcher.criteria.Season)
	require.Contains(t, searcher.criteria.ExcludedMaterials, "polyurethane")

	var payload struct {
		Ranked []fabric.ScoredFabric       `json:"ranked"`
		Pair   fabric.FabricSuggestionPair `json:"pair"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Len(t, payload.Ranked, 2)
	require.Equal(t, "MID", payload.Pair.MidTier.Fabric.FabricCode)
	require.Equal(t, "LUX", payload.Pair.LuxuryTier.Fabric.FabricCode)
}

func TestSearchFabricsMapsUnavailable(t *testing.T) {
	t.Parallel()

	searcher := &stubFabricSearcher{err: fabric.NewError(fabric.ErrCodeEmbeddingUnavailable, "openai: 503 upstream", true)}
	tool, err := NewSearchFabricsTool(
		fabric.NewCriteriaBuilder(fabric.DefaultExclusionPolicy(), 0),
		searcher,
		fabric.PairSelector{},
		log.Logger.Named("test"),
	)
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{"query": "grey"}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Equal(t, "EMBEDDING_UNAVAILABLE", payload["code"])
	require.Equal(t, true, payload["retryable"])
	require.NotContains(t, payload["message"], "openai")
}

func TestGetFabric(t *testing.T) {
	t.Parallel()

	lookup := &stubFabricLookup{records: map[string]fabric.FabricRecord{
		"34C4054": {FabricCode: "34C4054", Name: "Navy Twill", PriceCategory: "7"},
	}}
	tool, err := NewGetFabricTool(lookup, fabric.TierScale{}, log.Logger.Named("test"))
	require.NoError(t, err)

	result, err := tool.Handle(context.Background(), callRequest(map[string]any{"fabric_code": " 34C4054 "}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload struct {
		Fabric    fabric.FabricRecord `json:"fabric"`
		PriceTier fabric.PriceTier    `json:"price_tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	require.Equal(t, "Navy Twill", payload.Fabric.Name)
	require.Equal(t, fabric.TierLuxury, payload.PriceTier)

	result, err = tool.Handle(context.Background(), callRequest(map[string]any{"fabric_code": "NOPE"}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "FABRIC_NOT_FOUND")

	result, err = tool.Handle(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestFabricToolDefinitions(t *testing.T) {
	t.Parallel()

	suggest, err := NewSuggestFabricsTool(&stubTurnHandler{}, log.Logger.Named("test"))
	require.NoError(t, err)
	search, err := NewSearchFabricsTool(fabric.NewCriteriaBuilder(fabric.DefaultExclusionPolicy(), 0), &stubFabricSearcher{}, fabric.PairSelector{}, log.Logger.Named("test"))
	require.NoError(t, err)
	get, err := NewGetFabricTool(&stubFabricLookup{}, fabric.TierScale{}, log.Logger.Named("test"))
	require.NoError(t, err)

	for _, tool := range []Tool{suggest, search, get} {
		definition := tool.Definition()
		require.NotEmpty(t, definition.Name)
		require.NotEmpty(t, definition.Description)
	}

	colors, ok := suggest.Definition().InputSchema.Properties["colors"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "array", colors["type"])
	require.Contains(t, colors, "items")
	require.Contains(t, get.Definition().InputSchema.Required, "fabric_code")

	_, err = NewSuggestFabricsTool(nil, log.Logger)
	require.Error(t, err)
}
