package mcp

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	srv "github.com/mark3labs/mcp-go/server"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/mcp/tools"
	"github.com/Laisky/henk-fabric/library/log"
)

const serverInstructions = `Use suggest_fabrics on every customer turn that mentions fabric preferences.
Pass the same session_id for the whole conversation so remembered colors, materials and exclusions carry over.
Show the customer exactly the returned pair. When one slot is empty, read the returned message instead of inventing a fabric.
Use search_fabrics for one-off lookups and get_fabric for the details of a single fabric code.`

// Deps are the domain services the MCP tools call into.
type Deps struct {
	Advisor  tools.TurnHandler
	Searcher tools.FabricSearcher
	Builder  *fabric.CriteriaBuilder
	Catalog  tools.FabricLookup
	Scale    fabric.TierScale
}

// Server wraps the MCP server state for the HTTP transport.
type Server struct {
	handler http.Handler
	logger  logSDK.Logger
	tools   []string
}

// NewServer constructs a remote MCP server exposing the enabled fabric tools under a single handler.
func NewServer(deps Deps, settings ToolsSettings, logger logSDK.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Logger
	}

	var registered []tools.Tool
	if settings.SuggestFabricsEnabled && deps.Advisor != nil {
		tool, err := tools.NewSuggestFabricsTool(deps.Advisor, logger.Named("suggest_fabrics"))
		if err != nil {
			return nil, errors.Wrap(err, "new suggest_fabrics tool")
		}
		registered = append(registered, tool)
	}
	if settings.SearchFabricsEnabled && deps.Searcher != nil && deps.Builder != nil {
		tool, err := tools.NewSearchFabricsTool(deps.Builder, deps.Searcher, fabric.PairSelector{Scale: deps.Scale}, logger.Named("search_fabrics"))
		if err != nil {
			return nil, errors.Wrap(err, "new search_fabrics tool")
		}
		registered = append(registered, tool)
	}
	if settings.GetFabricEnabled && deps.Catalog != nil {
		tool, err := tools.NewGetFabricTool(deps.Catalog, deps.Scale, logger.Named("get_fabric"))
		if err != nil {
			return nil, errors.Wrap(err, "new get_fabric tool")
		}
		registered = append(registered, tool)
	}
	if len(registered) == 0 {
		return nil, errors.New("at least one MCP tool must be enabled")
	}

	mcpServer := srv.NewMCPServer(
		"henk-fabric",
		"1.0.0",
		srv.WithToolCapabilities(true),
		srv.WithInstructions(serverInstructions),
		srv.WithRecovery(),
		srv.WithHooks(newMCPHooks(logger.Named("mcp_hooks"))),
	)

	s := &Server{logger: logger.Named("mcp")}
	for _, tool := range registered {
		definition := tool.Definition()
		mcpServer.AddTool(definition, tool.Handle)
		s.tools = append(s.tools, definition.Name)
	}

	var handler http.Handler = srv.NewStreamableHTTPServer(mcpServer)
	if settings.HTTPDebugLog {
		handler = withHTTPLogging(handler, logger.Named("mcp_http"))
	}
	s.handler = handler

	s.logger.Info("mcp server ready", zap.Strings("tools", s.tools))
	return s, nil
}

// Handler returns the HTTP handler that should be mounted to serve MCP traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Tools lists the names of the registered tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}
