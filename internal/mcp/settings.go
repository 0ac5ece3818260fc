// Package mcp exposes the fabric advisor as MCP tools over streamable HTTP.
package mcp

import (
	gconfig "github.com/Laisky/go-config/v2"
)

// httpLogBodyLimit caps how much of each request and response body is logged.
const httpLogBodyLimit = 4096

// ToolsSettings captures runtime configuration for enabling or disabling individual MCP tools.
type ToolsSettings struct {
	SuggestFabricsEnabled bool
	SearchFabricsEnabled  bool
	GetFabricEnabled      bool
	// HTTPDebugLog logs request and response bodies of the MCP endpoint at debug level.
	HTTPDebugLog bool
}

// LoadToolsSettingsFromConfig reads the MCP tools configuration and returns a ToolsSettings instance.
// By default, all tools are enabled unless explicitly disabled in the configuration.
func LoadToolsSettingsFromConfig() ToolsSettings {
	return ToolsSettings{
		SuggestFabricsEnabled: boolFromConfig("settings.mcp.tools.suggest_fabrics.enabled", true),
		SearchFabricsEnabled:  boolFromConfig("settings.mcp.tools.search_fabrics.enabled", true),
		GetFabricEnabled:      boolFromConfig("settings.mcp.tools.get_fabric.enabled", true),
		HTTPDebugLog:          boolFromConfig("settings.mcp.http_debug_log", false),
	}
}

// boolFromConfig retrieves a boolean configuration value with a default fallback.
func boolFromConfig(key string, def bool) bool {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes", "Yes", "YES":
			return true
		case "false", "False", "FALSE", "0", "no", "No", "NO":
			return false
		default:
			return def
		}
	default:
		return def
	}
}
