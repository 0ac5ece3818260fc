package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateStartupConfigWithGetterEmpty verifies empty configuration passes validation.
func TestValidateStartupConfigWithGetterEmpty(t *testing.T) {
	err := validateStartupConfigWithGetter(newMapConfigGetter(map[string]any{}))
	require.NoError(t, err)
}

// TestValidateStartupConfigWithGetterInvalidBoolean verifies invalid boolean configuration fails validation.
func TestValidateStartupConfigWithGetterInvalidBoolean(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"mcp": map[string]any{
				"tools": map[string]any{
					"suggest_fabrics": map[string]any{
						"enabled": "not-a-bool",
					},
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.mcp.tools.suggest_fabrics.enabled")
}

func TestValidateStartupConfigWithGetterTopK(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"fabric": map[string]any{
				"top_k_default": 60,
				"top_k_max":     50,
				"oversample":    0,
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.fabric.top_k_default must be <= settings.fabric.top_k_max")
	require.Contains(t, err.Error(), "settings.fabric.oversample must be >= 1")
}

func TestValidateStartupConfigWithGetterMemoryBackend(t *testing.T) {
	for backend, ok := range map[string]bool{"redis": true, "Database": true, "local": true, "mongo": false} {
		cfg := map[string]any{
			"settings": map[string]any{
				"fabric": map[string]any{"memory_backend": backend},
			},
		}
		err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
		if ok {
			require.NoError(t, err, backend)
			continue
		}
		require.ErrorContains(t, err, "settings.fabric.memory_backend must be one of")
	}
}

func TestValidateStartupConfigWithGetterTierScale(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"fabric": map[string]any{
				"premium_min_category": 8,
			},
		},
	}
	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "price category thresholds must increase")

	cfg = map[string]any{
		"settings": map[string]any{
			"fabric": map[string]any{
				"luxury_min_category": 12,
			},
		},
	}
	err = validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.fabric.luxury_min_category must be within 1..9")
}

// TestValidateStartupConfigWithGetterValidConfig verifies a complete configuration passes validation.
func TestValidateStartupConfigWithGetterValidConfig(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"db": map[string]any{
				"redis": map[string]any{"db": 0},
			},
			"mcp": map[string]any{
				"http_debug_log": false,
				"tools": map[string]any{
					"suggest_fabrics": map[string]any{"enabled": true},
					"search_fabrics":  map[string]any{"enabled": "yes"},
					"get_fabric":      map[string]any{"enabled": 1},
				},
			},
			"fabric": map[string]any{
				"top_k_default":         10,
				"top_k_max":             50,
				"oversample":            4,
				"min_candidates":        16,
				"embed_timeout_ms":      5000,
				"catalog_timeout_ms":    "5000",
				"lightweight_max_gsm":   250,
				"standard_min_category": 3,
				"premium_min_category":  5,
				"luxury_min_category":   7,
				"cache": map[string]any{
					"enabled":     true,
					"ttl_seconds": 600,
				},
				"memory_ttl_seconds": 86400,
			},
			"openai": map[string]any{
				"base_url":             "https://api.openai.com",
				"embedding_model":      "text-embedding-3-small",
				"embedding_dimensions": 1536,
				"rate_limit_rps":       5.0,
				"rate_limit_burst":     5,
			},
		},
	}

	require.NoError(t, validateStartupConfigWithGetter(newMapConfigGetter(cfg)))
}

func TestValidateStartupConfigWithGetterInvalidOpenAI(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"openai": map[string]any{
				"base_url":       "api.openai.com",
				"rate_limit_rps": -1,
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.openai.base_url must be a valid absolute URL")
	require.Contains(t, err.Error(), "settings.openai.rate_limit_rps must be > 0")
}

// newMapConfigGetter builds a dotted-path getter for nested map-based test configuration.
// It accepts a nested map and returns a getter function compatible with validateStartupConfigWithGetter.
func newMapConfigGetter(root map[string]any) configGetter {
	return func(key string) any {
		if key == "" {
			return nil
		}

		parts := strings.Split(key, ".")
		var current any = root
		for _, part := range parts {
			nextMap, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			next, exists := nextMap[part]
			if !exists {
				return nil
			}
			current = next
		}

		return current
	}
}
