package fabric

import (
	"fmt"
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"
)

// Settings captures runtime configuration for fabric retrieval.
type Settings struct {
	TopKDefault   int
	TopKMax       int
	Oversample    int
	MinCandidates int

	EmbedTimeout   time.Duration
	CatalogTimeout time.Duration

	ExcludedMaterials []string
	TailoredGarments  []GarmentType
	TierScale         TierScale
	LightweightMaxGSM int

	CacheEnabled bool
	CacheTTL     time.Duration
	MemoryTTL    time.Duration

	// MemoryBackend is redis, database or local. Empty picks redis when configured, else database.
	MemoryBackend string

	EmbeddingModel      string
	EmbeddingDimensions int
	OpenAIBaseURL       string
	OpenAIAPIKey        string
	RateLimitRPS        float64
	RateLimitBurst      int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{}.Sanitize()
}

// LoadSettingsFromConfig reads the shared configuration and returns a sanitized Settings instance.
func LoadSettingsFromConfig() Settings {
	cfg := Settings{
		TopKDefault:   intFromConfig("settings.fabric.top_k_default", 10),
		TopKMax:       intFromConfig("settings.fabric.top_k_max", 50),
		Oversample:    intFromConfig("settings.fabric.oversample", 4),
		MinCandidates: intFromConfig("settings.fabric.min_candidates", 16),

		EmbedTimeout:   time.Duration(intFromConfig("settings.fabric.embed_timeout_ms", 5000)) * time.Millisecond,
		CatalogTimeout: time.Duration(intFromConfig("settings.fabric.catalog_timeout_ms", 5000)) * time.Millisecond,

		ExcludedMaterials: gconfig.Shared.GetStringSlice("settings.fabric.excluded_materials"),
		TierScale: TierScale{
			StandardMin: intFromConfig("settings.fabric.standard_min_category", DefaultTierScale.StandardMin),
			PremiumMin:  intFromConfig("settings.fabric.premium_min_category", DefaultTierScale.PremiumMin),
			LuxuryMin:   intFromConfig("settings.fabric.luxury_min_category", DefaultTierScale.LuxuryMin),
		},
		LightweightMaxGSM: intFromConfig("settings.fabric.lightweight_max_gsm", DefaultLightweightMaxGSM),

		CacheEnabled: gconfig.S.GetBool("settings.fabric.cache.enabled"),
		CacheTTL:     time.Duration(intFromConfig("settings.fabric.cache.ttl_seconds", 600)) * time.Second,
		MemoryTTL:    time.Duration(intFromConfig("settings.fabric.memory_ttl_seconds", 86400)) * time.Second,

		MemoryBackend: strings.ToLower(strings.TrimSpace(gconfig.Shared.GetString("settings.fabric.memory_backend"))),

		EmbeddingModel:      strings.TrimSpace(gconfig.S.GetString("settings.openai.embedding_model")),
		EmbeddingDimensions: intFromConfig("settings.openai.embedding_dimensions", 1536),
		OpenAIBaseURL:       strings.TrimSpace(gconfig.S.GetString("settings.openai.base_url")),
		OpenAIAPIKey:        strings.TrimSpace(gconfig.S.GetString("settings.openai.api_key")),
		RateLimitRPS:        floatFromConfig("settings.openai.rate_limit_rps", 5),
		RateLimitBurst:      intFromConfig("settings.openai.rate_limit_burst", 5),
	}
	for _, raw := range gconfig.Shared.GetStringSlice("settings.fabric.tailored_garments") {
		if garment, ok := ParseGarmentType(raw); ok {
			cfg.TailoredGarments = append(cfg.TailoredGarments, garment)
		}
	}

	return cfg.Sanitize()
}

// Sanitize replaces non-positive or inconsistent values with defaults.
func (s Settings) Sanitize() Settings {
	if s.TopKDefault <= 0 {
		s.TopKDefault = 10
	}
	if s.TopKMax <= 0 {
		s.TopKMax = 50
	}
	if s.TopKDefault > s.TopKMax {
		s.TopKDefault = s.TopKMax
	}
	if s.Oversample <= 0 {
		s.Oversample = 4
	}
	if s.MinCandidates <= 0 {
		s.MinCandidates = 16
	}
	if s.EmbedTimeout <= 0 {
		s.EmbedTimeout = 5 * time.Second
	}
	if s.CatalogTimeout <= 0 {
		s.CatalogTimeout = 5 * time.Second
	}
	if s.TierScale.StandardMin <= 0 || s.TierScale.PremiumMin <= s.TierScale.StandardMin ||
		s.TierScale.LuxuryMin <= s.TierScale.PremiumMin {
		s.TierScale = DefaultTierScale
	}
	if s.LightweightMaxGSM <= 0 {
		s.LightweightMaxGSM = DefaultLightweightMaxGSM
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 10 * time.Minute
	}
	if s.MemoryTTL <= 0 {
		s.MemoryTTL = 24 * time.Hour
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = "text-embedding-3-small"
	}
	if s.EmbeddingDimensions <= 0 {
		s.EmbeddingDimensions = 1536
	}
	if s.OpenAIBaseURL == "" {
		s.OpenAIBaseURL = "https://api.openai.com"
	}
	if s.RateLimitRPS <= 0 {
		s.RateLimitRPS = 5
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 5
	}
	return s
}

// ExclusionPolicy builds the garment to excluded-materials table from the settings.
func (s Settings) ExclusionPolicy() ExclusionPolicy {
	return NewExclusionPolicy(s.ExcludedMaterials, s.TailoredGarments)
}

// candidateLimit is how many chunks to fetch so enough distinct fabrics survive dedupe and filtering.
func (s Settings) candidateLimit(topK int) int {
	return max(s.MinCandidates, topK*s.Oversample)
}

func intFromConfig(key string, def int) int {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed int
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

func floatFromConfig(key string, def float64) float64 {
	value := gconfig.S.Get(key)
	switch v := value.(type) {
	case nil:
		return def
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return def
		}
		var parsed float64
		if _, err := fmt.Sscanf(trimmed, "%f", &parsed); err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
