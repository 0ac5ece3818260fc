package cmd

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

// configGetter retrieves raw configuration values by dotted key path.
type configGetter func(key string) any

// validateStartupConfig validates startup configuration from the shared config source.
// It returns an error when any configured value is malformed or violates constraints.
func validateStartupConfig() error {
	return validateStartupConfigWithGetter(func(key string) any {
		return gconfig.S.Get(key)
	})
}

// validateStartupConfigWithGetter validates startup configuration via a key-value getter.
// It accepts a value getter and returns nil when all configured values are valid.
func validateStartupConfigWithGetter(get configGetter) error {
	if get == nil {
		return errors.New("config getter is nil")
	}

	validationErrs := make([]string, 0)

	validateRedisConfig(get, &validationErrs)
	validateMCPToolsConfig(get, &validationErrs)
	validateFabricConfig(get, &validationErrs)
	validateTierScaleConfig(get, &validationErrs)
	validateOpenAIConfig(get, &validationErrs)
	validateWebConfig(get, &validationErrs)

	if len(validationErrs) == 0 {
		return nil
	}

	return errors.Errorf("invalid configuration:\n - %s", strings.Join(validationErrs, "\n - "))
}

// validateRedisConfig validates redis-related startup configuration values.
func validateRedisConfig(get configGetter, errs *[]string) {
	validateOptionalIntMin(get, "settings.db.redis.db", 0, errs)
}

// validateMCPToolsConfig validates MCP tool toggles.
func validateMCPToolsConfig(get configGetter, errs *[]string) {
	keys := []string{
		"settings.mcp.tools.suggest_fabrics.enabled",
		"settings.mcp.tools.search_fabrics.enabled",
		"settings.mcp.tools.get_fabric.enabled",
		"settings.mcp.http_debug_log",
	}
	for _, key := range keys {
		validateOptionalBool(get, key, errs)
	}
}

// validateFabricConfig validates retrieval engine limits and timeouts.
func validateFabricConfig(get configGetter, errs *[]string) {
	for _, key := range []string{
		"settings.fabric.top_k_default",
		"settings.fabric.top_k_max",
		"settings.fabric.oversample",
		"settings.fabric.min_candidates",
		"settings.fabric.embed_timeout_ms",
		"settings.fabric.catalog_timeout_ms",
		"settings.fabric.lightweight_max_gsm",
		"settings.fabric.cache.ttl_seconds",
		"settings.fabric.memory_ttl_seconds",
	} {
		validateOptionalIntMin(get, key, 1, errs)
	}
	validateOptionalBool(get, "settings.fabric.cache.enabled", errs)

	if raw := get("settings.fabric.memory_backend"); raw != nil {
		backend, err := parseStrictString(raw)
		switch strings.ToLower(strings.TrimSpace(backend)) {
		case "", "redis", "database", "local":
			if err != nil {
				appendValidationError(errs, "settings.fabric.memory_backend must be a string")
			}
		default:
			appendValidationError(errs, "settings.fabric.memory_backend must be one of redis, database, local")
		}
	}

	topKDefault, okDefault := optionalInt(get, "settings.fabric.top_k_default")
	topKMax, okMax := optionalInt(get, "settings.fabric.top_k_max")
	if okDefault && okMax && topKDefault > topKMax {
		appendValidationError(errs, "settings.fabric.top_k_default must be <= settings.fabric.top_k_max")
	}
}

// validateTierScaleConfig validates the price category thresholds. They must rise
// from standard to premium to luxury within the supplier's 1-9 scale.
func validateTierScaleConfig(get configGetter, errs *[]string) {
	keys := []string{
		"settings.fabric.standard_min_category",
		"settings.fabric.premium_min_category",
		"settings.fabric.luxury_min_category",
	}
	defaults := []int{3, 5, 7}

	values := make([]int, len(keys))
	for i, key := range keys {
		values[i] = defaults[i]
		raw := get(key)
		if raw == nil {
			continue
		}
		value, err := parseStrictInt(raw)
		if err != nil {
			appendValidationError(errs, "%s must be an integer", key)
			return
		}
		if value < 1 || value > 9 {
			appendValidationError(errs, "%s must be within 1..9", key)
			return
		}
		values[i] = value
	}

	if !(values[0] < values[1] && values[1] < values[2]) {
		appendValidationError(errs, "price category thresholds must increase: standard < premium < luxury")
	}
}

// validateOpenAIConfig validates OpenAI-related endpoint and model configuration.
func validateOpenAIConfig(get configGetter, errs *[]string) {
	validateOptionalStringNonEmpty(get, "settings.openai.embedding_model", errs)
	validateOptionalURL(get, "settings.openai.base_url", errs)
	validateOptionalIntMin(get, "settings.openai.embedding_dimensions", 1, errs)
	validateOptionalFloatPositive(get, "settings.openai.rate_limit_rps", errs)
	validateOptionalIntMin(get, "settings.openai.rate_limit_burst", 1, errs)
}

// optionalInt returns the configured integer when key is present and well formed.
func optionalInt(get configGetter, key string) (int, bool) {
	raw := get(key)
	if raw == nil {
		return 0, false
	}
	value, err := parseStrictInt(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// validateWebConfig validates the HTTP request throttle.
func validateWebConfig(get configGetter, errs *[]string) {
	for _, key := range []string{
		"settings.web.rate_limit.total_rps",
		"settings.web.rate_limit.total_burst",
		"settings.web.rate_limit.client_rps",
		"settings.web.rate_limit.client_burst",
	} {
		validateOptionalFloatPositive(get, key, errs)
	}
}

// validateOptionalBool validates an optionally configured boolean key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalBool(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	if _, ok := parseStrictBool(raw); !ok {
		appendValidationError(errs, "%s must be a boolean", key)
	}
}

// validateOptionalIntMin validates an optionally configured integer key with a minimum constraint.
// It accepts a getter, the key, a minimum value, and an error collector pointer and appends validation errors.
func validateOptionalIntMin(get configGetter, key string, min int, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictInt(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be an integer", key)
		return
	}

	if value < min {
		appendValidationError(errs, "%s must be >= %d", key, min)
	}
}

// validateOptionalFloatPositive validates an optionally configured positive float key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalFloatPositive(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictFloat(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a float", key)
		return
	}

	if value <= 0 {
		appendValidationError(errs, "%s must be > 0", key)
	}
}

// validateOptionalURL validates an optionally configured absolute URL key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalURL(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string URL", key)
		return
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		appendValidationError(errs, "%s must not be empty", key)
		return
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		appendValidationError(errs, "%s must be a valid absolute URL", key)
	}
}

// validateOptionalStringNonEmpty validates an optionally configured non-empty string key.
// It accepts a getter, the key, and an error collector pointer and appends validation errors.
func validateOptionalStringNonEmpty(get configGetter, key string, errs *[]string) {
	raw := get(key)
	if raw == nil {
		return
	}

	value, parseErr := parseStrictString(raw)
	if parseErr != nil {
		appendValidationError(errs, "%s must be a string", key)
		return
	}

	if strings.TrimSpace(value) == "" {
		appendValidationError(errs, "%s must not be empty", key)
	}
}

// parseStrictBool parses a value as boolean using strict conversion rules.
// It accepts a raw value and returns the parsed boolean and whether parsing succeeded.
func parseStrictBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		if math.Trunc(v) != v {
			return false, false
		}
		return int64(v) != 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return false, false
		}
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

// parseStrictInt parses a value as a strict integer.
// It accepts a raw value and returns the parsed int and an error when parsing fails.
func parseStrictInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, errors.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty integer string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, errors.Wrap(err, "atoi")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported int type %T", value)
	}
}

// parseStrictFloat parses a value as a strict floating-point number.
// It accepts a raw value and returns the parsed float64 and an error when parsing fails.
func parseStrictFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, errors.New("empty float string")
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, errors.Wrap(err, "parse float")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported float type %T", value)
	}
}

// parseStrictString parses a value as a strict string.
func parseStrictString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.Errorf("unsupported string type %T", value)
	}
}

// appendValidationError appends a formatted validation error to the collector.
func appendValidationError(errs *[]string, format string, args ...any) {
	if errs == nil {
		return
	}
	*errs = append(*errs, fmt.Sprintf(format, args...))
}
