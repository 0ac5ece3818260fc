package mcp

import (
	"encoding/json"
	"fmt"
)

// redactedArgumentKeys hold the customer's own words. Logs keep only their length.
var redactedArgumentKeys = map[string]struct{}{
	"query": {},
}

// redactMCPBody redacts customer statements from MCP payloads.
func redactMCPBody(raw string) string {
	if raw == "" {
		return raw
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	out, err := json.Marshal(redactMCPValue(payload))
	if err != nil {
		return raw
	}
	return string(out)
}

// redactMCPValue recursively redacts nested payloads.
func redactMCPValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return redactMCPMap(v)
	case []any:
		result := make([]any, 0, len(v))
		for _, item := range v {
			result = append(result, redactMCPValue(item))
		}
		return result
	default:
		return value
	}
}

func redactMCPMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = redactMCPValue(value)
	}

	params, _ := output["params"].(map[string]any)
	if args, ok := params["arguments"].(map[string]any); ok {
		for key := range redactedArgumentKeys {
			if text, ok := args[key].(string); ok {
				args[key] = fmt.Sprintf("[redacted %d chars]", len([]rune(text)))
			}
		}
	}
	return output
}

// redactHookPayload renders a redacted JSON string for hook logging.
func redactHookPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return redactMCPBody(string(data))
}
