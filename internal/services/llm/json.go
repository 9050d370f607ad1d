package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON decodes JSON from an LLM response, tolerating code fences and
// prose around the JSON value.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

// DecodeObject decodes content into a JSON object. Arrays, scalars, and null
// are rejected so callers never store a payload that is not a mapping.
func DecodeObject(content string) (map[string]any, error) {
	var out map[string]any
	if err := DecodeLLMJSON(content, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return out, nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
