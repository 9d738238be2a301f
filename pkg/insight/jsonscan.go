package insight

import (
	"encoding/json"
	"errors"
	"strings"
)

// errNoJSON means neither a strict parse nor a balanced scan found usable
// JSON in the model output.
var errNoJSON = errors.New("no JSON value found in model output")

// extractJSON pulls the first balanced JSON object or array out of model
// output that may wrap it in prose or markdown fences. Returns false when no
// balanced value is found.
func extractJSON(s string) (string, bool) {
	s = stripFences(s)

	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// stripFences removes a markdown code fence around the payload, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// decodeModelJSON parses model output into out: a strict parse first, then a
// balanced-scan fallback for output wrapped in prose.
func decodeModelJSON(raw string, out interface{}) error {
	trimmed := strings.TrimSpace(stripFences(raw))
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	candidate, ok := extractJSON(raw)
	if !ok {
		return errNoJSON
	}
	return json.Unmarshal([]byte(candidate), out)
}
