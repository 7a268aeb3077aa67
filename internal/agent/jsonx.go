package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseJSONResponse recovers a JSON document from raw model output. The
// ladder, in order: direct parse; the innermost object that starts with
// the expected top-level key; a fenced code block; a structural repair
// pass. Returns an error only when every rung fails.
func ParseJSONResponse(content, expectedKey string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	if raw, ok := tryParse(content); ok {
		return raw, nil
	}

	if expectedKey != "" {
		if candidate := extractObjectWithKey(content, expectedKey); candidate != "" {
			if raw, ok := tryParse(candidate); ok {
				return raw, nil
			}
		}
	}

	if fenced := extractFencedBlock(content); fenced != "" {
		if raw, ok := tryParse(fenced); ok {
			return raw, nil
		}
		if raw, ok := tryParse(repairJSON(fenced)); ok {
			return raw, nil
		}
	}

	if raw, ok := tryParse(repairJSON(content)); ok {
		return raw, nil
	}

	return nil, fmt.Errorf("unparseable model output (%d bytes)", len(content))
}

func tryParse(s string) (json.RawMessage, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// extractObjectWithKey finds the innermost balanced object whose first key
// is the expected one.
func extractObjectWithKey(content, key string) string {
	marker := `"` + key + `"`
	idx := strings.LastIndex(content, marker)
	if idx < 0 {
		return ""
	}
	// Walk back to the opening brace for this object.
	open := strings.LastIndex(content[:idx], "{")
	if open < 0 {
		return ""
	}
	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[open : i+1]
			}
		}
	}
	return ""
}

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func extractFencedBlock(content string) string {
	m := fencedRe.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON applies the structural fixes that cover the common model
// failure modes: markdown fences, trailing commas, prose before/after the
// document.
func repairJSON(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Cut prose surrounding the outermost document.
	start := strings.IndexAny(s, "{[")
	if start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s
}
