package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONArray locates the first well-formed array-shaped JSON substring
// in untrusted text, tolerating surrounding prose and markdown fences. It
// scans candidate '[' positions in order and returns the first balanced
// bracket span that parses as JSON.
func extractJSONArray(text string) (json.RawMessage, error) {
	text = stripMarkdownFences(text)

	for start := 0; start < len(text); start++ {
		if text[start] != '[' {
			continue
		}
		end, ok := matchBracketSpan(text, start)
		if !ok {
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("no well-formed JSON array found in response")
}

// matchBracketSpan finds the index of the ']' that balances the '[' at
// start, honoring JSON string literals and escapes.
func matchBracketSpan(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

func stripMarkdownFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}
