package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownCodeBlock removes a surrounding ```json / ``` fence
// from rawOutput, if present, returning the inner content unchanged
// otherwise. LLMs commonly wrap JSON responses in a fenced code block
// even when explicitly asked not to (ai/model/chat/parser.go's
// stripMarkdownCodeBlock handles the same behavior for this teacher's
// own structured-output pipeline).
func StripMarkdownCodeBlock(rawOutput string) string {
	trimmed := strings.TrimSpace(rawOutput)
	if len(trimmed) < 6 {
		return trimmed
	}
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") {
		return trimmed
	}

	newline := strings.Index(trimmed, "\n")
	if newline == -1 {
		return strings.TrimSpace(trimmed[3 : len(trimmed)-3])
	}
	return strings.TrimSpace(trimmed[newline+1 : len(trimmed)-3])
}

// ParseJSON strips any markdown fence and unmarshals the remainder
// into v. Every JSON-producing LLM call in this module (draft,
// evaluate, retrieval queries, refine, grade) goes through this one
// path so fence-stripping and error wrapping stay consistent.
func ParseJSON(rawOutput string, v any) error {
	cleaned := StripMarkdownCodeBlock(rawOutput)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("llm: parse JSON response: %w", err)
	}
	return nil
}
