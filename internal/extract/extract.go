// Package extract pulls a JSON object out of mixed agent output. Agent runs
// interleave progress lines, tool chatter, and the final answer on one
// stream, so the object has to be located rather than decoded directly.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPreview bounds how much raw output an ExtractionError carries.
const maxPreview = 512

// ExtractionError reports output that contained no decodable JSON object.
type ExtractionError struct {
	Reason  string
	Preview string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract JSON: %s", e.Reason)
}

// Span returns the first balanced JSON object embedded in output. The scan
// is string-aware: braces inside quoted values do not affect nesting depth.
// If the balanced span fails to parse, each line beginning with '{' is tried
// as a standalone object before giving up.
func Span(output string) (string, error) {
	if span, ok := balancedSpan(output); ok {
		if json.Valid([]byte(span)) {
			return span, nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if json.Valid([]byte(line)) {
			return line, nil
		}
	}

	return "", &ExtractionError{
		Reason:  "no JSON object found in output",
		Preview: preview(output),
	}
}

// Unmarshal extracts the first JSON object in output and decodes it into v.
func Unmarshal(output string, v any) error {
	span, err := Span(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return &ExtractionError{
			Reason:  fmt.Sprintf("decode extracted object: %v", err),
			Preview: preview(span),
		}
	}
	return nil
}

// balancedSpan scans from the first '{' and returns the substring covering
// the first brace-balanced region, tracking string and escape state so that
// quoted braces are ignored.
func balancedSpan(output string) (string, bool) {
	start := strings.IndexByte(output, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(output); i++ {
		c := output[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return output[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func preview(s string) string {
	if len(s) > maxPreview {
		return s[:maxPreview]
	}
	return s
}
