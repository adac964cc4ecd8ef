// Package capability parses and validates the tool allowlist handed to the
// agent CLI. A pattern grants either a whole tool family ("Read") or a
// prefix-scoped slice of one ("Bash(gh issue create *)"). Anything broader
// than that is rejected before a process is ever launched.
package capability

import (
	"fmt"
	"strings"
	"unicode"
)

// Pattern is a single parsed allowlist entry.
type Pattern struct {
	Family string
	Glob   string // empty when the pattern grants the whole family
}

// ConfigurationError reports an allowlist entry that cannot be granted.
type ConfigurationError struct {
	Pattern string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid capability %q: %s", e.Pattern, e.Reason)
}

// Parse splits a raw entry into its family and optional glob and validates
// both parts.
func Parse(raw string) (Pattern, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Pattern{}, &ConfigurationError{Pattern: raw, Reason: "empty pattern"}
	}

	family := trimmed
	glob := ""
	if i := strings.IndexByte(trimmed, '('); i >= 0 {
		if !strings.HasSuffix(trimmed, ")") {
			return Pattern{}, &ConfigurationError{Pattern: raw, Reason: "unterminated scope"}
		}
		family = trimmed[:i]
		glob = trimmed[i+1 : len(trimmed)-1]
	}

	if err := validateFamily(raw, family); err != nil {
		return Pattern{}, err
	}
	if glob == "" && strings.ContainsRune(trimmed, '(') {
		return Pattern{}, &ConfigurationError{Pattern: raw, Reason: "empty scope"}
	}
	if glob != "" {
		if err := validateGlob(raw, glob); err != nil {
			return Pattern{}, err
		}
	}
	if family == "Bash" && glob == "" {
		return Pattern{}, &ConfigurationError{Pattern: raw, Reason: "Bash must be scoped to a command prefix"}
	}

	return Pattern{Family: family, Glob: glob}, nil
}

func validateFamily(raw, family string) error {
	if family == "" {
		return &ConfigurationError{Pattern: raw, Reason: "missing tool family"}
	}
	if family == "*" {
		return &ConfigurationError{Pattern: raw, Reason: "wildcard tool family is not grantable"}
	}
	for _, r := range family {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return &ConfigurationError{Pattern: raw, Reason: fmt.Sprintf("tool family contains %q", r)}
		}
	}
	return nil
}

func validateGlob(raw, glob string) error {
	if glob == "*" {
		return &ConfigurationError{Pattern: raw, Reason: "unrestricted scope is not grantable"}
	}
	for i, r := range glob {
		switch r {
		case '*':
			if i != len(glob)-1 {
				return &ConfigurationError{Pattern: raw, Reason: "wildcard must be the final character of the scope"}
			}
		case '?', '[', ']':
			return &ConfigurationError{Pattern: raw, Reason: fmt.Sprintf("unsupported scope character %q", r)}
		}
	}
	return nil
}

// String renders the pattern back into allowlist syntax.
func (p Pattern) String() string {
	if p.Glob == "" {
		return p.Family
	}
	return p.Family + "(" + p.Glob + ")"
}

// Normalize parses every entry, rejects the first invalid one, and returns
// the canonical rendering with duplicates removed. Order is preserved so the
// agent CLI sees the list the caller wrote.
func Normalize(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		p, err := Parse(entry)
		if err != nil {
			return nil, err
		}
		rendered := p.String()
		if seen[rendered] {
			continue
		}
		seen[rendered] = true
		out = append(out, rendered)
	}
	return out, nil
}
