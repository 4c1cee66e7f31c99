// Package util contains small internal helpers shared across packages. This
// lives in internal to avoid committing to public API stability prematurely.
package util

import (
	"path"
	"strings"
)

// SanitizeToolName replaces every character outside [A-Za-z0-9_-] with an
// underscore so provider-supplied identifiers become safe external tool
// names. It is total (never fails) and idempotent.
func SanitizeToolName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

// MatchesAny reports whether name matches at least one of the glob patterns
// (shell-style, e.g. "list_*"). Malformed patterns never match.
func MatchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
