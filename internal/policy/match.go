// Package policy implements the gateway's authorization engine: deterministic
// deny-before-allow evaluation of (agent, server, tool) triples over literal
// names and single-position glob patterns, with atomic reload of
// already-validated rules.
package policy

import (
	"path/filepath"
	"strings"
)

// MatchPattern reports whether name matches pattern using the glob alphabet
// `*`, `?`, `[set]`, `[!set]`, case-sensitively and against the whole name —
// the same semantics as Python's fnmatch.fnmatch, realized here with
// path/filepath.Match since neither side ever contains a path separator.
// fnmatch negates a character class with a leading "!"; filepath.Match
// expects "^" for the same purpose, so negated classes are translated
// before matching.
func MatchPattern(pattern, name string) bool {
	matched, err := filepath.Match(toFilepathClass(pattern), name)
	if err != nil {
		return false
	}
	return matched
}

func toFilepathClass(pattern string) string {
	if !strings.Contains(pattern, "[!") {
		return pattern
	}
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '[' && i+1 < len(pattern) && pattern[i+1] == '!' {
			b.WriteString("[^")
			i++
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}
