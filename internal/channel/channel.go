// Package channel parses and formats the comma-delimited channel lists that
// trigger configurations use for their activate, deactivate and trigger sets.
//
// Channel names are opaque and case-sensitive. Parsing never fails: empty or
// garbage input collapses to "no channels".
package channel

import "strings"

// Separator delimits channel names in a serialized list.
const Separator = ","

// Parse splits s on commas and returns the trimmed, non-empty names in
// left-to-right order. Duplicates are kept.
//
// Parse returns an empty (non-nil) slice when s holds no names.
func Parse(s string) []string {
	names := []string{}
	for _, part := range strings.Split(s, Separator) {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ParseValue is Parse for loosely typed input, as decoded from JSON or YAML.
// Absent or non-string values yield an empty list.
func ParseValue(v any) []string {
	s, ok := v.(string)
	if !ok {
		return []string{}
	}
	return Parse(s)
}

// Join serializes names back into the comma-delimited form.
// Parse(Join(Parse(s))) == Parse(s) for any s.
func Join(names []string) string {
	return strings.Join(names, Separator)
}

// Contains reports whether name is a member of names.
func Contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Clone returns a copy of names that never aliases the input.
func Clone(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}
