package logic

import (
	"slices"
	"strings"
)

// hasSingleSeparator reports whether content has exactly one ':'.
func hasSingleSeparator(content string) bool {
	return strings.Count(content, ":") == 1
}

// noisyType reports whether a type should be dropped by the noise filter.
func noisyType(t, denylist string) bool {
	if t == "" {
		return true
	}
	if t[0] >= '0' && t[0] <= '9' {
		return true
	}
	return strings.ContainsAny(t, denylist)
}

// discoverTypes derives the type allowlist from the accepted messages.
// It returns the allowlist and the number of distinct raw types.
func discoverTypes(msgs []Message, opts Options) (map[string]struct{}, int) {
	raw := make(map[string]struct{})
	for _, m := range msgs {
		raw[m.Type()] = struct{}{}
	}

	if len(raw) <= opts.TypeThreshold {
		return raw, len(raw)
	}

	allow := make(map[string]struct{}, len(raw))
	for t := range raw {
		if !noisyType(t, opts.TypeDenylist) {
			allow[t] = struct{}{}
		}
	}
	return allow, len(raw)
}

func sortedTypes(set map[string]struct{}) []string {
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
