// Package strings holds small slice-of-string helpers shared by config
// parsing and rejection reasons.
package strings

import (
	"strconv"
	"strings"
)

// DedupeAndTrim trims each element and drops empties and repeats, keeping
// first-seen order.
//
//	DedupeAndTrim([]string{"  blurry ", "glare", "blurry", ""}) // ["blurry", "glare"]
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// JoinCapped joins at most limit values with sep and notes how many were
// left out. A limit <= 0 joins everything.
//
//	JoinCapped([]string{"a", "b", "c"}, "; ", 2) // "a; b (+1 more)"
func JoinCapped(values []string, sep string, limit int) string {
	if limit <= 0 || len(values) <= limit {
		return strings.Join(values, sep)
	}
	return strings.Join(values[:limit], sep) + " (+" + strconv.Itoa(len(values)-limit) + " more)"
}
