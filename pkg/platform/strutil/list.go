// Package strutil holds small string helpers shared by config parsing.
package strutil

import "strings"

// SplitList splits a comma-separated value into trimmed, non-empty,
// first-occurrence-ordered items. It returns nil when nothing remains.
//
//	SplitList(" a:9092, b:9092,,a:9092 ") // []string{"a:9092", "b:9092"}
func SplitList(raw string) []string {
	return Dedupe(strings.Split(raw, ","))
}

// Dedupe trims each value and drops empties and repeats. Case is preserved.
func Dedupe(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
