package utils

import "strings"

// ParseQueryList reads a list filter given either as repeated params or as a
// comma-separated value, or a mix of both:
//
//	?stationId=s1,s2              → ["s1","s2"]
//	?stationId=s1&stationId=s2    → ["s1","s2"]
//
// Blank entries and duplicates are dropped. Returns nil when nothing remains.
func ParseQueryList(q map[string][]string, key string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
